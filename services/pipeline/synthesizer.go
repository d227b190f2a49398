// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/CineGraphAI/CineGraphLocal/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var synthTracer = otel.Tracer("cinegraph.pipeline.synthesizer")

const noDataAnswer = "I could not find any matching data for that question in the movie database."

// AnswerSynthesizer turns execution results into a natural-language
// answer grounded strictly in those results. Rows beyond the cap are
// dropped from the prompt and their omission is stated to the model.
type AnswerSynthesizer struct {
	builder     *PromptBuilder
	callTimeout time.Duration
	rowCap      int
}

// NewAnswerSynthesizer creates a synthesizer whose prompts include at
// most rowCap rows. Non-positive values fall back to defaults.
func NewAnswerSynthesizer(builder *PromptBuilder, callTimeout time.Duration, rowCap int) *AnswerSynthesizer {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	if rowCap <= 0 {
		rowCap = 50
	}
	return &AnswerSynthesizer{builder: builder, callTimeout: callTimeout, rowCap: rowCap}
}

// Synthesize produces the final answer for a successful execution.
// Zero rows short-circuit to a fixed no-data answer without calling
// the model, so the model can never invent facts for an empty result.
// A model failure here does not fail the turn: the rendered rows are
// returned directly as a minimal answer.
func (a *AnswerSynthesizer) Synthesize(ctx context.Context, client llm.LLMClient, question string, outcome ExecutionOutcome) string {
	if len(outcome.Rows) == 0 {
		return noDataAnswer
	}

	ctx, span := synthTracer.Start(ctx, "AnswerSynthesizer.Synthesize")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(outcome.Rows)))

	rows := outcome.Rows
	truncated := false
	if len(rows) > a.rowCap {
		rows = rows[:a.rowCap]
		truncated = true
	}

	rendered := renderRows(rows)
	prompt := a.builder.BuildSynthesis(question, rendered, truncated)

	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	answer, err := client.Complete(callCtx, prompt, llm.GenerationParams{})
	if err != nil {
		// The data was retrieved successfully; degrade to the raw
		// rows rather than discarding a good result.
		span.RecordError(err)
		slog.Warn("Synthesis call failed, returning raw results", "error", err)
		var b strings.Builder
		b.WriteString("Here is what the database returned:\n\n")
		b.WriteString(rendered)
		if truncated {
			b.WriteString("(more results omitted)\n")
		}
		return b.String()
	}
	return strings.TrimSpace(answer)
}

// DegradedAnswer is the apologetic answer returned when every
// correction attempt is exhausted or a fatal failure ends the turn.
// It never exposes queries, store errors, or internal detail.
func DegradedAnswer(failure TurnFailure) string {
	if failure.Kind == FailureConnection {
		return "I am sorry, the movie database is currently unreachable. Please try again in a moment."
	}
	return "I am sorry, I was unable to answer that question. Try rephrasing it or asking something simpler about movies, people, or genres."
}

// renderRows renders rows deterministically: one line per row in store
// order, keys sorted within each row. Nested values use their Go
// default formatting, which is stable for the flattened types the
// store client produces.
func renderRows(rows []map[string]any) string {
	var b strings.Builder
	for i, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(fmt.Sprintf("%d. ", i+1))
		for j, k := range keys {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("%s=%v", k, row[k]))
		}
		b.WriteString("\n")
	}
	return b.String()
}
