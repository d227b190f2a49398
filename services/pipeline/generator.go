// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/CineGraphAI/CineGraphLocal/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var genTracer = otel.Tracer("cinegraph.pipeline.generator")

// QueryCandidate is a generated query awaiting validation. It is not
// retained after the turn resolves.
type QueryCandidate struct {
	Text          string
	SourceAttempt int
}

// QueryGenerator invokes the language model with a built prompt and
// extracts the candidate query from the raw completion. The backend is
// passed per call so concurrent conversations using different backends
// cannot interfere.
type QueryGenerator struct {
	callTimeout time.Duration
	maxTokens   int
}

// NewQueryGenerator creates a generator whose LLM calls are bounded by
// callTimeout (distinct from the overall turn deadline).
func NewQueryGenerator(callTimeout time.Duration, maxTokens int) *QueryGenerator {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &QueryGenerator{callTimeout: callTimeout, maxTokens: maxTokens}
}

// Generate runs one completion call and extracts the fenced query.
// Failures are always *TurnFailure: FailureService for provider
// errors, FailureExtraction when no fenced query is found.
func (g *QueryGenerator) Generate(ctx context.Context, client llm.LLMClient, prompt string, attempt int) (QueryCandidate, *TurnFailure) {
	ctx, span := genTracer.Start(ctx, "QueryGenerator.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("attempt", attempt))

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	temperature := float32(0)
	raw, err := client.Complete(callCtx, prompt, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &g.maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("LLM completion failed during generation", "attempt", attempt, "error", err)
		return QueryCandidate{}, &TurnFailure{
			Kind:   FailureService,
			Detail: serviceFailureDetail(err),
		}
	}

	query, ok := extractFencedQuery(raw)
	if !ok {
		slog.Warn("No fenced query found in completion", "attempt", attempt, "completion_len", len(raw))
		return QueryCandidate{}, &TurnFailure{
			Kind:   FailureExtraction,
			Detail: "the completion did not contain a ```cypher fenced code block",
		}
	}

	return QueryCandidate{Text: query, SourceAttempt: attempt}, nil
}

// extractFencedQuery pulls the query out of the first fenced code
// block. The generation prompt instructs the model to tag the fence
// with "cypher"; an untagged fence is accepted as a fallback since
// some models drop the tag.
func extractFencedQuery(raw string) (string, bool) {
	const fence = "```"
	start := strings.Index(raw, fence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(fence):]

	// Drop the language tag line if present.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		tag := strings.TrimSpace(strings.ToLower(rest[:nl]))
		if tag == "cypher" || tag == "" {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, fence)
	if end == -1 {
		return "", false
	}
	query := strings.TrimSpace(rest[:end])
	if query == "" {
		return "", false
	}
	return query, true
}

// serviceFailureDetail renders a provider failure for correction
// context without leaking raw provider payloads.
func serviceFailureDetail(err error) string {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return "language model service rate limited the request"
	case errors.Is(err, llm.ErrTimeout):
		return "language model service did not answer in time"
	default:
		return "language model service call failed"
	}
}
