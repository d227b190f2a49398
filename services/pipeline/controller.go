// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/CineGraphAI/CineGraphLocal/services/graph"
	"github.com/CineGraphAI/CineGraphLocal/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var ctrlTracer = otel.Tracer("cinegraph.pipeline.controller")

// ControllerConfig bounds a turn. Zero values take the defaults from
// DefaultControllerConfig.
type ControllerConfig struct {
	// MaxAttempts is the total generation attempts per turn, first
	// try included.
	MaxAttempts int
	// HistoryTurns is how many prior turns each prompt includes.
	HistoryTurns int
	// QueryTimeout is the hard per-query execution deadline.
	QueryTimeout time.Duration
	// LLMCallTimeout bounds each individual model call.
	LLMCallTimeout time.Duration
	// MaxTokens caps generation length per model call.
	MaxTokens int
	// RowCap is the maximum rows passed to answer synthesis.
	RowCap int
	// RetryDisallowed keeps retrying after a disallowed-operation
	// rejection instead of failing the turn immediately.
	RetryDisallowed bool
}

// DefaultControllerConfig returns the production defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxAttempts:    3,
		HistoryTurns:   3,
		QueryTimeout:   10 * time.Second,
		LLMCallTimeout: 30 * time.Second,
		MaxTokens:      512,
		RowCap:         50,
	}
}

func (c ControllerConfig) withDefaults() ControllerConfig {
	def := DefaultControllerConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = def.HistoryTurns
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = def.QueryTimeout
	}
	if c.LLMCallTimeout <= 0 {
		c.LLMCallTimeout = def.LLMCallTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.RowCap <= 0 {
		c.RowCap = def.RowCap
	}
	return c
}

// TurnResult is what one question produced, success or not.
type TurnResult struct {
	Answer         string
	Succeeded      bool
	AttemptsUsed   int
	GeneratedQuery string
	RowCount       int
	FailureReason  FailureKind
}

// Controller drives one conversational turn through the pipeline:
// generate, validate, execute, synthesize, with bounded
// self-correction between attempts. A Controller is stateless across
// turns and safe for concurrent use; per-conversation ordering comes
// from the session lock.
type Controller struct {
	builder     *PromptBuilder
	generator   *QueryGenerator
	validator   *QueryValidator
	executor    *QueryExecutor
	synthesizer *AnswerSynthesizer
	cfg         ControllerConfig
	backoffBase time.Duration
}

// NewController wires the pipeline stages around the schema and store.
func NewController(schema *SchemaDescriptor, store graph.Store, cfg ControllerConfig) *Controller {
	cfg = cfg.withDefaults()
	builder := NewPromptBuilder(schema, cfg.HistoryTurns)
	return &Controller{
		builder:     builder,
		generator:   NewQueryGenerator(cfg.LLMCallTimeout, cfg.MaxTokens),
		validator:   NewQueryValidator(schema),
		executor:    NewQueryExecutor(store, cfg.QueryTimeout),
		synthesizer: NewAnswerSynthesizer(builder, cfg.LLMCallTimeout, cfg.RowCap),
		cfg:         cfg,
		backoffBase: 250 * time.Millisecond,
	}
}

// RunTurn answers one question for the session. Turns within a session
// are serialized; the history snapshot is taken under the same lock so
// a turn never sees a half-appended predecessor. The turn is appended
// to history before returning unless ctx was cancelled, in which case
// the turn leaves no trace.
func (c *Controller) RunTurn(ctx context.Context, sess *Session, question string, client llm.LLMClient) TurnResult {
	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()

	ctx, span := ctrlTracer.Start(ctx, "Controller.RunTurn")
	defer span.End()
	span.SetAttributes(attribute.String("conversation_id", sess.ID()))

	history := sess.History().Recent(c.cfg.HistoryTurns)

	var (
		correction *Correction
		lastQuery  string
		lastFail   TurnFailure
		attempts   int
	)

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		if ctx.Err() != nil {
			return TurnResult{
				Answer:        DegradedAnswer(TurnFailure{Kind: FailureTimeout}),
				AttemptsUsed:  attempts,
				FailureReason: FailureTimeout,
			}
		}

		prompt := c.builder.BuildGeneration(question, history, correction)
		candidate, genFail := c.generator.Generate(ctx, client, prompt, attempt)
		if genFail != nil {
			lastFail = *genFail
			correction = &Correction{Query: lastQuery, Failure: lastFail}
			if lastFail.Kind == FailureService && attempt < c.cfg.MaxAttempts {
				c.waitBeforeRetry(ctx, attempt)
			}
			continue
		}
		lastQuery = candidate.Text

		if valFail := c.validator.Validate(candidate); valFail != nil {
			lastFail = *valFail
			slog.Warn("Generated query rejected by validator",
				"conversation_id", sess.ID(),
				"attempt", attempt,
				"failure", lastFail.Kind.String(),
				"token", lastFail.Token)
			if lastFail.Kind == FailureDisallowed && !c.cfg.RetryDisallowed {
				break
			}
			correction = &Correction{Query: candidate.Text, Failure: lastFail}
			continue
		}

		outcome, execFail := c.executor.Execute(ctx, candidate.Text)
		if execFail != nil {
			lastFail = *execFail
			slog.Warn("Query execution failed",
				"conversation_id", sess.ID(),
				"attempt", attempt,
				"failure", lastFail.Kind.String())
			if !lastFail.Kind.Retryable() {
				break
			}
			correction = &Correction{Query: candidate.Text, Failure: lastFail}
			continue
		}

		answer := c.synthesizer.Synthesize(ctx, client, question, outcome)
		result := TurnResult{
			Answer:         answer,
			Succeeded:      true,
			AttemptsUsed:   attempt,
			GeneratedQuery: candidate.Text,
			RowCount:       len(outcome.Rows),
		}
		c.appendTurn(ctx, sess, question, result)
		return result
	}

	slog.Error("Turn exhausted without an answer",
		"conversation_id", sess.ID(),
		"attempts", attempts,
		"failure", lastFail.Kind.String())
	result := TurnResult{
		Answer:         DegradedAnswer(lastFail),
		AttemptsUsed:   attempts,
		GeneratedQuery: lastQuery,
		FailureReason:  lastFail.Kind,
	}
	c.appendTurn(ctx, sess, question, result)
	return result
}

// waitBeforeRetry backs off exponentially before re-prompting after a
// model service failure, so a rate-limited backend is not hit again
// back-to-back. Cancellation cuts the wait short; the top of the
// attempt loop then ends the turn.
func (c *Controller) waitBeforeRetry(ctx context.Context, attempt int) {
	delay := c.backoffBase * time.Duration(1<<(attempt-1))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// appendTurn records the finished turn unless the caller already gave
// up on it; a cancelled turn must not influence later prompts.
func (c *Controller) appendTurn(ctx context.Context, sess *Session, question string, result TurnResult) {
	if ctx.Err() != nil {
		return
	}
	sess.History().Append(ConversationTurn{
		Question:       question,
		GeneratedQuery: result.GeneratedQuery,
		AttemptCount:   result.AttemptsUsed,
		ResultRowCount: result.RowCount,
		Answer:         result.Answer,
		FailureReason:  result.FailureReason,
		CreatedAt:      time.Now(),
	})
}
