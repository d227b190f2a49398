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
	"fmt"
	"log/slog"
	"time"

	"github.com/CineGraphAI/CineGraphLocal/services/graph"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var execTracer = otel.Tracer("cinegraph.pipeline.executor")

// ExecutionOutcome is the result of running one validated query.
// Rows preserve store order. A timed-out or failed execution yields
// zero rows, never a partial set.
type ExecutionOutcome struct {
	Rows []map[string]any
	Keys []string
}

// QueryExecutor runs validated queries against the graph store under a
// hard per-query deadline. Transient connection failures are retried a
// bounded number of times; everything else maps to a turn failure for
// the correction loop.
type QueryExecutor struct {
	store       graph.Store
	timeout     time.Duration
	connRetries int
	backoffBase time.Duration
}

// NewQueryExecutor creates an executor with the given per-query
// deadline. A non-positive timeout falls back to 10 seconds.
func NewQueryExecutor(store graph.Store, timeout time.Duration) *QueryExecutor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QueryExecutor{
		store:       store,
		timeout:     timeout,
		connRetries: 2,
		backoffBase: 250 * time.Millisecond,
	}
}

// Execute runs the query with read-only session semantics and maps
// store errors to turn failures. Retries on connection errors happen
// here so the controller sees at most one failure per attempt.
func (e *QueryExecutor) Execute(ctx context.Context, query string) (ExecutionOutcome, *TurnFailure) {
	ctx, span := execTracer.Start(ctx, "QueryExecutor.Execute")
	defer span.End()

	var lastErr error
	for try := 0; try <= e.connRetries; try++ {
		if try > 0 {
			backoff := e.backoffBase * time.Duration(1<<(try-1))
			slog.Warn("Retrying query after connection failure", "try", try, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ExecutionOutcome{}, &TurnFailure{
					Kind:   FailureTimeout,
					Detail: "query was cancelled before it could run",
				}
			}
		}

		queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
		result, err := e.store.Query(queryCtx, query, nil)
		cancel()
		if err == nil {
			span.SetAttributes(attribute.Int("rows", len(result.Records)))
			return ExecutionOutcome{Rows: result.Records, Keys: result.Keys}, nil
		}

		lastErr = err
		if !isConnectionError(err) {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return ExecutionOutcome{}, classifyExecutionError(lastErr)
}

func isConnectionError(err error) bool {
	var storeErr *graph.StoreError
	return errors.As(err, &storeErr) && storeErr.Kind == graph.KindConnection
}

// classifyExecutionError maps a store error to the failure kind the
// correction loop acts on. Syntax errors the static validator missed
// are retryable; connection failures after retries are fatal.
func classifyExecutionError(err error) *TurnFailure {
	var storeErr *graph.StoreError
	if !errors.As(err, &storeErr) {
		return &TurnFailure{
			Kind:   FailureService,
			Detail: "graph store returned an unexpected error",
		}
	}
	switch storeErr.Kind {
	case graph.KindSyntax:
		return &TurnFailure{
			Kind:   FailureSyntax,
			Detail: fmt.Sprintf("graph store rejected the query: %s", storeErr.Message),
		}
	case graph.KindTimeout:
		return &TurnFailure{
			Kind:   FailureTimeout,
			Detail: "query did not finish within the execution deadline",
		}
	case graph.KindConnection:
		return &TurnFailure{
			Kind:   FailureConnection,
			Detail: "graph store is unreachable",
		}
	default:
		return &TurnFailure{
			Kind:   FailureService,
			Detail: "graph store failed to execute the query",
		}
	}
}
