// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Neo4jStore implements Store for Neo4j. Queries always run inside
// read transactions; this process holds no write capability at all.
type Neo4jStore struct {
	config Config
	driver neo4j.DriverWithContext
}

// NewNeo4jStore creates a new store client with the given configuration.
// The client must be connected via Connect() before use.
func NewNeo4jStore(config Config) (*Neo4jStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Neo4jStore{config: config}, nil
}

// Connect establishes the connection, retrying with exponential backoff.
func (s *Neo4jStore) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(s.config.Username, s.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = s.config.MaxConnectionPoolSize
		config.ConnectionAcquisitionTimeout = s.config.ConnectionTimeout
	}

	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(s.config.URI, auth, driverConfig)
		if err == nil {
			err = driver.VerifyConnectivity(ctx)
			if err == nil {
				s.driver = driver
				slog.Info("Connected to Neo4j", "uri", s.config.URI, "database", s.config.Database)
				return nil
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			return &StoreError{Kind: KindConnection, Message: "connection attempt cancelled", Err: ctx.Err()}
		}

		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > s.config.ConnectionTimeout {
			delay = s.config.ConnectionTimeout
		}
		slog.Warn("Neo4j connection attempt failed, retrying",
			"attempt", attempt+1, "max_retries", maxRetries, "delay", delay.String(), "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &StoreError{Kind: KindConnection, Message: "connection attempt cancelled", Err: ctx.Err()}
		}
	}

	return &StoreError{Kind: KindConnection, Message: "failed to connect to Neo4j", Err: lastErr}
}

// Close releases all resources and closes the database connection.
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	if err := s.driver.Close(ctx); err != nil {
		return &StoreError{Kind: KindInternal, Message: "failed to close driver", Err: err}
	}
	s.driver = nil
	return nil
}

// Query executes a read-only Cypher query.
func (s *Neo4jStore) Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	if s.driver == nil {
		return QueryResult{}, &StoreError{Kind: KindConnection, Message: "driver not connected"}
	}

	startTime := time.Now()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.config.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		neoResult, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := neoResult.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return convertRecords(records), nil
	})
	if err != nil {
		return QueryResult{}, classifyNeo4jError(err)
	}

	queryResult := result.(QueryResult)
	queryResult.ExecutionTime = time.Since(startTime)
	return queryResult, nil
}

// convertRecords converts Neo4j records to the QueryResult format,
// flattening nodes and relationships to their property maps so the
// synthesizer only ever sees plain values.
func convertRecords(records []*neo4j.Record) QueryResult {
	result := QueryResult{
		Records: make([]map[string]any, 0, len(records)),
		Keys:    []string{},
	}
	if len(records) > 0 {
		result.Keys = records[0].Keys
	}
	for _, record := range records {
		recordMap := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			recordMap[key] = flattenValue(record.Values[i])
		}
		result.Records = append(result.Records, recordMap)
	}
	return result
}

func flattenValue(value any) any {
	switch v := value.(type) {
	case dbtype.Node:
		return flattenMap(v.Props)
	case dbtype.Relationship:
		return flattenMap(v.Props)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = flattenValue(item)
		}
		return out
	default:
		return v
	}
}

func flattenMap(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = flattenValue(v)
	}
	return out
}

// classifyNeo4jError maps driver errors onto the StoreError taxonomy.
func classifyNeo4jError(err error) *StoreError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &StoreError{Kind: KindTimeout, Message: "query deadline exceeded", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &StoreError{Kind: KindTimeout, Message: "query cancelled", Err: err}
	}

	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		switch {
		case strings.Contains(neoErr.Code, "SyntaxError"),
			strings.Contains(neoErr.Code, "Statement.Semantic"):
			return &StoreError{Kind: KindSyntax, Message: neoErr.Msg, Err: err}
		case strings.Contains(neoErr.Code, "Transaction.Timeout"),
			strings.Contains(neoErr.Code, "TransactionTimedOut"):
			return &StoreError{Kind: KindTimeout, Message: neoErr.Msg, Err: err}
		default:
			return &StoreError{Kind: KindInternal, Message: neoErr.Msg, Err: err}
		}
	}

	if neo4j.IsConnectivityError(err) {
		return &StoreError{Kind: KindConnection, Message: "store unreachable", Err: err}
	}

	return &StoreError{Kind: KindInternal, Message: "query execution failed", Err: err}
}

var _ Store = (*Neo4jStore)(nil)
