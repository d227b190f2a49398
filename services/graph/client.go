// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph provides the read-only boundary to the movie knowledge
// graph. The only store implementation is Neo4j; the Store interface
// exists so the pipeline can be tested against fakes.
package graph

import (
	"context"
	"fmt"
	"time"
)

// ErrorKind classifies a store failure for the pipeline's retry policy.
type ErrorKind int

const (
	// KindSyntax means the store rejected the query text itself.
	// Eligible for query-rewrite retry.
	KindSyntax ErrorKind = iota

	// KindTimeout means the query deadline expired. No partial rows
	// are ever returned alongside this kind.
	KindTimeout

	// KindConnection means the store was unreachable. Rewriting the
	// query cannot fix this; it is retried at the transport level only.
	KindConnection

	// KindInternal covers everything else (driver bugs, protocol
	// violations). Treated as fatal for the turn.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "internal"
	}
}

// StoreError is the typed error returned by Store implementations.
type StoreError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph store (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("graph store (%s): %s", e.Kind, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Err }

// QueryResult holds the rows returned by a read query.
// Row order is exactly the order the store returned; nothing re-sorts.
type QueryResult struct {
	// Records contains the result rows as maps of column name to value.
	// Node and relationship values are flattened to their property maps.
	Records []map[string]any

	// Keys contains the column names of the result set.
	Keys []string

	// ExecutionTime is the wall-clock duration of the query.
	ExecutionTime time.Duration
}

// Store is the read-only query-execution capability the pipeline
// depends on. Implementations must be safe for concurrent use.
type Store interface {
	// Connect establishes the connection. Must be called before Query.
	Connect(ctx context.Context) error

	// Close releases all resources held by the store client.
	Close(ctx context.Context) error

	// Query executes a read-only Cypher query. Failures are always
	// *StoreError so callers can branch on Kind.
	Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error)
}

// Config contains connection options for the Neo4j store.
type Config struct {
	// URI is the bolt connection URI, e.g. "bolt://localhost:7687".
	URI string

	// Username and Password for basic auth.
	Username string
	Password string

	// Database name. Empty string uses the server default.
	Database string

	// MaxConnectionPoolSize limits the driver connection pool.
	MaxConnectionPoolSize int

	// ConnectionTimeout bounds the initial connection attempt.
	ConnectionTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults for a local
// Neo4j instance.
func DefaultConfig() Config {
	return Config{
		URI:                   "bolt://localhost:7687",
		Username:              "neo4j",
		Database:              "",
		MaxConnectionPoolSize: 50,
		ConnectionTimeout:     30 * time.Second,
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("graph config: URI cannot be empty")
	}
	if c.Username == "" {
		return fmt.Errorf("graph config: Username cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("graph config: Password cannot be empty")
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("graph config: ConnectionTimeout must be positive")
	}
	return nil
}
