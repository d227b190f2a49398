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
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

func TestClassifyNeo4jError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			"context deadline",
			context.DeadlineExceeded,
			KindTimeout,
		},
		{
			"context cancelled",
			context.Canceled,
			KindTimeout,
		},
		{
			"cypher syntax error",
			&db.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Invalid input"},
			KindSyntax,
		},
		{
			"semantic error",
			&db.Neo4jError{Code: "Neo.ClientError.Statement.Semantic", Msg: "Unknown function"},
			KindSyntax,
		},
		{
			"transaction timeout",
			&db.Neo4jError{Code: "Neo.ClientError.Transaction.TransactionTimedOut", Msg: "timed out"},
			KindTimeout,
		},
		{
			"other server error",
			&db.Neo4jError{Code: "Neo.DatabaseError.General.UnknownError", Msg: "boom"},
			KindInternal,
		},
		{
			"plain error",
			errors.New("something odd"),
			KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storeErr := classifyNeo4jError(tt.err)
			if storeErr.Kind != tt.want {
				t.Errorf("classifyNeo4jError(%v).Kind = %v, want %v", tt.err, storeErr.Kind, tt.want)
			}
			if !errors.Is(storeErr, tt.err) {
				t.Error("classified error does not wrap the original")
			}
		})
	}
}

func TestFlattenValue(t *testing.T) {
	t.Run("node flattens to property map", func(t *testing.T) {
		node := dbtype.Node{Props: map[string]any{"title": "The Matrix", "year": int64(1999)}}
		got, ok := flattenValue(node).(map[string]any)
		if !ok {
			t.Fatalf("flattenValue(Node) = %T, want map", flattenValue(node))
		}
		if got["title"] != "The Matrix" || got["year"] != int64(1999) {
			t.Errorf("unexpected props: %v", got)
		}
	})

	t.Run("relationship flattens to property map", func(t *testing.T) {
		rel := dbtype.Relationship{Props: map[string]any{"character_name": "Neo"}}
		got, ok := flattenValue(rel).(map[string]any)
		if !ok {
			t.Fatalf("flattenValue(Relationship) = %T, want map", flattenValue(rel))
		}
		if got["character_name"] != "Neo" {
			t.Errorf("unexpected props: %v", got)
		}
	})

	t.Run("lists flatten recursively", func(t *testing.T) {
		list := []any{
			dbtype.Node{Props: map[string]any{"name": "Keanu Reeves"}},
			"plain string",
		}
		got, ok := flattenValue(list).([]any)
		if !ok || len(got) != 2 {
			t.Fatalf("unexpected flattened list: %v", got)
		}
		first, ok := got[0].(map[string]any)
		if !ok || first["name"] != "Keanu Reeves" {
			t.Errorf("nested node not flattened: %v", got[0])
		}
		if got[1] != "plain string" {
			t.Errorf("plain value changed: %v", got[1])
		}
	})

	t.Run("scalars pass through", func(t *testing.T) {
		if flattenValue(int64(42)) != int64(42) {
			t.Error("int64 changed")
		}
		if flattenValue("text") != "text" {
			t.Error("string changed")
		}
	})
}
