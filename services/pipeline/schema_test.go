// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"strings"
	"testing"
)

func TestNewSchemaDescriptor_RejectsUnknownEndpoints(t *testing.T) {
	nodes := []NodeSchema{{Label: "Movie", Properties: map[string]PropertyType{"title": TypeString}}}

	tests := []struct {
		name string
		rel  RelationshipSchema
	}{
		{"unknown source", RelationshipSchema{Type: "ACTED_IN", Source: "Person", Target: "Movie"}},
		{"unknown target", RelationshipSchema{Type: "IN_GENRE", Source: "Movie", Target: "Genre"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchemaDescriptor("v1", nodes, []RelationshipSchema{tt.rel})
			if err == nil {
				t.Fatal("expected an error for a dangling relationship endpoint")
			}
		})
	}
}

func TestSchemaDescriptor_Lookups(t *testing.T) {
	schema := MovieGraphSchema()

	t.Run("case sensitive labels", func(t *testing.T) {
		if !schema.HasLabel("Movie") {
			t.Error("Movie should exist")
		}
		if schema.HasLabel("movie") {
			t.Error("label lookup must be case-sensitive")
		}
	})

	t.Run("relationship types", func(t *testing.T) {
		for _, relType := range []string{"ACTED_IN", "DIRECTED", "IN_GENRE"} {
			if !schema.HasRelationship(relType) {
				t.Errorf("%s should exist", relType)
			}
		}
		if schema.HasRelationship("PRODUCED") {
			t.Error("PRODUCED should not exist")
		}
	})

	t.Run("properties are schema-wide", func(t *testing.T) {
		// character_name lives on ACTED_IN, title on Movie.
		for _, prop := range []string{"character_name", "title", "name", "rating"} {
			if !schema.HasProperty(prop) {
				t.Errorf("%s should exist", prop)
			}
		}
		if schema.HasProperty("box_office") {
			t.Error("box_office should not exist")
		}
	})
}

func TestSchemaDescriptor_PromptBlockDeterministic(t *testing.T) {
	schema := MovieGraphSchema()

	first := schema.PromptBlock()
	for i := 0; i < 5; i++ {
		if schema.PromptBlock() != first {
			t.Fatal("PromptBlock is not deterministic")
		}
	}

	for _, want := range []string{
		"Person", "Movie", "Genre",
		"(:Person)-[:ACTED_IN {character_name: string}]->(:Movie)",
		"(:Person)-[:DIRECTED]->(:Movie)",
		"(:Movie)-[:IN_GENRE]->(:Genre)",
	} {
		if !strings.Contains(first, want) {
			t.Errorf("PromptBlock is missing %q:\n%s", want, first)
		}
	}
}
