// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline implements the natural-language-to-Cypher pipeline:
// prompt construction, query generation, static validation, execution,
// bounded self-correction, and grounded answer synthesis.
//
// The pipeline treats the language model as an untrusted input source:
// no generated string reaches the graph store without passing the
// validator first.
package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// PropertyType is the primitive type of a node or relationship property.
type PropertyType string

const (
	TypeString  PropertyType = "string"
	TypeInteger PropertyType = "integer"
	TypeFloat   PropertyType = "float"
)

// NodeSchema describes one node label and its properties.
type NodeSchema struct {
	Label      string
	Properties map[string]PropertyType
}

// RelationshipSchema describes one relationship type. Direction is
// always Source -> Target.
type RelationshipSchema struct {
	Type       string
	Source     string
	Target     string
	Properties map[string]PropertyType
}

// SchemaDescriptor is the static, versioned description of the graph
// schema. It is built once at process start and never mutated, so it
// is shared read-only across all sessions without locking.
//
// Label, relationship type, and property names are case-sensitive
// identifiers in the store and must be reproduced verbatim in prompts.
type SchemaDescriptor struct {
	version       string
	nodes         map[string]NodeSchema
	relationships map[string]RelationshipSchema
	properties    map[string]struct{}
}

// NewSchemaDescriptor builds a descriptor and enforces the structural
// invariant that every relationship endpoint label exists in the node
// label set.
func NewSchemaDescriptor(version string, nodes []NodeSchema, relationships []RelationshipSchema) (*SchemaDescriptor, error) {
	d := &SchemaDescriptor{
		version:       version,
		nodes:         make(map[string]NodeSchema, len(nodes)),
		relationships: make(map[string]RelationshipSchema, len(relationships)),
		properties:    make(map[string]struct{}),
	}
	for _, n := range nodes {
		if n.Label == "" {
			return nil, fmt.Errorf("schema: node label cannot be empty")
		}
		d.nodes[n.Label] = n
		for prop := range n.Properties {
			d.properties[prop] = struct{}{}
		}
	}
	for _, r := range relationships {
		if _, ok := d.nodes[r.Source]; !ok {
			return nil, fmt.Errorf("schema: relationship %s references unknown source label %s", r.Type, r.Source)
		}
		if _, ok := d.nodes[r.Target]; !ok {
			return nil, fmt.Errorf("schema: relationship %s references unknown target label %s", r.Type, r.Target)
		}
		d.relationships[r.Type] = r
		for prop := range r.Properties {
			d.properties[prop] = struct{}{}
		}
	}
	return d, nil
}

// Version returns the schema version tag.
func (d *SchemaDescriptor) Version() string { return d.version }

// HasLabel reports whether the node label exists. Case-sensitive.
func (d *SchemaDescriptor) HasLabel(label string) bool {
	_, ok := d.nodes[label]
	return ok
}

// HasRelationship reports whether the relationship type exists.
func (d *SchemaDescriptor) HasRelationship(relType string) bool {
	_, ok := d.relationships[relType]
	return ok
}

// HasProperty reports whether any node or relationship declares the
// property name. The validator cannot always bind a property access to
// a single label statically, so membership is checked schema-wide.
func (d *SchemaDescriptor) HasProperty(name string) bool {
	_, ok := d.properties[name]
	return ok
}

// Labels returns all node labels in sorted order.
func (d *SchemaDescriptor) Labels() []string {
	labels := make([]string, 0, len(d.nodes))
	for label := range d.nodes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// RelationshipTypes returns all relationship types in sorted order.
func (d *SchemaDescriptor) RelationshipTypes() []string {
	types := make([]string, 0, len(d.relationships))
	for t := range d.relationships {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// PromptBlock renders the schema as the text block embedded in
// generation prompts. Every label and relationship type appears with
// exact spelling; output is deterministic (sorted).
func (d *SchemaDescriptor) PromptBlock() string {
	var b strings.Builder
	b.WriteString("Node labels and properties:\n")
	for _, label := range d.Labels() {
		node := d.nodes[label]
		b.WriteString("- " + label + "(")
		b.WriteString(strings.Join(sortedProps(node.Properties), ", "))
		b.WriteString(")\n")
	}
	b.WriteString("Relationship types:\n")
	for _, relType := range d.RelationshipTypes() {
		rel := d.relationships[relType]
		b.WriteString(fmt.Sprintf("- (:%s)-[:%s", rel.Source, rel.Type))
		if len(rel.Properties) > 0 {
			b.WriteString(" {" + strings.Join(sortedProps(rel.Properties), ", ") + "}")
		}
		b.WriteString(fmt.Sprintf("]->(:%s)\n", rel.Target))
	}
	return b.String()
}

func sortedProps(props map[string]PropertyType) []string {
	out := make([]string, 0, len(props))
	for name, typ := range props {
		out = append(out, fmt.Sprintf("%s: %s", name, typ))
	}
	sort.Strings(out)
	return out
}

// MovieGraphSchema returns the descriptor for the movie knowledge
// graph this service fronts. This is the single source of truth for
// prompt construction and validation.
func MovieGraphSchema() *SchemaDescriptor {
	d, err := NewSchemaDescriptor("movies-v1",
		[]NodeSchema{
			{
				Label: "Person",
				Properties: map[string]PropertyType{
					"person_id":   TypeInteger,
					"name":        TypeString,
					"birth_year":  TypeInteger,
					"profession":  TypeString,
					"nationality": TypeString,
				},
			},
			{
				Label: "Movie",
				Properties: map[string]PropertyType{
					"movie_id": TypeInteger,
					"title":    TypeString,
					"year":     TypeInteger,
					"genre":    TypeString,
					"director": TypeString,
					"rating":   TypeFloat,
				},
			},
			{
				Label: "Genre",
				Properties: map[string]PropertyType{
					"name": TypeString,
				},
			},
		},
		[]RelationshipSchema{
			{
				Type:   "ACTED_IN",
				Source: "Person",
				Target: "Movie",
				Properties: map[string]PropertyType{
					"character_name": TypeString,
				},
			},
			{
				Type:   "DIRECTED",
				Source: "Person",
				Target: "Movie",
			},
			{
				Type:   "IN_GENRE",
				Source: "Movie",
				Target: "Genre",
			},
		},
	)
	if err != nil {
		// The schema is a compile-time constant; failing to build it is
		// a programming error, not a runtime condition.
		panic(err)
	}
	return d
}
