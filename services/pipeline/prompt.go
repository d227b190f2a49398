// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"
	"strings"
)

// Correction carries the previous failed attempt into a retry prompt.
type Correction struct {
	Query   string
	Failure TurnFailure
}

// PromptBuilder composes generation prompts from the schema, the
// question, bounded history, and (on retries) the previous failure.
// It is a pure function of its inputs and performs no I/O.
type PromptBuilder struct {
	schema       *SchemaDescriptor
	historyTurns int
}

// NewPromptBuilder creates a builder that includes at most historyTurns
// prior turns in each prompt to bound prompt size.
func NewPromptBuilder(schema *SchemaDescriptor, historyTurns int) *PromptBuilder {
	if historyTurns < 0 {
		historyTurns = 0
	}
	return &PromptBuilder{schema: schema, historyTurns: historyTurns}
}

// HistoryTurns returns the history bound K.
func (b *PromptBuilder) HistoryTurns() int { return b.historyTurns }

// BuildGeneration renders the prompt for one query-generation attempt.
// When correction is non-nil the prompt states the failed query text
// and the failure detail and demands a corrected query.
func (b *PromptBuilder) BuildGeneration(question string, history []ConversationTurn, correction *Correction) string {
	var p strings.Builder

	p.WriteString("You translate questions about a movie database into Cypher queries.\n")
	p.WriteString("The Neo4j database has exactly this schema:\n\n")
	p.WriteString(b.schema.PromptBlock())
	p.WriteString("\nRules:\n")
	p.WriteString("- Generate a single read-only Cypher query answering the question.\n")
	p.WriteString("- Use only the labels, relationship types, and properties listed above, with exact spelling.\n")
	p.WriteString("- Never use CREATE, MERGE, SET, DELETE, REMOVE, DROP, or any other write operation.\n")
	p.WriteString("- Wrap the query in a fenced code block tagged cypher, like:\n")
	p.WriteString("```cypher\nMATCH (m:Movie) RETURN m.title\n```\n")

	if n := len(history); n > 0 && b.historyTurns > 0 {
		if n > b.historyTurns {
			history = history[n-b.historyTurns:]
		}
		p.WriteString("\nRecent conversation, oldest first (resolve follow-up references against it):\n")
		for _, turn := range history {
			p.WriteString("Q: " + turn.Question + "\n")
			if turn.FailureReason != FailureNone {
				p.WriteString("A: (could not be answered)\n")
			} else if turn.Answer != "" {
				p.WriteString("A: " + turn.Answer + "\n")
			}
		}
	}

	if correction != nil {
		p.WriteString("\nYour previous attempt failed and a corrected query is required.\n")
		// No query text when the previous attempt produced none, for
		// example a service failure before extraction.
		if correction.Query != "" {
			p.WriteString("Failed query:\n```cypher\n" + correction.Query + "\n```\n")
		}
		p.WriteString("Failure: " + correction.Failure.Error() + "\n")
		p.WriteString("Produce a corrected query that avoids this failure.\n")
	}

	p.WriteString("\nQuestion: " + question + "\n")
	return p.String()
}

// BuildSynthesis renders the prompt that turns result rows into a
// natural-language answer. renderedRows is the deterministic textual
// row rendering produced by the synthesizer; truncated marks that rows
// beyond the cap were omitted.
func (b *PromptBuilder) BuildSynthesis(question, renderedRows string, truncated bool) string {
	var p strings.Builder
	p.WriteString("You answer questions about a movie database.\n")
	p.WriteString("Use ONLY the query results below; do not introduce names, titles, or facts that are not present in them.\n")
	p.WriteString("Answer concisely and clearly, in markdown where appropriate.\n\n")
	p.WriteString(fmt.Sprintf("Question: %s\n\nQuery results:\n%s", question, renderedRows))
	if truncated {
		p.WriteString("(more results omitted)\n")
	}
	p.WriteString("\nAnswer the question based on these results.\n")
	return p.String()
}
