// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// QueryValidator statically checks a candidate query before it may
// reach the store. Checks run in a fixed order, cheapest first:
// syntax well-formedness, then the write-operation whitelist, then
// schema conformance. The validator performs no I/O and is
// deterministic given its inputs.
type QueryValidator struct {
	schema *SchemaDescriptor
}

// NewQueryValidator creates a validator bound to the schema.
func NewQueryValidator(schema *SchemaDescriptor) *QueryValidator {
	return &QueryValidator{schema: schema}
}

// mutatingKeywords are rejected anywhere outside string literals.
// CALL is included: procedure invocation can mutate and cannot be
// whitelisted statically.
var mutatingKeywords = map[string]struct{}{
	"CREATE":  {},
	"MERGE":   {},
	"DELETE":  {},
	"DETACH":  {},
	"SET":     {},
	"REMOVE":  {},
	"DROP":    {},
	"FOREACH": {},
	"LOAD":    {},
	"CALL":    {},
}

// openingClauses are the read clauses a query may start with.
var openingClauses = map[string]struct{}{
	"MATCH":    {},
	"OPTIONAL": {},
	"RETURN":   {},
	"WITH":     {},
	"UNWIND":   {},
}

var (
	labelPattern    = regexp.MustCompile(`\(\s*[A-Za-z_0-9]*\s*:\s*([A-Za-z_][A-Za-z0-9_]*)`)
	relTypePattern  = regexp.MustCompile(`\[\s*[A-Za-z_0-9]*\s*:\s*([A-Za-z_][A-Za-z0-9_]*)`)
	propertyPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\.([A-Za-z_][A-Za-z0-9_]*)`)
	mapKeyPattern   = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	tokenPattern    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

// Validate checks the candidate and returns nil when it may execute.
// Failures carry the offending token for the correction prompt.
//
// Gross well-formedness runs first, then the mutation scan, then the
// clause-shape checks. The mutation scan precedes the clause checks so
// a query led by CREATE or CALL is reported as a disallowed operation
// rather than a malformed read query.
func (v *QueryValidator) Validate(candidate QueryCandidate) *TurnFailure {
	trimmed := strings.TrimSpace(candidate.Text)
	if trimmed == "" {
		return &TurnFailure{Kind: FailureSyntax, Detail: "query is empty"}
	}

	stripped, ok := stripStringLiterals(trimmed)
	if !ok {
		return &TurnFailure{Kind: FailureSyntax, Detail: "unterminated string literal"}
	}

	if token, balanced := checkBalanced(stripped); !balanced {
		return &TurnFailure{
			Kind:   FailureSyntax,
			Detail: "unbalanced brackets",
			Token:  token,
		}
	}

	if f := v.checkMutations(stripped); f != nil {
		return f
	}
	if f := v.checkClauses(stripped); f != nil {
		return f
	}
	return v.checkSchema(stripped)
}

var returnPattern = regexp.MustCompile(`\bRETURN\b`)

// checkClauses verifies the query starts with a read clause and
// contains a RETURN.
func (v *QueryValidator) checkClauses(stripped string) *TurnFailure {
	first := strings.ToUpper(tokenPattern.FindString(stripped))
	if _, ok := openingClauses[first]; !ok {
		return &TurnFailure{
			Kind:   FailureSyntax,
			Detail: "query must start with a read clause (MATCH, OPTIONAL MATCH, RETURN, WITH, UNWIND)",
			Token:  first,
		}
	}

	if !returnPattern.MatchString(strings.ToUpper(stripped)) {
		return &TurnFailure{Kind: FailureSyntax, Detail: "query has no RETURN clause"}
	}

	return nil
}

// checkMutations rejects any write or mutating operation, regardless
// of surrounding valid read syntax.
func (v *QueryValidator) checkMutations(stripped string) *TurnFailure {
	for _, token := range tokenPattern.FindAllString(stripped, -1) {
		upper := strings.ToUpper(token)
		if _, bad := mutatingKeywords[upper]; bad {
			return &TurnFailure{
				Kind:   FailureDisallowed,
				Detail: fmt.Sprintf("query contains the mutating operation %s; this interface is read-only", upper),
				Token:  upper,
			}
		}
	}
	return nil
}

// checkSchema verifies every referenced label, relationship type, and
// property name against the schema descriptor, in that order.
func (v *QueryValidator) checkSchema(stripped string) *TurnFailure {
	for _, m := range labelPattern.FindAllStringSubmatch(stripped, -1) {
		if !v.schema.HasLabel(m[1]) {
			return &TurnFailure{
				Kind:   FailureUnknownSchema,
				Detail: fmt.Sprintf("node label %s does not exist in the schema", m[1]),
				Token:  m[1],
			}
		}
	}
	for _, m := range relTypePattern.FindAllStringSubmatch(stripped, -1) {
		if !v.schema.HasRelationship(m[1]) {
			return &TurnFailure{
				Kind:   FailureUnknownSchema,
				Detail: fmt.Sprintf("relationship type %s does not exist in the schema", m[1]),
				Token:  m[1],
			}
		}
	}
	for _, m := range propertyPattern.FindAllStringSubmatch(stripped, -1) {
		if !v.schema.HasProperty(m[1]) {
			return &TurnFailure{
				Kind:   FailureUnknownSchema,
				Detail: fmt.Sprintf("property %s does not exist in the schema", m[1]),
				Token:  m[1],
			}
		}
	}
	for _, span := range braceSpans(stripped) {
		for _, m := range mapKeyPattern.FindAllStringSubmatch(span, -1) {
			if !v.schema.HasProperty(m[1]) {
				return &TurnFailure{
					Kind:   FailureUnknownSchema,
					Detail: fmt.Sprintf("property %s does not exist in the schema", m[1]),
					Token:  m[1],
				}
			}
		}
	}
	return nil
}

// stripStringLiterals blanks out the contents of single- and
// double-quoted literals so later checks never match inside them.
// Returns false when a literal is unterminated.
func stripStringLiterals(query string) (string, bool) {
	out := []byte(query)
	var quote byte
	escaped := false
	for i := 0; i < len(out); i++ {
		c := out[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
				out[i] = ' '
			case c == '\\':
				escaped = true
				out[i] = ' '
			case c == quote:
				quote = 0
			default:
				out[i] = ' '
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
		}
	}
	return string(out), quote == 0
}

// checkBalanced verifies (), [], {} nest correctly.
func checkBalanced(stripped string) (string, bool) {
	var stack []byte
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}
	for i := 0; i < len(stripped); i++ {
		c := stripped[i]
		switch c {
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return string(c), false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return string(stack[len(stack)-1]), false
	}
	return "", true
}

// braceSpans returns the contents of each {...} span, for map-literal
// property key checks.
func braceSpans(stripped string) []string {
	var spans []string
	depth := 0
	start := -1
	for i := 0; i < len(stripped); i++ {
		switch stripped[i] {
		case '{':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				spans = append(spans, stripped[start:i])
				start = -1
			}
		}
	}
	return spans
}
