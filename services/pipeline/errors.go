// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "fmt"

// FailureKind classifies why a turn attempt (or the whole turn) failed.
type FailureKind int

const (
	// FailureNone marks a turn that completed successfully.
	FailureNone FailureKind = iota

	// FailureExtraction: the model's completion contained no fenced
	// query block. Treated like a validation failure for retries.
	FailureExtraction

	// FailureSyntax: the candidate query was malformed, either caught
	// statically by the validator or rejected by the store.
	FailureSyntax

	// FailureDisallowed: the candidate contained a write or mutating
	// operation. The pipeline is read-only by contract.
	FailureDisallowed

	// FailureUnknownSchema: the candidate referenced a label,
	// relationship type, or property absent from the schema.
	FailureUnknownSchema

	// FailureTimeout: the store did not answer within the deadline.
	FailureTimeout

	// FailureConnection: the store was unreachable even after
	// transport-level retries.
	FailureConnection

	// FailureService: the language model service itself failed
	// (rate limit, timeout, unreachable).
	FailureService
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureExtraction:
		return "extraction"
	case FailureSyntax:
		return "syntax"
	case FailureDisallowed:
		return "disallowed_operation"
	case FailureUnknownSchema:
		return "unknown_schema_element"
	case FailureTimeout:
		return "timeout"
	case FailureConnection:
		return "connection"
	case FailureService:
		return "service"
	default:
		return "unknown"
	}
}

// Retryable reports whether re-prompting the model with the failure as
// correction context can plausibly fix it. Connection failures cannot
// be fixed by rewriting a query; DisallowedOperation is governed by a
// separate policy switch on the controller.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureExtraction, FailureSyntax, FailureUnknownSchema, FailureTimeout, FailureService:
		return true
	default:
		return false
	}
}

// TurnFailure carries a typed failure through the state machine and
// into correction prompts. Token, when set, is the offending substring
// (a mutating keyword, an unknown label) to point the model at.
type TurnFailure struct {
	Kind   FailureKind
	Detail string
	Token  string
}

func (f *TurnFailure) Error() string {
	if f.Token != "" {
		return fmt.Sprintf("%s: %s (offending token %q)", f.Kind, f.Detail, f.Token)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}
