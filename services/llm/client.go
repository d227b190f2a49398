package llm

import (
	"context"
	"errors"
	"fmt"
)

// GenerationParams carries optional sampling parameters for a completion.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Sentinel errors for the service boundary. Backends map their native
// failures onto these so callers never branch on backend identity.
var (
	// ErrRateLimited indicates the provider rejected the call for quota
	// or rate reasons. Retryable after backoff.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrTimeout indicates the per-call deadline expired before a
	// completion arrived.
	ErrTimeout = errors.New("llm: request timed out")
)

// ServiceError wraps any other provider failure (unreachable host,
// malformed response, empty completion).
type ServiceError struct {
	Backend string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("llm backend %q: %v", e.Backend, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// LLMClient defines the standard interface for any LLM backend.
// Implementations must honor context cancellation and map provider
// errors onto ErrRateLimited, ErrTimeout, or *ServiceError.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
