package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestServiceError(t *testing.T) {
	t.Run("unwrap exposes the cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := &ServiceError{Backend: "deepseek", Err: cause}
		if !errors.Is(err, cause) {
			t.Error("errors.Is could not find the wrapped cause")
		}
	})

	t.Run("error string names the backend", func(t *testing.T) {
		err := &ServiceError{Backend: "gemini", Err: errors.New("boom")}
		if got := err.Error(); got == "" {
			t.Error("Error() returned empty string")
		}
	})
}

func TestClassifyDeepseekError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			"rate limit maps to sentinel",
			&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests},
			ErrRateLimited,
		},
		{
			"deadline maps to timeout",
			context.DeadlineExceeded,
			ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyDeepseekError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyDeepseekError(%v) = %v, want errors.Is %v", tt.err, got, tt.want)
			}
		})
	}

	t.Run("other errors become ServiceError", func(t *testing.T) {
		got := classifyDeepseekError(errors.New("boom"))
		var svcErr *ServiceError
		if !errors.As(got, &svcErr) {
			t.Fatalf("got %T, want *ServiceError", got)
		}
		if svcErr.Backend != "deepseek" {
			t.Errorf("Backend = %q, want deepseek", svcErr.Backend)
		}
	})
}

func TestGetEnvString(t *testing.T) {
	t.Run("returns value when set", func(t *testing.T) {
		t.Setenv("LLM_TEST_KEY", "value")
		if got := getEnvString("LLM_TEST_KEY", "fallback"); got != "value" {
			t.Errorf("got %q, want value", got)
		}
	})

	t.Run("returns default when unset", func(t *testing.T) {
		if got := getEnvString("LLM_TEST_MISSING", "fallback"); got != "fallback" {
			t.Errorf("got %q, want fallback", got)
		}
	})
}
