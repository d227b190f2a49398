package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// DeepseekClient talks to Deepseek through OpenRouter's OpenAI-compatible
// API. Only the base URL and model name differ from a stock OpenAI setup.
type DeepseekClient struct {
	client *openai.Client
	model  string
}

func NewDeepseekClient() (*DeepseekClient, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	model := os.Getenv("DEEPSEEK_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openrouter_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenRouter API Key from container secrets")
		} else {
			slog.Error("OPENROUTER_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "deepseek/deepseek-chat-v3-0324:free"
		slog.Warn("DEEPSEEK_MODEL not set, defaulting to deepseek-chat-v3", "model", model)
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(getEnvString("OPENROUTER_BASE_URL", defaultOpenRouterBaseURL), "/")

	slog.Info("Initializing Deepseek client via OpenRouter", "model", model, "base_url", config.BaseURL)
	return &DeepseekClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Complete implements the LLMClient interface.
func (d *DeepseekClient) Complete(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via Deepseek", "model", d.model)
	req := openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyDeepseekError(err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Deepseek returned no choices")
		return "", &ServiceError{Backend: "deepseek", Err: fmt.Errorf("no choices in completion")}
	}
	slog.Debug("Received response from Deepseek", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// classifyDeepseekError maps go-openai errors onto the service taxonomy.
func classifyDeepseekError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("deepseek: %w", ErrTimeout)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("deepseek: %w", ErrRateLimited)
	}
	return &ServiceError{Backend: "deepseek", Err: err}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
