// Package llm provides generation backends using langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/luma-go/internal/config"
)

// Model wraps a langchaingo LLM for chat-style generation.
type Model struct {
	llm       llms.Model
	modelName string
	timeout   time.Duration
}

// NewFastModel creates the low-latency backend from configuration.
func NewFastModel(cfg config.Config) (*Model, error) {
	return newModel(cfg, cfg.FastProvider, cfg.FastModel, "")
}

// NewDeepModel creates the high-capacity backend from configuration.
// DeepBaseURL routes OpenAI-compatible providers to a custom endpoint.
func NewDeepModel(cfg config.Config) (*Model, error) {
	return newModel(cfg, cfg.DeepProvider, cfg.DeepModel, cfg.DeepBaseURL)
}

func newModel(cfg config.Config, provider, modelName, baseURL string) (*Model, error) {
	var model llms.Model
	var err error

	switch provider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(modelName),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(modelName),
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	return &Model{
		llm:       model,
		modelName: modelName,
		timeout:   cfg.BackendTimeout,
	}, nil
}

// Generate produces a completion for a system/user prompt pair. The call
// is bounded by the configured backend timeout; fatal provider errors are
// tagged with ErrFatalAPI.
func (m *Model) Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("generation failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	slog.Debug("generation complete", "model", m.modelName, "duration_ms", duration.Milliseconds())
	return response.Choices[0].Content, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}
