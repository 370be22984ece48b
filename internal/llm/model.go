// Package llm provides LLM and embedding services using langchaingo.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/oncoline/chemochat-go/internal/config"
)

// Model wraps a langchaingo LLM for streamed generation.
type Model struct {
	llm       llms.Model
	modelName string
}

// NewModel creates an LLM model based on configuration.
func NewModel(cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
	}, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Stream generates a response for the system/user prompt pair, invoking fn
// for each fragment as it arrives. fn returning an error, or ctx being
// canceled, aborts the generation.
func (m *Model) Stream(ctx context.Context, systemPrompt, userPrompt string, fn func(ctx context.Context, chunk []byte) error) error {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	_, err := m.llm.GenerateContent(ctx, messages, llms.WithStreamingFunc(fn))
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}

// Generate produces a complete response without streaming.
func (m *Model) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := m.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return response.Choices[0].Content, nil
}
