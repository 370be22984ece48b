package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/oncoline/chemochat-go/internal/config"
)

// Embedder wraps langchaingo embeddings with dimension validation. The
// output dimension must match the dimension the vector index was built with.
type Embedder struct {
	model     embeddings.Embedder
	dimension int
	modelName string
}

// NewEmbedder creates an embedder based on configuration.
func NewEmbedder(cfg config.Config) (*Embedder, error) {
	var model embeddings.Embedder
	var err error

	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		llm, ollamaErr := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if ollamaErr != nil {
			return nil, fmt.Errorf("create ollama client: %w", ollamaErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		llm, openaiErr := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if openaiErr != nil {
			return nil, fmt.Errorf("create openai client: %w", openaiErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
	}

	return &Embedder{
		model:     model,
		dimension: cfg.EmbedDimension,
		modelName: cfg.EmbedModel,
	}, nil
}

// Embed generates an embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vectors, err := e.model.EmbedDocuments(ctx, []string{text})
	duration := time.Since(start)

	if err != nil {
		slog.Warn("embedding failed", "model", e.modelName, "text_len", len(text),
			"duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	vector := vectors[0]
	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d (model: %s)",
			len(vector), e.dimension, e.modelName)
	}

	slog.Debug("embedded text", "model", e.modelName, "text_len", len(text),
		"duration_ms", duration.Milliseconds())
	return vector, nil
}

// Dimension returns the expected embedding dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.modelName
}
