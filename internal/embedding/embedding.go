package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"ragchat/internal/config"
)

// placeholder token for OpenAI-compatible servers that ignore authentication
const noAuthToken = "not-needed"

// NewEmbedder creates the embedder selected by cfg.Provider, bounded by cfg.Timeout
func NewEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating embedder")

	var (
		embedder embeddings.Embedder
		err      error
	)
	switch cfg.Provider {
	case "ollama":
		embedder, err = NewOllamaEmbedder(cfg)
	case "openai":
		embedder, err = NewOpenAIEmbedder(cfg)
	case "hash":
		embedder = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(embedder, cfg.Timeout), nil
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// NewOpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	token := strings.TrimPrefix(cfg.APIKey, "Bearer ")
	if token == "" {
		token = noAuthToken
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

type timeoutEmbedder struct {
	next    embeddings.Embedder
	timeout time.Duration
}

// WithTimeout bounds every call to next by d. A non-positive d returns next unchanged.
func WithTimeout(next embeddings.Embedder, d time.Duration) embeddings.Embedder {
	if d <= 0 {
		return next
	}
	return &timeoutEmbedder{next: next, timeout: d}
}

func (e *timeoutEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.next.EmbedDocuments(ctx, texts)
}

func (e *timeoutEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.next.EmbedQuery(ctx, text)
}
