package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"ragchat/internal/config"
)

// GeminiClient is the part of the Gemini API the hosted backend uses
type GeminiClient interface {
	GenerateText(ctx context.Context, model, text string, cfg *genai.GenerateContentConfig) (string, error)
	ModelNames(ctx context.Context) ([]string, error)
}

// GeminiFactory creates a client for an API key
type GeminiFactory func(ctx context.Context, apiKey string) (GeminiClient, error)

// HostedBackend answers through the Gemini API. The client is created on
// first use so a missing key only fails the requests that need it.
type HostedBackend struct {
	cfg       config.GeminiConfig
	factory   GeminiFactory
	promptLog zerolog.Logger

	mu     sync.Mutex
	client GeminiClient
}

func NewHostedBackend(cfg config.GeminiConfig, promptLog zerolog.Logger) *HostedBackend {
	return NewHostedBackendWithFactory(cfg, promptLog, NewGenAIClient)
}

func NewHostedBackendWithFactory(cfg config.GeminiConfig, promptLog zerolog.Logger, factory GeminiFactory) *HostedBackend {
	return &HostedBackend{cfg: cfg, factory: factory, promptLog: promptLog}
}

func (b *HostedBackend) Kind() Kind { return Hosted }

func (b *HostedBackend) Generate(ctx context.Context, req Request) (string, error) {
	model, err := b.resolveModel(req.Model)
	if err != nil {
		return "", err
	}
	client, err := b.getClient(ctx)
	if err != nil {
		return "", err
	}

	text := req.Prompt()
	logPrompt(b.promptLog, Hosted, model, text)

	timeout := b.cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(b.cfg.Temperature),
		MaxOutputTokens: b.cfg.MaxTokens,
	}
	answer, err := client.GenerateText(ctx, model, text, genCfg)
	if err != nil {
		return "", classify(fmt.Errorf("gemini generate failed: %w", err))
	}
	if strings.TrimSpace(answer) == "" {
		return "", ErrEmptyResponse
	}

	log.Debug().Str("model", model).Int("chars", len(answer)).Msg("Gemini answered")
	return answer, nil
}

// ListModels returns the API's model names that Generate accepts,
// leaving out vision variants
func (b *HostedBackend) ListModels(ctx context.Context) ([]string, error) {
	client, err := b.getClient(ctx)
	if err != nil {
		return nil, err
	}

	timeout := b.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names, err := client.ModelNames(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list gemini models: %w", err))
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimPrefix(name, "models/")
		if strings.Contains(strings.ToLower(name), "vision") {
			continue
		}
		if _, err := b.resolveModel(name); err != nil {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func (b *HostedBackend) Ping(ctx context.Context) error {
	_, err := b.ListModels(ctx)
	return err
}

func (b *HostedBackend) resolveModel(requested string) (string, error) {
	if requested == "" {
		return b.cfg.DefaultModel, nil
	}
	if len(b.cfg.Models) == 0 || requested == b.cfg.DefaultModel {
		return requested, nil
	}
	for _, m := range b.cfg.Models {
		if m == requested {
			return requested, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownModel, requested)
}

func (b *HostedBackend) getClient(ctx context.Context) (GeminiClient, error) {
	if b.cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	client, err := b.factory(ctx, b.cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	b.client = client
	return client, nil
}

type genaiClient struct {
	client *genai.Client
}

// NewGenAIClient creates a Gemini API client for apiKey
func NewGenAIClient(ctx context.Context, apiKey string) (GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &genaiClient{client: client}, nil
}

func (c *genaiClient) GenerateText(ctx context.Context, model, text string, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(text), cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (c *genaiClient) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	page, err := c.client.Models.List(ctx, &genai.ListModelsConfig{})
	for {
		if errors.Is(err, genai.ErrPageDone) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		for _, m := range page.Items {
			names = append(names, m.Name)
		}
		if page.NextPageToken == "" {
			return names, nil
		}
		page, err = page.Next(ctx)
	}
}
