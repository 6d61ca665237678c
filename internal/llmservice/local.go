package llmservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ragchat/internal/config"
	"ragchat/internal/prompt"
)

const chatCompletionsPath = "/v1/chat/completions"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// LocalBackend talks to an OpenAI-compatible chat server such as LM Studio
type LocalBackend struct {
	cfg       config.LocalLLMConfig
	client    *http.Client
	promptLog zerolog.Logger
}

func NewLocalBackend(cfg config.LocalLLMConfig, promptLog zerolog.Logger) *LocalBackend {
	return &LocalBackend{cfg: cfg, client: &http.Client{}, promptLog: promptLog}
}

func (b *LocalBackend) Kind() Kind { return Local }

func (b *LocalBackend) Generate(ctx context.Context, req Request) (string, error) {
	if b.cfg.Endpoint == "" {
		return "", ErrMissingEndpoint
	}
	model := req.Model
	if model == "" {
		model = b.cfg.Model
	}

	text := req.Prompt()
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.SystemInstruction(req.Language)},
			{Role: "user", Content: text},
		},
		Temperature: b.cfg.Temperature,
		MaxTokens:   b.cfg.MaxTokens,
		Stream:      false,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	logPrompt(b.promptLog, Local, model, text)

	timeout := b.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Backend: string(Local), Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", classify(fmt.Errorf("failed to decode response: %w", err))
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	log.Debug().Str("model", model).Int("chars", len(out.Choices[0].Message.Content)).Msg("Local model answered")
	return out.Choices[0].Message.Content, nil
}

// ListModels queries GET <base>/v1/models
func (b *LocalBackend) ListModels(ctx context.Context) ([]string, error) {
	if b.cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	resp, err := b.probe(ctx, b.BaseURL()+"/v1/models")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}
	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// Ping checks that the server answers its model listing
func (b *LocalBackend) Ping(ctx context.Context) error {
	_, err := b.ListModels(ctx)
	return err
}

// BaseURL is the configured endpoint without the chat completions path
func (b *LocalBackend) BaseURL() string {
	base := strings.TrimRight(b.cfg.Endpoint, "/")
	return strings.TrimSuffix(base, chatCompletionsPath)
}

func (b *LocalBackend) probe(ctx context.Context, url string) (*http.Response, error) {
	timeout := b.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		cancel()
		return nil, classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{Backend: string(Local), Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
