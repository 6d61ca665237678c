package llmservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/config"
)

func localConfig(endpoint string) config.LocalLLMConfig {
	return config.LocalLLMConfig{
		Endpoint:     endpoint,
		Model:        "local-model",
		Timeout:      2 * time.Second,
		ProbeTimeout: time.Second,
		Temperature:  0.7,
		MaxTokens:    1000,
	}
}

func testRequest() Request {
	return Request{Message: "What is alpha?", Context: "Document 1 (Source: a.txt):\nalpha\n", Language: "English"}
}

func TestLocalGenerate_OK(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatCompletionsPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"alpha is the first letter"}}]}`))
	}))
	defer srv.Close()

	b := NewLocalBackend(localConfig(srv.URL+chatCompletionsPath), zerolog.Nop())
	answer, err := b.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "alpha is the first letter", answer)

	assert.Equal(t, "local-model", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, "User question: What is alpha?")
}

func TestLocalGenerate_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewLocalBackend(localConfig(srv.URL+chatCompletionsPath), zerolog.Nop()).Generate(context.Background(), testRequest())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "model not loaded", statusErr.Body)
}

func TestLocalGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewLocalBackend(localConfig(srv.URL+chatCompletionsPath), zerolog.Nop()).Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestLocalGenerate_ServerNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + chatCompletionsPath
	srv.Close()

	_, err := NewLocalBackend(localConfig(endpoint), zerolog.Nop()).Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrServerNotRunning)
}

func TestLocalGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := localConfig(srv.URL + chatCompletionsPath)
	cfg.Timeout = 50 * time.Millisecond

	_, err := NewLocalBackend(cfg, zerolog.Nop()).Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLocalGenerate_MissingEndpoint(t *testing.T) {
	_, err := NewLocalBackend(localConfig(""), zerolog.Nop()).Generate(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrMissingEndpoint)
	assert.True(t, IsConfigError(err))
}

func TestLocalListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"phi-2"},{"id":"mistral-7b"}]}`))
	}))
	defer srv.Close()

	b := NewLocalBackend(localConfig(srv.URL+chatCompletionsPath), zerolog.Nop())
	assert.Equal(t, srv.URL, b.BaseURL())

	models, err := b.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"phi-2", "mistral-7b"}, models)
	assert.NoError(t, b.Ping(context.Background()))
}
