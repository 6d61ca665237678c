package llmservice

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"ragchat/internal/prompt"
)

// Kind names a backend variant
type Kind string

const (
	Hosted Kind = "hosted"
	Local  Kind = "local"
)

// ParseKind accepts "hosted" (or its alias "gemini") and "local"
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hosted", "gemini":
		return Hosted, nil
	case "local":
		return Local, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Request carries everything a backend needs to answer one question
type Request struct {
	Message  string
	Context  string
	History  string
	Language string
	Model    string
}

// Prompt renders the shared answer template
func (r Request) Prompt() string {
	return prompt.Build(r.Language, r.History, r.Context, r.Message)
}

// Backend produces an answer from a prepared request
type Backend interface {
	Kind() Kind
	Generate(ctx context.Context, req Request) (string, error)
	ListModels(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Registry maps each kind to its backend
type Registry struct {
	backends map[Kind]Backend
}

func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[Kind]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Kind()] = b
	}
	return r
}

func (r *Registry) Get(kind Kind) (Backend, error) {
	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
	return b, nil
}

// Lookup parses name and returns the matching backend
func (r *Registry) Lookup(name string) (Backend, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return r.Get(kind)
}

// Kinds returns the registered kinds in a stable order
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.backends))
	for k := range r.backends {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// NewPromptLogger opens the diagnostic prompt log at path as JSON lines.
// An empty path discards every entry.
func NewPromptLogger(path string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create prompt log folder: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open prompt log: %w", err)
	}
	return zerolog.New(f).With().Timestamp().Logger(), f, nil
}

func logPrompt(l zerolog.Logger, kind Kind, model, text string) {
	l.Info().Str("backend", string(kind)).Str("model", model).Str("prompt", text).Msg("prompt")
}
