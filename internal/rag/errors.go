package rag

import (
	"errors"
	"fmt"

	"ragchat/internal/chunkstore"
	"ragchat/internal/llmservice"
	"ragchat/internal/parser"
)

// ErrorKind classifies pipeline failures for callers
type ErrorKind string

const (
	KindInput      ErrorKind = "input"
	KindConfig     ErrorKind = "config"
	KindExtraction ErrorKind = "extraction"
	KindIndex      ErrorKind = "index"
	KindBackend    ErrorKind = "backend"
)

// Error is the failure outcome of every pipeline operation.
// Msg is safe to show to users; Err keeps the cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of a pipeline error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func extractionError(name string, err error) *Error {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return newError(KindExtraction, fmt.Sprintf("Unsupported file format: %s", name), err)
	case errors.Is(err, parser.ErrNoContent):
		return newError(KindExtraction, fmt.Sprintf("No text content found in %s", name), err)
	default:
		return newError(KindExtraction, fmt.Sprintf("Failed to read %s", name), err)
	}
}

func indexError(err error) *Error {
	if errors.Is(err, chunkstore.ErrEmbedding) {
		return newError(KindIndex, "Embedding service is unavailable", err)
	}
	return newError(KindIndex, "Vector store operation failed", err)
}

func backendError(kind llmservice.Kind, err error) *Error {
	var statusErr *llmservice.StatusError
	switch {
	case errors.Is(err, llmservice.ErrMissingCredential):
		return newError(KindConfig, "Google API key not configured", err)
	case errors.Is(err, llmservice.ErrMissingEndpoint):
		return newError(KindConfig, "Local LLM endpoint not configured", err)
	case errors.Is(err, llmservice.ErrUnknownBackend):
		return newError(KindConfig, "Unknown model type", err)
	case errors.Is(err, llmservice.ErrUnknownModel):
		return newError(KindConfig, "Unknown model name", err)
	case errors.Is(err, llmservice.ErrServerNotRunning):
		return newError(KindBackend, "Local LLM server is not running. Start LM Studio and load a model.", err)
	case errors.Is(err, llmservice.ErrTimeout):
		return newError(KindBackend, fmt.Sprintf("Request to the %s model timed out", kind), err)
	case errors.Is(err, llmservice.ErrEmptyResponse):
		return newError(KindBackend, fmt.Sprintf("The %s model returned an empty answer", kind), err)
	case errors.As(err, &statusErr):
		return newError(KindBackend, fmt.Sprintf("The %s model returned status %d", kind, statusErr.Code), err)
	default:
		return newError(KindBackend, fmt.Sprintf("Failed to get an answer from the %s model", kind), err)
	}
}
