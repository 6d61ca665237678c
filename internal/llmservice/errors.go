package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	ErrUnknownBackend    = errors.New("unknown backend")
	ErrUnknownModel      = errors.New("unknown model")
	ErrMissingCredential = errors.New("API key not configured")
	ErrMissingEndpoint   = errors.New("endpoint not configured")
	ErrServerNotRunning  = errors.New("server is not running")
	ErrTimeout           = errors.New("request timed out")
	ErrEmptyResponse     = errors.New("empty response")
)

// StatusError is a non-200 reply from a backend
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s backend returned status %d: %s", e.Backend, e.Code, e.Body)
}

// IsConfigError reports whether err comes from missing or invalid settings
// rather than from the backend itself
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrMissingEndpoint) ||
		errors.Is(err, ErrUnknownBackend) ||
		errors.Is(err, ErrUnknownModel)
}

// classify maps transport failures onto the package sentinels
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrServerNotRunning, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
