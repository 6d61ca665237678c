package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"ragchat/internal/rag"
)

type Error struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

func ErrBadRequest() Error {
	return NewError(fiber.StatusBadRequest, "invalid JSON request")
}

func ErrNotFound(msg string) Error {
	return NewError(fiber.StatusNotFound, msg)
}

type ValidationError struct {
	Status int               `json:"-"`
	Errors map[string]string `json:"errors"`
	Msg    string            `json:"error"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errs map[string]string) ValidationError {
	return ValidationError{Status: fiber.StatusBadRequest, Errors: errs, Msg: "validation failed"}
}

// statusFor maps pipeline failure kinds to HTTP status codes
func statusFor(kind rag.ErrorKind) int {
	switch kind {
	case rag.KindInput, rag.KindConfig:
		return fiber.StatusBadRequest
	case rag.KindExtraction:
		return fiber.StatusUnprocessableEntity
	case rag.KindBackend:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every handler error as {"error": msg}
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		apiErr   Error
		valErr   ValidationError
		ragErr   *rag.Error
		fiberErr *fiber.Error
	)
	switch {
	case errors.As(err, &apiErr):
		return c.Status(apiErr.Code).JSON(apiErr)
	case errors.As(err, &valErr):
		return c.Status(valErr.Status).JSON(valErr)
	case errors.As(err, &ragErr):
		code := statusFor(ragErr.Kind)
		if code >= fiber.StatusInternalServerError {
			log.Error().Err(ragErr.Err).Str("path", c.Path()).Msg(ragErr.Msg)
		}
		return c.Status(code).JSON(NewError(code, ragErr.Msg))
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, "internal server error"))
}
