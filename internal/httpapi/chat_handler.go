package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"ragchat/internal/helper"
	"ragchat/internal/history"
	"ragchat/internal/rag"
)

const sessionCookie = "session_id"

type ChatHandler struct {
	pipeline     *rag.Pipeline
	sessions     history.Store
	displayLimit int
}

func NewChatHandler(pipeline *rag.Pipeline, sessions history.Store, displayLimit int) *ChatHandler {
	if displayLimit <= 0 {
		displayLimit = history.DisplayLimit
	}
	return &ChatHandler{pipeline: pipeline, sessions: sessions, displayLimit: displayLimit}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}
	if params.ModelType == "" {
		params.ModelType = "gemini"
	}

	session, err := sessionID(c)
	if err != nil {
		return err
	}

	answer, err := h.pipeline.Answer(c.UserContext(), rag.AnswerRequest{
		Message: params.Message,
		Backend: params.ModelType,
		Model:   params.ModelName,
		History: h.sessions.Recent(session, history.PromptWindow),
	})
	if err != nil {
		return err
	}

	h.sessions.Append(session, history.Turn{
		User:      params.Message,
		Assistant: answer.Text,
		Timestamp: time.Now(),
	})

	return c.JSON(fiber.Map{
		"response":   answer.Text,
		"sources":    answer.Sources,
		"model_type": params.ModelType,
	})
}

func (h *ChatHandler) HandleHistory(c *fiber.Ctx) error {
	session, err := sessionID(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"history": h.sessions.Recent(session, h.displayLimit)})
}

func (h *ChatHandler) HandleClearHistory(c *fiber.Ctx) error {
	session, err := sessionID(c)
	if err != nil {
		return err
	}
	h.sessions.Clear(session)
	return c.JSON(fiber.Map{"message": "Chat history cleared"})
}

// sessionID returns the caller's session, issuing a new cookie when missing
func sessionID(c *fiber.Ctx) (string, error) {
	if id := c.Cookies(sessionCookie); id != "" {
		return id, nil
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return "", err
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    id,
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return id, nil
}
