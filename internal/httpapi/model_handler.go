package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"ragchat/internal/rag"
)

type ModelHandler struct {
	pipeline *rag.Pipeline
}

func NewModelHandler(pipeline *rag.Pipeline) *ModelHandler {
	return &ModelHandler{pipeline: pipeline}
}

func (h *ModelHandler) HandleLocalModels(c *fiber.Ctx) error {
	return h.listModels(c, "local")
}

func (h *ModelHandler) HandleGeminiModels(c *fiber.Ctx) error {
	return h.listModels(c, "gemini")
}

func (h *ModelHandler) listModels(c *fiber.Ctx, backend string) error {
	names, err := h.pipeline.ListModels(c.UserContext(), backend)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"models": names})
}

func (h *ModelHandler) HandleTestConnection(c *fiber.Ctx) error {
	var params ConnectionParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	if err := h.pipeline.TestBackend(c.UserContext(), params.ModelType); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": params.ModelType + " connection OK"})
}
