package httpapi

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"ragchat/internal/config"
	"ragchat/internal/helper"
	"ragchat/internal/parser"
	"ragchat/internal/rag"
)

type DocumentHandler struct {
	pipeline *rag.Pipeline
	cfg      *config.Config
}

func NewDocumentHandler(pipeline *rag.Pipeline, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, cfg: cfg}
}

func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "No file provided")
	}

	name := helper.SanitizeFilename(fileHeader.Filename)
	if name == "" {
		return NewError(fiber.StatusBadRequest, "No file selected")
	}
	if !h.cfg.ExtensionAllowed(parser.FileType(name)) {
		return NewError(fiber.StatusBadRequest, "File type not allowed")
	}
	if fileHeader.Size > h.cfg.MaxUploadBytes() {
		return NewError(fiber.StatusBadRequest, fmt.Sprintf("File exceeds the %d MB limit", h.cfg.Server.MaxUploadMB))
	}

	if err := helper.CreateFolder(h.cfg.Server.UploadDir); err != nil {
		return err
	}
	// a replacement lands under a temporary name so a rejected upload
	// leaves the previous file of the same name in place
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	path := filepath.Join(h.cfg.Server.UploadDir, name)
	tmpPath := filepath.Join(h.cfg.Server.UploadDir, ".upload-"+id+"-"+name)
	if err := c.SaveFile(fileHeader, tmpPath); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}

	result, err := h.pipeline.Ingest(c.UserContext(), tmpPath, name)
	if err != nil {
		removeUpload(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Failed to keep uploaded file")
		removeUpload(tmpPath)
	}

	return c.JSON(fiber.Map{
		"message":  fmt.Sprintf("File %s uploaded and processed successfully", result.Source),
		"filename": result.Source,
		"chunks":   result.ChunkCount,
	})
}

func removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", path).Msg("Failed to remove upload")
	}
}

func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	sources := h.pipeline.ListSources()
	documents := make([]DocumentInfo, len(sources))
	for i, s := range sources {
		documents[i] = DocumentInfo{Source: s}
	}
	return c.JSON(fiber.Map{"documents": documents})
}

func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	var params DeleteParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	source := params.Name()
	removed, err := h.pipeline.DeleteSource(c.UserContext(), source)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound(fmt.Sprintf("Document %s not found", source))
	}

	if name := helper.SanitizeFilename(source); name != "" {
		removeUpload(filepath.Join(h.cfg.Server.UploadDir, name))
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("Document %s deleted", source), "success": true})
}

func (h *DocumentHandler) HandleVectorDebug(c *fiber.Ctx) error {
	chunks, err := h.pipeline.Chunks(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"total": len(chunks), "chunks": chunks})
}

func (h *DocumentHandler) HandleClear(c *fiber.Ctx) error {
	if _, err := h.pipeline.ClearAll(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Vector store cleared", "success": true})
}

func (h *DocumentHandler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(h.pipeline.Status(c.UserContext()))
}

func (h *DocumentHandler) HandleStats(c *fiber.Ctx) error {
	return c.JSON(h.pipeline.Stats())
}
