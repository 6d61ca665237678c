package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"ragchat/internal/config"
	"ragchat/internal/history"
	"ragchat/internal/rag"
)

const uploadSlack = 1 << 20

type Server struct {
	listenAddr string
	app        *fiber.App
}

// NewServer registers every route on a fresh fiber app
func NewServer(cfg *config.Config, pipeline *rag.Pipeline, sessions history.Store) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		BodyLimit:             int(cfg.MaxUploadBytes()) + uploadSlack,
		DisableStartupMessage: true,
	})

	var (
		chat      = NewChatHandler(pipeline, sessions, cfg.RAG.HistoryDisplayLimit)
		documents = NewDocumentHandler(pipeline, cfg)
		models    = NewModelHandler(pipeline)
	)

	app.Get("/check/healthy", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/chat", chat.HandleChat)
	app.Get("/history", chat.HandleHistory)
	app.Post("/clear-history", chat.HandleClearHistory)

	app.Post("/upload", documents.HandleUpload)
	app.Get("/documents", documents.HandleList)
	app.Post("/delete-document", documents.HandleDelete)
	app.Get("/vector-debug", documents.HandleVectorDebug)
	app.Post("/clear-vectorstore", documents.HandleClear)
	app.Get("/vectorstore-status", documents.HandleStatus)
	app.Get("/stats", documents.HandleStats)

	app.Get("/local-models", models.HandleLocalModels)
	app.Get("/gemini-models", models.HandleGeminiModels)
	app.Post("/test-connection", models.HandleTestConnection)

	return &Server{listenAddr: cfg.Server.Addr, app: app}
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Info().Str("addr", s.listenAddr).Msg("HTTP server listening")
	return s.app.Listen(s.listenAddr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("HTTP server stopping")
	return s.app.ShutdownWithContext(ctx)
}
