package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"ragchat/internal/chunkstore"
	"ragchat/internal/config"
	"ragchat/internal/db"
	"ragchat/internal/embedding"
	"ragchat/internal/llmservice"
	"ragchat/internal/rag"
)

// app holds everything a command needs, in the order it must be released
type app struct {
	cfg       *config.Config
	store     *chunkstore.Store
	pipeline  *rag.Pipeline
	promptLog io.Closer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setLogLevel(cfg.Log.Level)
	log.Debug().Str("path", cfgFile).Msg("Loaded config")

	database, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	store, err := chunkstore.Open(ctx, database, embedder, chunkstore.Options{
		Collection:   cfg.Database.Collection,
		PreviewChars: cfg.RAG.PreviewChars,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}

	promptLog, closer, err := llmservice.NewPromptLogger(cfg.Log.PromptFile)
	if err != nil {
		store.Close()
		return nil, err
	}

	backends := llmservice.NewRegistry(
		llmservice.NewHostedBackend(cfg.Gemini, promptLog),
		llmservice.NewLocalBackend(cfg.LocalLLM, promptLog),
	)

	return &app{
		cfg:       cfg,
		store:     store,
		pipeline:  rag.NewPipeline(store, backends, cfg.RAG),
		promptLog: closer,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close chunk store")
	}
	if err := a.promptLog.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close prompt log")
	}
}

// withApp runs fn with a fully wired app and releases it afterwards
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
