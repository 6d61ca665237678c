package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ragchat/internal/helper"
	"ragchat/internal/history"
	"ragchat/internal/httpapi"
	"ragchat/internal/rag"
)

var (
	askBackend string
	askModel   string
	askRaw     bool
	jsonOutput bool
)

func init() {
	askCmd.Flags().StringVarP(&askBackend, "backend", "b", "gemini", "answer backend: gemini (hosted) or local")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model name, backend default when empty")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "print the unformatted model reply")

	for _, cmd := range []*cobra.Command{statsCmd, chunksCmd, statusCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			sessions := history.NewMemoryStore(a.cfg.RAG.HistoryDisplayLimit)
			server := httpapi.NewServer(a.cfg, a.pipeline, sessions)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Run() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("Shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Add documents to the vector store, replacing same-named ones",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			var failed int
			for _, path := range args {
				res, err := a.pipeline.Ingest(ctx, path, filepath.Base(path))
				if err != nil {
					log.Error().Err(err).Str("file", path).Msg("Ingest failed")
					failed++
					continue
				}
				fmt.Printf("%s: %d chunks\n", res.Source, res.ChunkCount)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the ingested documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			answer, err := a.pipeline.Answer(ctx, rag.AnswerRequest{
				Message: args[0],
				Backend: askBackend,
				Model:   askModel,
			})
			if err != nil {
				return err
			}

			if askRaw {
				fmt.Printf("%s\n\n", answer.Raw)
			} else {
				fmt.Printf("%s\n\n", answer.Text)
			}
			if len(answer.Sources) > 0 {
				fmt.Println("Sources:")
				for _, s := range answer.Sources {
					fmt.Printf("  - %s\n", s)
				}
			}
			return nil
		})
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List ingested documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			for _, s := range a.pipeline.ListSources() {
				fmt.Println(s)
			}
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <source>",
	Short: "Remove a document and all of its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			removed, err := a.pipeline.DeleteSource(ctx, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("document %s not found", args[0])
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document from the vector store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if _, err := a.pipeline.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Println("Vector store cleared")
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chunk counts per document",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			stats := a.pipeline.Stats()
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(stats)
			}

			fmt.Printf("Documents: %d\n", stats.SourceCount)
			fmt.Printf("Chunks: %d\n", stats.TotalChunks)
			names := make([]string, 0, len(stats.PerSource))
			for name := range stats.PerSource {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-40s %d\n", name, stats.PerSource[name])
			}
			return nil
		})
	},
}

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Dump stored chunks with previews",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			chunks, err := a.pipeline.Chunks(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				helper.PrettyPrint(chunks)
				return nil
			}
			for _, c := range chunks {
				fmt.Printf("[%s #%d] %s\n", c.Source, c.Sequence, c.Preview)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vector store state and backend availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			status := a.pipeline.Status(ctx)
			if jsonOutput {
				helper.PrettyPrint(status)
				return nil
			}

			fmt.Printf("Documents: %d, chunks: %d\n", status.Stats.SourceCount, status.Stats.TotalChunks)
			names := make([]string, 0, len(status.Backends))
			for name := range status.Backends {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				b := status.Backends[name]
				if b.Available {
					fmt.Printf("  %-8s available\n", name)
				} else {
					fmt.Printf("  %-8s unavailable: %s\n", name, b.Error)
				}
			}
			return nil
		})
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models <gemini|local>",
	Short: "List the models a backend offers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			names, err := a.pipeline.ListModels(ctx, args[0])
			if err != nil {
				var ragErr *rag.Error
				if errors.As(err, &ragErr) && ragErr.Err != nil {
					log.Debug().Err(ragErr.Err).Msg("Model listing failed")
				}
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		})
	},
}
