package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"ragchat/internal/chunkstore"
	"ragchat/internal/config"
	"ragchat/internal/helper"
	"ragchat/internal/history"
	"ragchat/internal/llmservice"
	"ragchat/internal/models"
	"ragchat/internal/parser"
	"ragchat/internal/prompt"
	"ragchat/internal/render"
	"ragchat/internal/retriever"
)

// Pipeline wires extraction, chunking, storage, retrieval and generation
type Pipeline struct {
	store     *chunkstore.Store
	retriever *retriever.Hybrid
	chunker   *parser.Chunker
	backends  *llmservice.Registry
	cfg       config.RAGConfig
}

type IngestResult struct {
	Source     string `json:"source"`
	FileType   string `json:"file_type"`
	ChunkCount int    `json:"chunk_count"`
}

type AnswerRequest struct {
	Message string
	Backend string
	Model   string
	History []history.Turn
}

type Answer struct {
	Text    string   `json:"response"`
	Raw     string   `json:"raw"`
	Sources []string `json:"sources"`
}

type BackendStatus struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type Status struct {
	Stats    models.Stats             `json:"stats"`
	Sources  []string                 `json:"sources"`
	Backends map[string]BackendStatus `json:"backends"`
}

func NewPipeline(store *chunkstore.Store, backends *llmservice.Registry, cfg config.RAGConfig) *Pipeline {
	return &Pipeline{
		store:     store,
		retriever: retriever.NewHybrid(store, cfg.SearchK, cfg.MustCheckKeywords),
		chunker:   parser.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, nil),
		backends:  backends,
		cfg:       cfg,
	}
}

// Ingest extracts, chunks and stores the file at path under declaredFilename.
// Chunks of an earlier file with the same name are replaced.
func (p *Pipeline) Ingest(ctx context.Context, path, declaredFilename string) (*IngestResult, error) {
	if declaredFilename == "" {
		declaredFilename = filepath.Base(path)
	}
	name := helper.SanitizeFilename(declaredFilename)
	if name == "" {
		return nil, newError(KindInput, "No file selected", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, newError(KindInput, fmt.Sprintf("File not found: %s", name), err)
	}

	fileType := parser.FileType(name)
	doc, err := parser.Extract(path, fileType)
	if err != nil {
		log.Error().Err(err).Str("file", name).Msg("Failed to extract text")
		return nil, extractionError(name, err)
	}

	chunks := p.chunker.Chunk(doc.Text, name, fileType)
	if len(chunks) == 0 {
		return nil, extractionError(name, parser.ErrNoContent)
	}

	n, err := p.store.ReplaceSource(ctx, name, chunks)
	if err != nil {
		log.Error().Err(err).Str("file", name).Msg("Failed to store chunks")
		return nil, indexError(err)
	}

	log.Info().Str("file", name).Str("type", fileType).Int("chunks", n).Msg("Document ingested")
	return &IngestResult{Source: name, FileType: fileType, ChunkCount: n}, nil
}

// Answer retrieves context for the message and asks the selected backend
func (p *Pipeline) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, newError(KindInput, "Message cannot be empty", nil)
	}
	backend, err := p.backends.Lookup(req.Backend)
	if err != nil {
		return nil, backendError("", err)
	}

	chunks, err := p.retriever.Retrieve(ctx, message)
	if err != nil {
		log.Error().Err(err).Msg("Retrieval failed")
		return nil, indexError(err)
	}

	llmReq := llmservice.Request{
		Message:  message,
		Context:  prompt.AssembleContextLimit(chunks, p.cfg.MaxContextChars),
		History:  prompt.RenderHistory(history.Window(req.History, p.cfg.HistoryWindow)),
		Language: p.cfg.Language,
		Model:    req.Model,
	}
	raw, err := backend.Generate(ctx, llmReq)
	if err != nil {
		log.Error().Err(err).Str("backend", string(backend.Kind())).Msg("Generation failed")
		return nil, backendError(backend.Kind(), err)
	}

	return &Answer{
		Text:    render.Normalize(raw),
		Raw:     raw,
		Sources: sourcesOf(chunks),
	}, nil
}

func sourcesOf(chunks []models.Chunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		sources = append(sources, c.Source)
	}
	sort.Strings(sources)
	return sources
}

// ListSources returns the sorted names of every ingested document
func (p *Pipeline) ListSources() []string {
	return p.store.Sources()
}

// DeleteSource removes a document and reports whether it existed
func (p *Pipeline) DeleteSource(ctx context.Context, name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, newError(KindInput, "Filename is required", nil)
	}
	removed, err := p.store.DeleteSource(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("file", name).Msg("Failed to delete document")
		return false, indexError(err)
	}
	return removed, nil
}

// ClearAll removes every chunk and re-initializes the store
func (p *Pipeline) ClearAll(ctx context.Context) (bool, error) {
	if err := p.store.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to clear vector store")
		return false, indexError(err)
	}
	if err := p.store.Reinitialize(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to re-initialize vector store")
		return false, indexError(err)
	}
	return true, nil
}

func (p *Pipeline) Stats() models.Stats {
	return p.store.Stats()
}

// Chunks lists every stored chunk with its preview
func (p *Pipeline) Chunks(ctx context.Context) ([]models.ChunkPreview, error) {
	chunks, err := p.store.ListAll(ctx)
	if err != nil {
		return nil, indexError(err)
	}
	return chunks, nil
}

func (p *Pipeline) ListModels(ctx context.Context, backend string) ([]string, error) {
	b, err := p.backends.Lookup(backend)
	if err != nil {
		return nil, backendError("", err)
	}
	names, err := b.ListModels(ctx)
	if err != nil {
		return nil, backendError(b.Kind(), err)
	}
	return names, nil
}

// TestBackend probes one backend
func (p *Pipeline) TestBackend(ctx context.Context, backend string) error {
	b, err := p.backends.Lookup(backend)
	if err != nil {
		return backendError("", err)
	}
	if err := b.Ping(ctx); err != nil {
		return backendError(b.Kind(), err)
	}
	return nil
}

// Status reports the corpus and probes every backend concurrently
func (p *Pipeline) Status(ctx context.Context) *Status {
	status := &Status{
		Stats:    p.store.Stats(),
		Sources:  p.store.Sources(),
		Backends: map[string]BackendStatus{},
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, kind := range p.backends.Kinds() {
		b, err := p.backends.Get(kind)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func(b llmservice.Backend) {
			defer wg.Done()
			st := BackendStatus{Available: true}
			if err := b.Ping(ctx); err != nil {
				st = BackendStatus{Error: backendError(b.Kind(), err).Msg}
			}
			mu.Lock()
			status.Backends[string(b.Kind())] = st
			mu.Unlock()
		}(b)
	}
	wg.Wait()
	return status
}

