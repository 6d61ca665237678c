package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/chromemdb"
	"ragchat/internal/db"
	"ragchat/internal/helper"
	"ragchat/internal/models"
)

const (
	defaultCollection   = "rag_documents"
	defaultPreviewChars = 200
)

var (
	// ErrEmbedding wraps failures of the embedding service
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndex wraps failures of the persistence layer or the vector index
	ErrIndex = errors.New("index operation failed")
)

type Options struct {
	Collection   string
	PreviewChars int
}

// Store owns the persisted chunks, their embeddings and the known-source set.
// Rows in the database are authoritative; the vector index and the source
// counts are rebuilt from them on Open and Reinitialize.
type Store struct {
	mu       sync.RWMutex
	db       *bun.DB
	index    *chromemdb.VectorDBManager
	embedder embeddings.Embedder
	opts     Options
	sources  map[string]int
}

// Open prepares the schema and loads every persisted chunk into the index
func Open(ctx context.Context, database *bun.DB, embedder embeddings.Embedder, opts Options) (*Store, error) {
	if opts.Collection == "" {
		opts.Collection = defaultCollection
	}
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = defaultPreviewChars
	}

	if err := db.InitDB(ctx, database); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}
	index, err := chromemdb.NewVectorDBManager(opts.Collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}

	s := &Store{
		db:       database,
		index:    index,
		embedder: embedder,
		opts:     opts,
		sources:  map[string]int{},
	}
	if err := s.Reinitialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reinitialize rebuilds the vector index and the source set from persisted rows
func (s *Store) Reinitialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(ctx)
}

func (s *Store) reload(ctx context.Context) error {
	records, err := db.ListChunks(ctx, s.db)
	if err != nil {
		return fmt.Errorf("%w: failed to load chunks: %v", ErrIndex, err)
	}

	docs := make([]chromem.Document, 0, len(records))
	sources := make(map[string]int)
	for _, r := range records {
		vec, err := db.DecodeEmbedding(r.Embedding)
		if err != nil {
			return fmt.Errorf("%w: chunk %s: %v", ErrIndex, r.ID, err)
		}
		docs = append(docs, chromemdb.NewDocument(r.Chunk(), vec))
		sources[r.Source]++
	}

	if err := s.index.Reset(); err != nil {
		return fmt.Errorf("%w: %v", ErrIndex, err)
	}
	if err := s.index.CreateDocs(ctx, docs); err != nil {
		return fmt.Errorf("%w: %v", ErrIndex, err)
	}
	s.sources = sources

	log.Info().Int("chunks", len(records)).Int("sources", len(sources)).Msg("Chunk store loaded")
	return nil
}

// Add embeds and stores chunks. Nothing is committed when any step fails.
func (s *Store) Add(ctx context.Context, chunks []models.Chunk) error {
	records, docs, err := s.prepare(ctx, chunks)
	if err != nil || len(records) == 0 {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, "", records, docs)
}

// ReplaceSource deletes every chunk of source and stores chunks in its place
func (s *Store) ReplaceSource(ctx context.Context, source string, chunks []models.Chunk) (int, error) {
	tagged := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		c.Source = source
		tagged[i] = c
	}
	records, docs, err := s.prepare(ctx, tagged)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(ctx, source, records, docs); err != nil {
		return 0, err
	}
	return len(records), nil
}

// prepare embeds the batch and assigns ids, outside the lock
func (s *Store) prepare(ctx context.Context, chunks []models.Chunk) ([]db.ChunkRecord, []chromem.Document, error) {
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return nil, nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(chunks))
	}

	records := make([]db.ChunkRecord, len(chunks))
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) == 0 {
			return nil, nil, fmt.Errorf("%w: empty vector for chunk %d", ErrEmbedding, i)
		}
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrIndex, err)
		}
		c.ID = id
		records[i] = db.NewRecord(c, vectors[i])
		docs[i] = chromemdb.NewDocument(c, vectors[i])
	}
	return records, docs, nil
}

// commit writes records in one transaction, replacing source first when set.
// Callers hold the write lock.
func (s *Store) commit(ctx context.Context, source string, records []db.ChunkRecord, docs []chromem.Document) error {
	var removed []string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if source != "" {
			ids, err := db.SourceChunkIDs(ctx, tx, source)
			if err != nil {
				return err
			}
			if _, err := db.DeleteSource(ctx, tx, source); err != nil {
				return err
			}
			removed = ids
		}
		if err := db.StoreChunks(ctx, tx, records); err != nil {
			return err
		}
		// index last so a failed index write rolls the rows back
		if err := s.index.CreateDocs(ctx, docs); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		// the index may hold part of the batch, put it back in line with the rows
		if rerr := s.reload(ctx); rerr != nil {
			log.Error().Err(rerr).Msg("Failed to resync vector index")
		}
		return fmt.Errorf("%w: %v", ErrIndex, err)
	}

	if err := s.index.DeleteDocs(ctx, removed...); err != nil {
		log.Error().Err(err).Msg("Failed to drop replaced chunks from index, resyncing")
		if rerr := s.reload(ctx); rerr != nil {
			return fmt.Errorf("%w: %v", ErrIndex, rerr)
		}
		return nil
	}

	if source != "" {
		delete(s.sources, source)
	}
	for _, r := range records {
		s.sources[r.Source]++
	}
	return nil
}

// Search returns at most k chunks by descending similarity to query
func (s *Store) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return []models.Chunk{}, nil
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.search(ctx, vec, k)
}

// ListAll returns every chunk with a content preview, ordered by source and sequence
func (s *Store) ListAll(ctx context.Context) ([]models.ChunkPreview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAll(ctx)
}

// SearchAndList runs Search and ListAll against one snapshot of the store,
// so a source replaced or deleted meanwhile is seen either whole or not at all
func (s *Store) SearchAndList(ctx context.Context, query string, k int) ([]models.Chunk, []models.ChunkPreview, error) {
	var vec []float32
	if k > 0 {
		var err error
		if vec, err = s.embedQuery(ctx, query); err != nil {
			return nil, nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	semantic := []models.Chunk{}
	var all []models.ChunkPreview
	g, gctx := errgroup.WithContext(ctx)
	if k > 0 {
		g.Go(func() error {
			var err error
			semantic, err = s.search(gctx, vec, k)
			return err
		})
	}
	g.Go(func() error {
		var err error
		all, err = s.listAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return semantic, all, nil
}

func (s *Store) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	return vec, nil
}

// search expects s.mu to be held
func (s *Store) search(ctx context.Context, vec []float32, k int) ([]models.Chunk, error) {
	results, err := s.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}
	chunks := make([]models.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, models.ChunkFromMetadata(r.ID, r.Content, r.Metadata))
	}
	return chunks, nil
}

// listAll expects s.mu to be held
func (s *Store) listAll(ctx context.Context) ([]models.ChunkPreview, error) {
	records, err := db.ListChunks(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}
	previews := make([]models.ChunkPreview, 0, len(records))
	for _, r := range records {
		previews = append(previews, models.ChunkPreview{
			Chunk:   r.Chunk(),
			Preview: helper.Truncate(r.Content, s.opts.PreviewChars, models.EllipsisMarker),
		})
	}
	return previews, nil
}

// DeleteSource removes every chunk of name and reports whether any existed
func (s *Store) DeleteSource(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sources[name] == 0 {
		return false, nil
	}

	var ids []string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if ids, err = db.SourceChunkIDs(ctx, tx, name); err != nil {
			return err
		}
		_, err = db.DeleteSource(ctx, tx, name)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIndex, err)
	}

	if err := s.index.DeleteDocs(ctx, ids...); err != nil {
		log.Error().Err(err).Str("source", name).Msg("Failed to drop chunks from index, resyncing")
		if rerr := s.reload(ctx); rerr != nil {
			return false, fmt.Errorf("%w: %v", ErrIndex, rerr)
		}
		return len(ids) > 0, nil
	}
	delete(s.sources, name)
	return len(ids) > 0, nil
}

// Clear removes every chunk and leaves an empty, usable store
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := db.DeleteAll(ctx, s.db)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndex, err)
	}
	if err := s.index.Reset(); err != nil {
		return fmt.Errorf("%w: %v", ErrIndex, err)
	}
	s.sources = map[string]int{}

	log.Info().Int64("chunks", n).Msg("Chunk store cleared")
	return nil
}

// Stats summarizes the corpus
func (s *Store) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.Stats{PerSource: make(map[string]int, len(s.sources))}
	for source, n := range s.sources {
		stats.PerSource[source] = n
		stats.TotalChunks += n
	}
	stats.SourceCount = len(s.sources)
	return stats
}

// Sources returns the sorted names of every indexed source
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}
