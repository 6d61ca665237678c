package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"ragchat/internal/config"
	"ragchat/internal/db"
	"ragchat/internal/embedding"
	"ragchat/internal/models"
)

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func openDB(t *testing.T, path string) *bun.DB {
	t.Helper()
	database, err := db.ConnectDB(&config.DatabaseConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	return database
}

func openStore(t *testing.T, embedder embeddings.Embedder) *Store {
	t.Helper()
	database := openDB(t, filepath.Join(t.TempDir(), "chunks.db"))
	s, err := Open(context.Background(), database, embedder, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func chunksFor(source string, contents ...string) []models.Chunk {
	out := make([]models.Chunk, len(contents))
	for i, c := range contents {
		out[i] = models.Chunk{Content: c, Source: source, Sequence: i + 1, FileType: "txt"}
	}
	return out
}

func TestAddAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, embedding.NewHashEmbedder(128))

	require.NoError(t, s.Add(ctx, chunksFor("pumps.txt",
		"the main pump pressure valve",
		"pump maintenance schedule",
	)))
	require.NoError(t, s.Add(ctx, chunksFor("finance.txt",
		"quarterly revenue report",
	)))

	results, err := s.Search(ctx, "pump pressure valve", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the main pump pressure valve", results[0].Content)
	assert.Equal(t, "pumps.txt", results[0].Source)
	assert.Equal(t, 1, results[0].Sequence)
	assert.NotEmpty(t, results[0].ID)

	results, err = s.Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3, "k larger than the corpus returns everything")

	results, err = s.Search(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_EmptyCorpus(t *testing.T) {
	s := openStore(t, embedding.NewHashEmbedder(64))

	results, err := s.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListAll_Previews(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, embedding.NewHashEmbedder(64))
	long := strings.Repeat("a", 250)
	require.NoError(t, s.Add(ctx, chunksFor("b.txt", "short text", long)))
	require.NoError(t, s.Add(ctx, chunksFor("a.txt", "first source")))

	previews, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, previews, 3)

	assert.Equal(t, "a.txt", previews[0].Source)
	assert.Equal(t, "first source", previews[0].Preview)
	assert.Equal(t, "short text", previews[1].Preview)
	assert.Equal(t, strings.Repeat("a", 200)+"...", previews[2].Preview)
	assert.Equal(t, long, previews[2].Content)
}

func TestDeleteSource(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, embedding.NewHashEmbedder(64))
	require.NoError(t, s.Add(ctx, chunksFor("a.txt", "one", "two", "three")))
	require.NoError(t, s.Add(ctx, chunksFor("b.txt", "four")))

	removed, err := s.DeleteSource(ctx, "missing.txt")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 4, s.Stats().TotalChunks)

	removed, err = s.DeleteSource(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, removed)

	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, 1, stats.SourceCount)
	assert.Equal(t, map[string]int{"b.txt": 1}, stats.PerSource)

	results, err := s.Search(ctx, "one two three", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.txt", results[0].Source)
}

func TestReplaceSource(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, embedding.NewHashEmbedder(64))
	require.NoError(t, s.Add(ctx, chunksFor("a.txt", "old alpha", "old beta")))
	require.NoError(t, s.Add(ctx, chunksFor("b.txt", "other")))

	input := chunksFor("ignored.txt", "new gamma")
	n, err := s.ReplaceSource(ctx, "a.txt", input)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "ignored.txt", input[0].Source, "caller slice is not modified")

	assert.Equal(t, []string{"a.txt", "b.txt"}, s.Sources())
	assert.Equal(t, map[string]int{"a.txt": 1, "b.txt": 1}, s.Stats().PerSource)

	previews, err := s.ListAll(ctx)
	require.NoError(t, err)
	var contents []string
	for _, p := range previews {
		contents = append(contents, p.Content)
	}
	assert.ElementsMatch(t, []string{"new gamma", "other"}, contents)

	results, err := s.Search(ctx, "old alpha", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotContains(t, r.Content, "old")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, embedding.NewHashEmbedder(64))
	require.NoError(t, s.Add(ctx, chunksFor("a.txt", "one", "two")))

	require.NoError(t, s.Clear(ctx))
	stats := s.Stats()
	assert.Equal(t, 0, stats.TotalChunks)
	assert.Equal(t, 0, stats.SourceCount)
	assert.Empty(t, s.Sources())

	results, err := s.Search(ctx, "one", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Add(ctx, chunksFor("c.txt", "after clear")))
	assert.Equal(t, []string{"c.txt"}, s.Sources())
	require.NoError(t, s.Reinitialize(ctx))
	assert.Equal(t, []string{"c.txt"}, s.Sources())
}

func TestOpen_RebuildsFromPersistedRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.db")
	embedder := embedding.NewHashEmbedder(64)

	first, err := Open(ctx, openDB(t, path), embedder, Options{})
	require.NoError(t, err)
	require.NoError(t, first.Add(ctx, chunksFor("a.txt", "alpha", "beta")))
	require.NoError(t, first.Add(ctx, chunksFor("b.txt", "gamma")))
	require.NoError(t, first.Close())

	second, err := Open(ctx, openDB(t, path), embedder, Options{})
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, []string{"a.txt", "b.txt"}, second.Sources())
	assert.Equal(t, 3, second.Stats().TotalChunks)

	results, err := second.Search(ctx, "gamma", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "gamma", results[0].Content)
}

func TestEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, failingEmbedder{})

	err := s.Add(ctx, chunksFor("a.txt", "one"))
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.Equal(t, 0, s.Stats().TotalChunks)

	previews, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, previews)

	results, err := s.Search(ctx, "one", 5)
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.Empty(t, results)
}

func TestConcurrentSearchAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, embedding.NewHashEmbedder(64))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Add(ctx, chunksFor(fmt.Sprintf("doc%d.txt", i), "shared words here", "more shared words")))
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := s.DeleteSource(ctx, fmt.Sprintf("doc%d.txt", i)); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			results, err := s.Search(ctx, "shared words", 10)
			if err != nil {
				errs <- err
				return
			}
			// a source is either fully present or fully gone
			perSource := map[string]int{}
			for _, r := range results {
				perSource[r.Source]++
			}
			for source, n := range perSource {
				if n != 2 {
					errs <- fmt.Errorf("source %s partially visible: %d chunks", source, n)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 0, s.Stats().TotalChunks)
}
