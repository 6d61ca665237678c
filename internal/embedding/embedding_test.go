package embedding

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/config"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashEmbedder_Normalized(t *testing.T) {
	h := NewHashEmbedder(64)

	for _, text := range []string{"", "pump valve", "Áp suất đường ống"} {
		vec, err := h.EmbedQuery(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, vec, 64)

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	}
}

func TestHashEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	h := NewHashEmbedder(256)
	ctx := context.Background()

	vecs, err := h.EmbedDocuments(ctx, []string{
		"the pressure valve on the main pump",
		"quarterly revenue grew in the north region",
	})
	require.NoError(t, err)
	query, err := h.EmbedQuery(ctx, "main pump pressure valve")
	require.NoError(t, err)

	assert.Greater(t, cosine(query, vecs[0]), cosine(query, vecs[1]))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	a, _ := NewHashEmbedder(32).EmbedQuery(context.Background(), "same text")
	b, _ := NewHashEmbedder(32).EmbedQuery(context.Background(), "same text")
	assert.Equal(t, a, b)
}

type slowEmbedder struct{}

func (slowEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout_BoundsCalls(t *testing.T) {
	e := WithTimeout(slowEmbedder{}, 20*time.Millisecond)

	start := time.Now()
	_, err := e.EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = e.EmbedDocuments(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewEmbedder_Hash(t *testing.T) {
	e, err := NewEmbedder(&config.EmbeddingConfig{Provider: "hash", Dimensions: 16, Timeout: time.Second})
	require.NoError(t, err)

	vec, err := e.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func TestNewEmbedder_Unknown(t *testing.T) {
	_, err := NewEmbedder(&config.EmbeddingConfig{Provider: "nope"})
	assert.Error(t, err)
}
