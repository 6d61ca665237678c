package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/models"
)

type fakeCorpus struct {
	semantic  []models.Chunk
	all       []models.ChunkPreview
	searchErr error
	listErr   error
	gotK      int
}

func (f *fakeCorpus) SearchAndList(_ context.Context, _ string, k int) ([]models.Chunk, []models.ChunkPreview, error) {
	f.gotK = k
	if f.searchErr != nil {
		return nil, nil, f.searchErr
	}
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	semantic := f.semantic
	if len(semantic) > k {
		semantic = semantic[:k]
	}
	return semantic, f.all, nil
}

func chunk(id, source, content string) models.Chunk {
	return models.Chunk{ID: id, Source: source, Content: content, Sequence: 1, FileType: "txt"}
}

func preview(c models.Chunk) models.ChunkPreview {
	return models.ChunkPreview{Chunk: c, Preview: c.Content}
}

func ids(chunks []models.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}

func TestRetrieve_KeywordRecallBeyondSemanticTopK(t *testing.T) {
	var semantic []models.Chunk
	var all []models.ChunkPreview
	for i := 0; i < 12; i++ {
		c := chunk(string(rune('a'+i)), "common.txt", "generic text about maintenance")
		all = append(all, preview(c))
		semantic = append(semantic, c)
	}
	rare := chunk("rare", "codes.txt", "Unit XQ-7731 must be inspected weekly")
	all = append(all, preview(rare))

	corpus := &fakeCorpus{semantic: semantic, all: all}
	h := NewHybrid(corpus, 10, nil)

	results, err := h.Retrieve(context.Background(), "when is xq-7731 inspected?")
	require.NoError(t, err)

	assert.Equal(t, 10, corpus.gotK)
	got := ids(results)
	assert.Contains(t, got, "rare")
	assert.Equal(t, "rare", got[len(got)-1], "keyword-only hits come after semantic hits")
}

func TestRetrieve_DedupKeepsSemanticPosition(t *testing.T) {
	a := chunk("a", "x.txt", "pump alpha")
	b := chunk("b", "x.txt", "pump bravo")
	c := chunk("c", "y.txt", "pump charlie")
	d := chunk("d", "y.txt", "unrelated delta")

	corpus := &fakeCorpus{
		semantic: []models.Chunk{b, a},
		all:      []models.ChunkPreview{preview(a), preview(b), preview(c), preview(d)},
	}
	h := NewHybrid(corpus, 10, nil)

	results, err := h.Retrieve(context.Background(), "pump")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids(results))
}

func TestRetrieve_DuplicateSemanticHitsCollapse(t *testing.T) {
	a := chunk("a", "x.txt", "alpha")
	corpus := &fakeCorpus{semantic: []models.Chunk{a, a}, all: []models.ChunkPreview{preview(a)}}

	results, err := NewHybrid(corpus, 10, nil).Retrieve(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(results))
}

func TestRetrieve_MustCheckKeywords(t *testing.T) {
	hv := chunk("hv", "plant.txt", "Line 208HV pressure limits")
	other := chunk("other", "plant.txt", "General safety notes")
	corpus := &fakeCorpus{all: []models.ChunkPreview{preview(other), preview(hv)}}

	results, err := NewHybrid(corpus, 10, []string{"208HV", " "}).Retrieve(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"hv"}, ids(results))
}

func TestRetrieve_MatchesPreviewOnly(t *testing.T) {
	c := chunk("late", "long.txt", "head text ... hidden keyword far away")
	corpus := &fakeCorpus{all: []models.ChunkPreview{{Chunk: c, Preview: "head text..."}}}

	results, err := NewHybrid(corpus, 10, nil).Retrieve(context.Background(), "keyword")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	results, err := NewHybrid(&fakeCorpus{}, 10, []string{"NMLD"}).Retrieve(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := NewHybrid(&fakeCorpus{searchErr: boom}, 10, nil).Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, boom)

	_, err = NewHybrid(&fakeCorpus{listErr: boom}, 10, nil).Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}

func TestRetrieve_Deterministic(t *testing.T) {
	var all []models.ChunkPreview
	var semantic []models.Chunk
	for i := 0; i < 30; i++ {
		c := chunk(string(rune('A'+i)), "s.txt", "valve report")
		all = append(all, preview(c))
		if i%3 == 0 {
			semantic = append(semantic, c)
		}
	}
	corpus := &fakeCorpus{semantic: semantic, all: all}
	h := NewHybrid(corpus, 10, nil)

	first, err := h.Retrieve(context.Background(), "valve")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := h.Retrieve(context.Background(), "valve")
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
}

func TestTokens(t *testing.T) {
	tokens := Tokens("What is the NMLD code, the 208hv and an ID?", []string{"208HV", "NMLD"})
	assert.Equal(t, []string{"what", "the", "nmld", "code", "208hv", "and"}, tokens)

	assert.Equal(t, []string{"\u0111i\u1ec7n", "nh\u00e0"}, Tokens("\u0110i\u1ec7n nh\u00e0 ok", nil))
	assert.Empty(t, Tokens("a bc", nil))
}
