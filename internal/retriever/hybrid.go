package retriever

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"ragchat/internal/models"
)

const defaultSemanticK = 10

// runs of letters, marks, digits or underscore, at least three characters long
var tokenRe = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{3,}`)

// Corpus is the read side of the chunk store. SearchAndList returns the
// top-k semantic hits and every chunk preview from the same snapshot.
type Corpus interface {
	SearchAndList(ctx context.Context, query string, k int) ([]models.Chunk, []models.ChunkPreview, error)
}

// Hybrid combines semantic search with a keyword sweep over the whole corpus.
// Semantic hits keep their rank; keyword-only hits follow in corpus order.
type Hybrid struct {
	corpus    Corpus
	k         int
	mustCheck []string
}

func NewHybrid(corpus Corpus, k int, mustCheck []string) *Hybrid {
	if k <= 0 {
		k = defaultSemanticK
	}
	keywords := make([]string, 0, len(mustCheck))
	for _, kw := range mustCheck {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Hybrid{corpus: corpus, k: k, mustCheck: keywords}
}

// Retrieve returns the deduplicated result set for query
func (h *Hybrid) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	semantic, all, err := h.corpus.SearchAndList(ctx, query, h.k)
	if err != nil {
		return nil, err
	}

	tokens := Tokens(query, h.mustCheck)
	results := make([]models.Chunk, 0, len(semantic))
	seen := make(map[string]struct{}, len(semantic))
	for _, c := range semantic {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		results = append(results, c)
	}

	keywordHits := 0
	for _, p := range all {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		if matchesAny(p.Preview, tokens) {
			seen[p.ID] = struct{}{}
			results = append(results, p.Chunk)
			keywordHits++
		}
	}

	log.Debug().
		Int("semantic", len(semantic)).
		Int("keyword", keywordHits).
		Strs("tokens", tokens).
		Msg("Hybrid retrieval")
	return results, nil
}

// Tokens extracts the lower-cased, deduplicated query tokens and adds the
// must-check keywords
func Tokens(query string, mustCheck []string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(tok string) {
		tok = strings.ToLower(tok)
		if tok == "" {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, tok := range tokenRe.FindAllString(query, -1) {
		add(tok)
	}
	for _, kw := range mustCheck {
		add(kw)
	}
	return tokens
}

func matchesAny(text string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
