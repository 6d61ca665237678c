package parser

import (
	"strings"
	"unicode/utf8"

	"ragchat/internal/models"
)

const (
	defaultChunkSize    = 1500 // characters
	defaultChunkOverlap = 300  // characters
)

// DefaultSeparators are tried in order: paragraph, line, word, character
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text recursively on a prioritized list of separators.
// Every chunk is an exact substring of the input, so dropping the overlap
// between neighbours gives the input back.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// span is the byte range [start, end) of the input, runes long
type span struct {
	start, end int
	runes      int
}

func NewChunker(size, overlap int, separators []string) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Chunker{size: size, overlap: overlap, separators: separators}
}

// Split returns the chunk texts in document order
func (c *Chunker) Split(text string) []string {
	spans := c.spans(text)
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, text[s.start:s.end])
	}
	return out
}

// Chunk splits text and tags every piece with its provenance.
// Sequence is 1-based; ids are assigned by the store.
func (c *Chunker) Chunk(text, source, fileType string) []models.Chunk {
	parts := c.Split(text)
	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, models.Chunk{
			Content:  part,
			Source:   source,
			Sequence: i + 1,
			FileType: fileType,
		})
	}
	return chunks
}

func (c *Chunker) spans(text string) []span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.merge(c.pieces(text, 0, len(text), 0))
}

// pieces cuts text[start:end] into atomic pieces no longer than the chunk
// size. A piece keeps its trailing separator.
func (c *Chunker) pieces(text string, start, end, level int) []span {
	n := utf8.RuneCountInString(text[start:end])
	if n <= c.size {
		return []span{{start: start, end: end, runes: n}}
	}

	sepIdx := -1
	for i := level; i < len(c.separators); i++ {
		sep := c.separators[i]
		if sep == "" || strings.Contains(text[start:end], sep) {
			sepIdx = i
			break
		}
	}
	if sepIdx < 0 {
		// nothing left to split on, keep the oversized piece whole
		return []span{{start: start, end: end, runes: n}}
	}

	sep := c.separators[sepIdx]
	if sep == "" {
		return runeSpans(text, start, end)
	}

	var out []span
	for pos := start; pos < end; {
		pieceEnd := end
		if i := strings.Index(text[pos:end], sep); i >= 0 {
			pieceEnd = pos + i + len(sep)
		}
		out = append(out, c.pieces(text, pos, pieceEnd, sepIdx+1)...)
		pos = pieceEnd
	}
	return out
}

func runeSpans(text string, start, end int) []span {
	out := make([]span, 0, end-start)
	for pos := start; pos < end; {
		_, w := utf8.DecodeRuneInString(text[pos:end])
		out = append(out, span{start: pos, end: pos + w, runes: 1})
		pos += w
	}
	return out
}

// merge packs consecutive pieces into chunks of at most size characters.
// A new chunk starts with the longest tail of the previous one that fits
// into the overlap budget.
func (c *Chunker) merge(pieces []span) []span {
	var (
		chunks []span
		window []span
		total  int
	)
	for _, p := range pieces {
		if len(window) > 0 && total+p.runes > c.size {
			chunks = append(chunks, span{start: window[0].start, end: window[len(window)-1].end, runes: total})
			for len(window) > 0 && (total > c.overlap || total+p.runes > c.size) {
				total -= window[0].runes
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.runes
	}
	if len(window) > 0 {
		chunks = append(chunks, span{start: window[0].start, end: window[len(window)-1].end, runes: total})
	}
	return chunks
}
