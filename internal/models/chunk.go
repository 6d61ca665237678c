package models

import "strconv"

// metadata keys persisted alongside every chunk
const (
	MetaSource   = "source"
	MetaSequence = "sequence"
	MetaFileType = "file_type"
)

// Chunk represents a bounded passage of one source document
type Chunk struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Source   string `json:"source"`
	Sequence int    `json:"sequence"`
	FileType string `json:"file_type"`
}

// Metadata returns the chunk provenance as a flat string map
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaSource:   c.Source,
		MetaSequence: strconv.Itoa(c.Sequence),
		MetaFileType: c.FileType,
	}
}

// ChunkFromMetadata rebuilds a chunk from an id, its content and stored metadata
func ChunkFromMetadata(id, content string, meta map[string]string) Chunk {
	seq, _ := strconv.Atoi(meta[MetaSequence])
	return Chunk{
		ID:       id,
		Content:  content,
		Source:   meta[MetaSource],
		Sequence: seq,
		FileType: meta[MetaFileType],
	}
}

// ChunkPreview is a stored chunk with a truncated content preview
type ChunkPreview struct {
	Chunk
	Preview string `json:"content_preview"`
}

// Stats describes the corpus
type Stats struct {
	TotalChunks int            `json:"total_chunks"`
	SourceCount int            `json:"source_count"`
	PerSource   map[string]int `json:"per_source"`
}
