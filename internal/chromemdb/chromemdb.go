package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"ragchat/internal/models"
)

var errNoEmbedder = errors.New("embeddings must be supplied by the caller")

// VectorDBManager encapsulates the chromem-go nearest-k index.
// Embeddings are always computed by the caller; the collection never embeds text itself.
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
}

// NewVectorDBManager initializes an in-memory index holding one collection
func NewVectorDBManager(collectionName string) (*VectorDBManager, error) {
	m := &VectorDBManager{
		db:             chromem.NewDB(),
		collectionName: collectionName,
	}
	if _, err := m.GetOrCreateCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.collection = c
	return c, nil
}

func rejectEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoEmbedder
}

// NewDocument converts a chunk and its embedding into an index document
func NewDocument(c models.Chunk, embedding []float32) chromem.Document {
	return chromem.Document{
		ID:        c.ID,
		Content:   c.Content,
		Metadata:  c.Metadata(),
		Embedding: embedding,
	}
}

// add multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	if len(documents) == 0 {
		return nil
	}
	err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// Search returns the k nearest documents to embedding, fewer when the collection is smaller
func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int) ([]chromem.Result, error) {
	n := min(k, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}
	return m.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       n,
	})
}

// SearchWithQueryOptions performs a similarity search
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}
	return results, nil
}

// DeleteDocs removes documents by id
func (m *VectorDBManager) DeleteDocs(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := m.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete documents: %v", err)
	}
	return nil
}

// Count returns the number of indexed documents
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	err := m.db.DeleteCollection(m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

// Reset drops the collection and opens a fresh empty one under the same name
func (m *VectorDBManager) Reset() error {
	if err := m.DeleteCollection(); err != nil {
		return err
	}
	if _, err := m.GetOrCreateCollection(); err != nil {
		return err
	}
	log.Debug().Str("collection", m.collectionName).Msg("Vector index reset")
	return nil
}
