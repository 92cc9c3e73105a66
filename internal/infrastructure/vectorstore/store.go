package vectorstore

import (
	"context"
	"time"
)

// Document is one knowledge-base item with its embedding.
type Document struct {
	ID        string
	Title     string
	Content   string
	Embedding []float32
	TenantID  string
	SourceURI string
	Score     float32 // similarity, filled on search
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchFilter narrows a vector search.
type SearchFilter struct {
	TenantID string
	MinScore float32
}

// VectorStore stores knowledge documents and serves similarity search.
type VectorStore interface {
	// Insert stores a document.
	Insert(ctx context.Context, doc *Document) error
	// Search returns up to topK documents by similarity, best first.
	Search(ctx context.Context, query []float32, topK int, filter *SearchFilter) ([]*Document, error)
	// Delete removes a document by ID.
	Delete(ctx context.Context, id string) error
	// Close releases store resources.
	Close() error
}
