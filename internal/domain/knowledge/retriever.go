package knowledge

import (
	"context"
)

// SearchResult is one ranked knowledge-base snippet.
type SearchResult struct {
	ItemID    string
	Title     string
	Content   string
	Score     float64 // similarity in [0,1], higher is better
	SourceURI string
}

// Retriever searches the knowledge base for snippets relevant to a query,
// scoped to a tenant. Implementations degrade to an empty result set on
// failure; retrieval must never abort response generation.
type Retriever interface {
	Search(ctx context.Context, query, tenantID string, limit int, minScore float64) ([]SearchResult, error)
}
