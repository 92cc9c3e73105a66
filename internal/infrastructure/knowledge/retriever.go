package knowledge

import (
	"context"

	"go.uber.org/zap"

	domain "github.com/careloop/careloop/internal/domain/knowledge"
	"github.com/careloop/careloop/internal/infrastructure/vectorstore"
)

// Embedder turns query text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorRetriever implements domain knowledge.Retriever over an embedder and
// a vector store. Any failure degrades to an empty result set: retrieval
// never surfaces an error to response generation.
type VectorRetriever struct {
	embedder Embedder
	store    vectorstore.VectorStore
	logger   *zap.Logger
}

// NewVectorRetriever creates a retriever.
func NewVectorRetriever(embedder Embedder, store vectorstore.VectorStore, logger *zap.Logger) *VectorRetriever {
	return &VectorRetriever{
		embedder: embedder,
		store:    store,
		logger:   logger.With(zap.String("component", "knowledge-retriever")),
	}
}

var _ domain.Retriever = (*VectorRetriever)(nil)

// Search implements knowledge.Retriever.
func (r *VectorRetriever) Search(ctx context.Context, query, tenantID string, limit int, minScore float64) ([]domain.SearchResult, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("Query embedding failed, returning no results",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, nil
	}

	docs, err := r.store.Search(ctx, vector, limit, &vectorstore.SearchFilter{
		TenantID: tenantID,
		MinScore: float32(minScore),
	})
	if err != nil {
		r.logger.Warn("Vector search failed, returning no results",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, nil
	}

	results := make([]domain.SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, domain.SearchResult{
			ItemID:    doc.ID,
			Title:     doc.Title,
			Content:   doc.Content,
			Score:     float64(doc.Score),
			SourceURI: doc.SourceURI,
		})
	}
	return results, nil
}

// NoopRetriever always returns an empty result set. Used when no embedding
// backend is configured.
type NoopRetriever struct{}

var _ domain.Retriever = NoopRetriever{}

// Search implements knowledge.Retriever.
func (NoopRetriever) Search(ctx context.Context, query, tenantID string, limit int, minScore float64) ([]domain.SearchResult, error) {
	return nil, nil
}
