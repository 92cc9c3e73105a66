package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryVectorStore is an in-memory cosine-similarity store for development
// and tests.
type MemoryVectorStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemoryVectorStore creates an in-memory vector store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		docs: make(map[string]*Document),
	}
}

var _ VectorStore = (*MemoryVectorStore)(nil)

// Insert stores a document.
func (s *MemoryVectorStore) Insert(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *doc
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	copied.UpdatedAt = time.Now()
	s.docs[doc.ID] = &copied
	return nil
}

// Search scores every document by cosine similarity and returns the topK
// best matches passing the filter.
func (s *MemoryVectorStore) Search(ctx context.Context, query []float32, topK int, filter *SearchFilter) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Document
	for _, doc := range s.docs {
		if filter != nil && filter.TenantID != "" && doc.TenantID != filter.TenantID {
			continue
		}
		score := cosineSimilarity(query, doc.Embedding)
		if filter != nil && filter.MinScore > 0 && score < filter.MinScore {
			continue
		}
		copied := *doc
		copied.Score = score
		matched = append(matched, &copied)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Score > matched[j].Score
	})
	if topK > 0 && len(matched) > topK {
		matched = matched[:topK]
	}
	return matched, nil
}

// Delete removes a document by ID.
func (s *MemoryVectorStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryVectorStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
