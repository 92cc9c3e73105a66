package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	arrowmem "github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/lancedb/lancedb-go/pkg/contracts"
	"github.com/lancedb/lancedb-go/pkg/lancedb"
	"go.uber.org/zap"
)

const tableName = "knowledge_items"

// LanceDBVectorStore implements VectorStore using LanceDB, persisting the
// knowledge base on local disk.
type LanceDBVectorStore struct {
	conn      contracts.IConnection
	table     contracts.ITable
	schema    *arrow.Schema
	dimension int
	logger    *zap.Logger
}

// NewLanceDBVectorStore creates a LanceDB-backed store.
// storePath: directory to persist data (e.g. ~/.careloop/knowledge/lancedb).
// dimension: embedding vector dimension.
func NewLanceDBVectorStore(storePath string, dimension int, logger *zap.Logger) (*LanceDBVectorStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	absPath, err := expandPath(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand store path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	ctx := context.Background()
	conn, err := lancedb.Connect(ctx, absPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LanceDB at %s: %w", absPath, err)
	}

	fields := []arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "title", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "content", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "vector", Type: arrow.FixedSizeListOf(int32(dimension), arrow.PrimitiveTypes.Float32), Nullable: false},
		{Name: "tenant_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "source_uri", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "created_at", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "updated_at", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	}
	arrowSchema := arrow.NewSchema(fields, nil)

	table, err := openOrCreateTable(ctx, conn, arrowSchema, logger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open/create table: %w", err)
	}

	logger.Info("LanceDB knowledge store initialized",
		zap.String("path", absPath),
		zap.Int("dimension", dimension),
	)

	return &LanceDBVectorStore{
		conn:      conn,
		table:     table,
		schema:    arrowSchema,
		dimension: dimension,
		logger:    logger,
	}, nil
}

var _ VectorStore = (*LanceDBVectorStore)(nil)

func openOrCreateTable(ctx context.Context, conn contracts.IConnection, arrowSchema *arrow.Schema, logger *zap.Logger) (contracts.ITable, error) {
	table, err := conn.OpenTable(ctx, tableName)
	if err == nil {
		logger.Info("Opened existing LanceDB table", zap.String("table", tableName))
		return table, nil
	}

	logger.Info("Creating new LanceDB table", zap.String("table", tableName))
	schema, err := lancedb.NewSchema(arrowSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create LanceDB schema: %w", err)
	}
	return conn.CreateTable(ctx, tableName, schema)
}

// Insert stores a knowledge document.
func (s *LanceDBVectorStore) Insert(ctx context.Context, doc *Document) error {
	record, err := s.docToRecord(doc)
	if err != nil {
		return fmt.Errorf("failed to build Arrow record: %w", err)
	}
	defer record.Release()

	if err := s.table.Add(ctx, record, nil); err != nil {
		return fmt.Errorf("LanceDB insert failed: %w", err)
	}
	s.logger.Debug("Knowledge document inserted", zap.String("id", doc.ID))
	return nil
}

// Search performs vector similarity search with optional tenant filtering.
func (s *LanceDBVectorStore) Search(ctx context.Context, query []float32, topK int, filter *SearchFilter) ([]*Document, error) {
	var results []map[string]interface{}
	var err error

	if filter != nil && filter.TenantID != "" {
		expr := fmt.Sprintf("tenant_id = '%s'", filter.TenantID)
		results, err = s.table.VectorSearchWithFilter(ctx, "vector", query, topK, expr)
	} else {
		results, err = s.table.VectorSearch(ctx, "vector", query, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("LanceDB vector search failed: %w", err)
	}

	docs := make([]*Document, 0, len(results))
	for _, row := range results {
		doc := rowToDocument(row)
		if doc == nil {
			continue
		}
		// Min score post-filtered; hard to push into LanceDB SQL
		if filter != nil && filter.MinScore > 0 && doc.Score < filter.MinScore {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes a document by ID.
func (s *LanceDBVectorStore) Delete(ctx context.Context, id string) error {
	if err := s.table.Delete(ctx, fmt.Sprintf("id = '%s'", id)); err != nil {
		return fmt.Errorf("LanceDB delete failed: %w", err)
	}
	return nil
}

// Close releases LanceDB resources.
func (s *LanceDBVectorStore) Close() error {
	if s.table != nil {
		s.table.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// ============ internal helpers ============

func (s *LanceDBVectorStore) docToRecord(doc *Document) (arrow.Record, error) {
	pool := arrowmem.NewGoAllocator()

	idB := array.NewStringBuilder(pool)
	idB.Append(doc.ID)
	idArr := idB.NewArray()
	defer idArr.Release()

	titleB := array.NewStringBuilder(pool)
	titleB.Append(doc.Title)
	titleArr := titleB.NewArray()
	defer titleArr.Release()

	contentB := array.NewStringBuilder(pool)
	contentB.Append(doc.Content)
	contentArr := contentB.NewArray()
	defer contentArr.Release()

	vectorArr, err := buildVectorArray(pool, doc.Embedding, s.dimension)
	if err != nil {
		return nil, err
	}
	defer vectorArr.Release()

	tenantB := array.NewStringBuilder(pool)
	tenantB.Append(doc.TenantID)
	tenantArr := tenantB.NewArray()
	defer tenantArr.Release()

	sourceB := array.NewStringBuilder(pool)
	sourceB.Append(doc.SourceURI)
	sourceArr := sourceB.NewArray()
	defer sourceArr.Release()

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdB := array.NewInt64Builder(pool)
	createdB.Append(createdAt.Unix())
	createdArr := createdB.NewArray()
	defer createdArr.Release()

	updatedB := array.NewInt64Builder(pool)
	updatedB.Append(time.Now().Unix())
	updatedArr := updatedB.NewArray()
	defer updatedArr.Release()

	cols := []arrow.Array{idArr, titleArr, contentArr, vectorArr, tenantArr, sourceArr, createdArr, updatedArr}
	return array.NewRecord(s.schema, cols, 1), nil
}

func buildVectorArray(pool arrowmem.Allocator, vec []float32, dim int) (arrow.Array, error) {
	if len(vec) != dim {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", dim, len(vec))
	}

	floatB := array.NewFloat32Builder(pool)
	floatB.AppendValues(vec, nil)
	floatArr := floatB.NewArray()
	defer floatArr.Release()

	listType := arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)
	listData := array.NewData(listType, 1, []*arrowmem.Buffer{nil},
		[]arrow.ArrayData{floatArr.Data()}, 0, 0)
	return array.NewFixedSizeListData(listData), nil
}

func rowToDocument(row map[string]interface{}) *Document {
	doc := &Document{}

	if v, ok := row["id"].(string); ok {
		doc.ID = v
	}
	if v, ok := row["title"].(string); ok {
		doc.Title = v
	}
	if v, ok := row["content"].(string); ok {
		doc.Content = v
	}
	if v, ok := row["tenant_id"].(string); ok {
		doc.TenantID = v
	}
	if v, ok := row["source_uri"].(string); ok {
		doc.SourceURI = v
	}
	if v, ok := toInt64(row["created_at"]); ok {
		doc.CreatedAt = time.Unix(v, 0)
	}
	if v, ok := toInt64(row["updated_at"]); ok {
		doc.UpdatedAt = time.Unix(v, 0)
	}
	// LanceDB returns _distance for vector search results
	if v, ok := toFloat32(row["_distance"]); ok {
		doc.Score = 1.0 / (1.0 + v) // L2 distance → (0,1] similarity
	}
	return doc
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func toFloat32(v interface{}) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	}
	return 0, false
}

func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
