package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	// Collection scopes every read and write to the rows tagged with it.
	Collection string
	// Replace empties the collection before every AddDocuments call, so it
	// only ever holds the most recent load.
	Replace bool
	// SourceKey is the metadata key copied into the source column.
	SourceKey string
}

// VectorStore keeps documents and their embeddings in a Postgres table
// with the pgvector extension. One table holds many collections; a
// VectorStore only ever sees its own.
type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
}

var _ vectorstores.VectorStore = (*VectorStore)(nil)

func NewWithConfig(ctx context.Context, embedder embeddings.Embedder, config VectorStoreConfig) (*VectorStore, error) {
	if embedder == nil {
		return nil, ErrNoEmbedder
	}
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.SourceKey == "" {
		config.SourceKey = "source"
	}
	if config.Collection == "" {
		config.Collection = "default"
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content TEXT,
			embedding vector(%d),
			metadata JSONB,
			collection TEXT NOT NULL DEFAULT 'default'
		)`, vs.tableName(), vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Tables created before collections existed.
	_, err = vs.pool.Exec(ctx, fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN IF NOT EXISTS collection TEXT NOT NULL DEFAULT 'default'`,
		vs.tableName()))
	if err != nil {
		return fmt.Errorf("failed to add collection column: %w", err)
	}

	_, err = vs.pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s (collection)`,
		pgx.Identifier{vs.config.TableName + "_collection_idx"}.Sanitize(), vs.tableName()))
	if err != nil {
		return fmt.Errorf("failed to create collection index: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING hnsw (embedding vector_l2_ops)`,
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(), vs.tableName())

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *VectorStore) tableName() string {
	return pgx.Identifier{vs.config.TableName}.Sanitize()
}

// Collection returns a view of the same table scoped to name. Views share
// the connection pool of vs.
func (vs *VectorStore) Collection(name string) *VectorStore {
	config := vs.config
	config.Collection = name
	return &VectorStore{
		config:   config,
		pool:     vs.pool,
		embedder: vs.embedder,
	}
}

// CollectionName returns the collection this store reads and writes.
func (vs *VectorStore) CollectionName() string {
	return vs.config.Collection
}

// AddDocuments embeds docs and writes them in a single transaction. Nothing
// is written when embedding fails.
func (vs *VectorStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := vs.getOptions(options...)

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}

	var vectors [][]float32
	if len(docs) > 0 {
		var err error
		vectors, err = opts.Embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(vectors) != len(docs) {
			return nil, ErrEmbeddingCount
		}
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if vs.config.Replace {
		if _, err := tx.Exec(ctx, "DELETE FROM "+vs.tableName()+" WHERE collection = $1", vs.config.Collection); err != nil {
			return nil, fmt.Errorf("failed to clear collection: %w", err)
		}
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, content, embedding, metadata, collection)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		vs.tableName())

	batch := &pgx.Batch{}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = uuid.NewString()
		source, _ := doc.Metadata[vs.config.SourceKey].(string)
		metadata := doc.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(stmt, ids[i], source, doc.PageContent, pgvector.NewVector(vectors[i]), metadata, vs.config.Collection)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to insert documents: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ids, nil
}

// SimilaritySearch returns the numDocuments rows nearest to the query by
// euclidean distance. Score is the cosine similarity.
func (vs *VectorStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, ErrInvalidNumResult
	}
	opts := vs.getOptions(options...)

	qv, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE collection = $3
		ORDER BY embedding <-> $1
		LIMIT $2`,
		vs.tableName())

	rows, err := vs.pool.Query(ctx, sql, pgvector.NewVector(qv), numDocuments, vs.config.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var (
			doc   schema.Document
			score float64
		)
		if err := rows.Scan(&doc.PageContent, &doc.Metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.Score = float32(score)
		if opts.ScoreThreshold > 0 && doc.Score < opts.ScoreThreshold {
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return docs, nil
}

// Count returns the number of rows in the collection.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := vs.pool.QueryRow(ctx, "SELECT count(*) FROM "+vs.tableName()+" WHERE collection = $1", vs.config.Collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Drop deletes every row of the collection.
func (vs *VectorStore) Drop(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "DELETE FROM "+vs.tableName()+" WHERE collection = $1", vs.config.Collection)
	if err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", vs.config.Collection, err)
	}
	return nil
}

// Close releases the pool, which every collection view of vs shares.
func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func (vs *VectorStore) getOptions(options ...vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Embedder == nil {
		opts.Embedder = vs.embedder
	}
	return opts
}
