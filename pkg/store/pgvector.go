package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/docqa/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore is an Indexer backed by PostgreSQL with the pgvector
// extension. Each Build writes its chunks under a fresh collection id, so
// concurrent requests share the table but never see each other's rows.
type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig, embedder types.Embedder) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "document_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 64
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
			collection_id UUID NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB,
			PRIMARY KEY (collection_id, chunk_index)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Build embeds docs and stores them under a new collection.
func (vs *VectorStore) Build(ctx context.Context, docs []schema.Document) (types.Index, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to index")
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}

	vectors, err := vs.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}

	collection := uuid.New()
	idx := &collectionIndex{store: vs, collection: collection}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (collection_id, chunk_index, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		vs.config.TableName)

	// Insert documents in batches
	for start := 0; start < len(docs); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(docs))

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			batch.Queue(stmt, collection, i, docs[i].PageContent, pgvector.NewVector(vectors[i]), docs[i].Metadata)
		}

		if err := vs.pool.SendBatch(ctx, batch).Close(); err != nil {
			_ = idx.Close(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	return idx, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

type collectionIndex struct {
	store      *VectorStore
	collection uuid.UUID
}

func (c *collectionIndex) Search(ctx context.Context, query string, k int) ([]schema.Document, error) {
	if k <= 0 {
		k = 4
	}

	embedding, err := c.store.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Query similar chunks
	sql := fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $2) AS score
		FROM %s
		WHERE collection_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		c.store.config.TableName)

	rows, err := c.store.pool.Query(ctx, sql, c.collection, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
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
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return docs, nil
}

// Close deletes the collection's rows.
func (c *collectionIndex) Close(ctx context.Context) error {
	_, err := c.store.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE collection_id = $1", c.store.config.TableName),
		c.collection)
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", c.collection, err)
	}
	return nil
}
