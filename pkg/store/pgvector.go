package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/logging"
)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	BatchSize   int // rows per transaction
	SearchLimit int
	Logger      *zerolog.Logger
}

// PGVectorStore stores chunks in Postgres with the pgvector extension.
type PGVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	table  string
	logger zerolog.Logger
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*PGVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "medical_documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 3
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
		logger: logging.Or(config.Logger, "pgvector"),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT,
			content TEXT,
			chunk_index INTEGER,
			embedding vector(%d),
			metadata JSONB
		)`, vs.table, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(), vs.table)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Store upserts every chunk of docs. Rows are written in transactions of BatchSize.
func (vs *PGVectorStore) Store(ctx context.Context, docs []models.ProcessedDocument) error {
	rows, err := flatten(docs, vs.config.VectorDim)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, url, title, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.table)

	for start := 0; start < len(rows); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(rows))
		if err := vs.storeBatch(ctx, stmt, rows[start:end]); err != nil {
			return err
		}
		vs.logger.Debug().Int("rows", end-start).Int("offset", start).Msg("stored chunk batch")
	}
	return nil
}

func (vs *PGVectorStore) storeBatch(ctx context.Context, stmt string, rows []chunkRow) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(stmt,
			r.id,
			r.doc.URL,
			r.doc.Title,
			r.doc.Content,
			r.index,
			pgvector.NewVector(r.vector),
			r.doc.Metadata,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Query returns the limit nearest chunks by cosine distance. Score is 1 - distance.
func (vs *PGVectorStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.SearchResult, error) {
	if len(queryEmbedding) != vs.config.VectorDim {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(queryEmbedding), vs.config.VectorDim)
	}
	if limit <= 0 {
		limit = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, url, title, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.table)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var title, content *string
		if err := rows.Scan(&r.ID, &r.URL, &title, &content, &r.Metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if title != nil {
			r.Title = *title
		}
		if content != nil {
			r.Content = *content
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return results, nil
}

func (vs *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", vs.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (vs *PGVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
