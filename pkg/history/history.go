// Package history keeps past analyses in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xhad/medilex/internal/models"
	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

var ErrNotFound = errors.New("analysis not found")

// Store provides SQLite persistence for analyses.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	// busy_timeout avoids "database locked" errors when the server and CLI share a file
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL CHECK(source IN ('image', 'text', 'audio')),
		input_text TEXT NOT NULL,
		medication_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// createdAtLayout is fixed width so created_at sorts chronologically as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Save inserts or replaces an analysis.
func (s *Store) Save(ctx context.Context, a *models.Analysis) error {
	if a.ID == "" {
		return errors.New("analysis has no id")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	query := `
	INSERT INTO analyses (id, source, input_text, medication_count, created_at, payload)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		source = excluded.source,
		input_text = excluded.input_text,
		medication_count = excluded.medication_count,
		payload = excluded.payload
	`
	_, err = s.db.ExecContext(ctx, query,
		a.ID,
		string(a.Source),
		a.InputText,
		len(a.Entities.Medications),
		a.CreatedAt.UTC().Format(createdAtLayout),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Analysis, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM analyses WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decode(payload)
}

// List returns the most recent analyses first. limit <= 0 means 20.
func (s *Store) List(ctx context.Context, limit int) ([]*models.Analysis, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT payload FROM analyses
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Analysis
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		a, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func decode(payload string) (*models.Analysis, error) {
	var a models.Analysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}
