package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	namespace  TEXT NOT NULL,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	PRIMARY KEY (namespace, collection, id)
);
`

// SQLite is the production Store, keeping one JSON document per row.
type SQLite struct {
	db *sql.DB

	mu       sync.Mutex
	subs     map[string]map[int]func([]byte)
	nextSub  int
	onChange func(ctx context.Context)
}

// Open opens (and migrates) a SQLite-backed store at the given path.
// ":memory:" is accepted for throwaway databases.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &SQLite{
		db:   db,
		subs: make(map[string]map[int]func([]byte)),
	}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// SetOnChange registers a hook invoked after every successful write. Used for
// auto-snapshotting.
func (s *SQLite) SetOnChange(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *SQLite) Get(ctx context.Context, namespace, collection, id string) ([]byte, error) {
	var data []byte
	query := `SELECT data FROM documents WHERE namespace = ? AND collection = ? AND id = ?`
	err := s.db.QueryRowContext(ctx, query, namespace, collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return data, nil
}

func (s *SQLite) Set(ctx context.Context, namespace, collection, id string, data []byte) error {
	query := `
		INSERT INTO documents (namespace, collection, id, data, updated_at)
		VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (namespace, collection, id)
		DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, namespace, collection, id, data); err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}

	s.notify(namespace, collection, id, data)
	s.triggerChange(ctx)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, namespace, collection, id string) error {
	query := `DELETE FROM documents WHERE namespace = ? AND collection = ? AND id = ?`
	res, err := s.db.ExecContext(ctx, query, namespace, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.notify(namespace, collection, id, nil)
	s.triggerChange(ctx)
	return nil
}

func (s *SQLite) List(ctx context.Context, namespace, collection string) ([]Record, error) {
	query := `
		SELECT id, data FROM documents
		WHERE namespace = ? AND collection = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, namespace, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

func (s *SQLite) Subscribe(namespace, collection, id string, fn func(data []byte)) func() {
	key := docKey(namespace, collection, id)

	s.mu.Lock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func([]byte))
	}
	token := s.nextSub
	s.nextSub++
	s.subs[key][token] = fn
	s.mu.Unlock()

	snapshot, err := s.Get(context.Background(), namespace, collection, id)
	if err != nil {
		snapshot = nil
	}
	fn(snapshot)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], token)
	}
}

func (s *SQLite) notify(namespace, collection, id string, data []byte) {
	s.mu.Lock()
	key := docKey(namespace, collection, id)
	fns := make([]func([]byte), 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}

func (s *SQLite) triggerChange(ctx context.Context) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(ctx)
	}
}
