package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type snapshotLine struct {
	Namespace  string          `json:"namespace"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
}

// EnableAutoSnapshot sets up a hook that exports a snapshot to the given path
// after every successful write. Export failures are swallowed; snapshots are
// best-effort and must not fail the original write.
func (s *SQLite) EnableAutoSnapshot(path string) {
	s.SetOnChange(func(ctx context.Context) {
		_ = s.ExportSnapshot(ctx, path)
	})
}

// ExportSnapshot writes every document as one JSONL line, atomically via a
// temporary file.
func (s *SQLite) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, collection, id, data
		FROM documents
		ORDER BY namespace, collection, id
	`)
	if err != nil {
		return fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	enc := json.NewEncoder(tempFile)
	for rows.Next() {
		var line snapshotLine
		if err := rows.Scan(&line.Namespace, &line.Collection, &line.ID, (*[]byte)(&line.Data)); err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and upserts every document in one
// transaction.
func (s *SQLite) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var line snapshotLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot line: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (namespace, collection, id, data)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (namespace, collection, id)
			DO UPDATE SET data = excluded.data
		`, line.Namespace, line.Collection, line.ID, []byte(line.Data))
		if err != nil {
			return fmt.Errorf("failed to import document %s/%s/%s: %w", line.Namespace, line.Collection, line.ID, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.triggerChange(ctx)
	return nil
}
