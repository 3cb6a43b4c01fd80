package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS checkpoints (
	output      TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	last_frame  INTEGER NOT NULL,
	updated_at  TEXT NOT NULL,
	run_id      TEXT NOT NULL
)`

// SQLiteStore keeps checkpoints in an SQLite database, one row per output
// file, so several renders can share a state database.
type SQLiteStore struct {
	db     *sql.DB
	output string
}

// OpenSQLite opens (or creates) the database at path. output keys the row.
func OpenSQLite(path, output string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("checkpoint db: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint db: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		schema,
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("checkpoint db: %s: %w", p, err)
		}
	}
	return &SQLiteStore{db: db, output: output}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Record, error) {
	var rec Record
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, last_frame, updated_at, run_id FROM checkpoints WHERE output = ?`,
		s.output).Scan(&rec.Fingerprint, &rec.LastFrame, &updated, &rec.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("checkpoint db: updated_at: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (output, fingerprint, last_frame, updated_at, run_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(output) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   last_frame  = excluded.last_frame,
		   updated_at  = excluded.updated_at,
		   run_id      = excluded.run_id`,
		s.output, rec.Fingerprint, rec.LastFrame, rec.UpdatedAt.Format(time.RFC3339Nano), rec.RunID)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE output = ?`, s.output)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
