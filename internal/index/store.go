// Package index persists codex session cursors in sqlite so a restarted
// process can skip files it already read.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/janekbaraniewski/promptpetrol/internal/codex"
)

// schemaVersion is bumped whenever the encoded session state changes shape.
// Rows written by another version are ignored on load.
const schemaVersion = 1

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ codex.CursorIndex = (*Store)(nil)

func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("index: opening DB: %w", err)
	}
	if err := configureSQLiteConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: configure DB: %w", err)
	}

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_cursors (
			root TEXT NOT NULL,
			path TEXT NOT NULL,
			mod_time TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			read_offset INTEGER NOT NULL,
			last_event_at TEXT,
			fingerprint TEXT NOT NULL,
			state BLOB NOT NULL,
			schema_version INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (root, path)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_cursors_updated_at ON session_cursors(updated_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index: init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) LoadCursors(ctx context.Context, root string) ([]codex.PersistedCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, mod_time, size_bytes, read_offset, last_event_at, fingerprint, state
		FROM session_cursors
		WHERE root = ? AND schema_version = ?
		ORDER BY path`, root, schemaVersion)
	if err != nil {
		return nil, fmt.Errorf("index: load cursors: %w", err)
	}
	defer rows.Close()

	var out []codex.PersistedCursor
	for rows.Next() {
		var (
			pc          codex.PersistedCursor
			modTime     string
			lastEventAt sql.NullString
		)
		if err := rows.Scan(&pc.Cursor.Path, &modTime, &pc.Cursor.Size, &pc.Cursor.Offset, &lastEventAt, &pc.Cursor.Fingerprint, &pc.State); err != nil {
			return nil, fmt.Errorf("index: scan cursor: %w", err)
		}
		pc.Cursor.ModTime, err = time.Parse(time.RFC3339Nano, modTime)
		if err != nil {
			continue
		}
		if lastEventAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, lastEventAt.String); err == nil {
				pc.Cursor.LastEventAt = ts
			}
		}
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate cursors: %w", err)
	}
	return out, nil
}

func (s *Store) SaveCursors(ctx context.Context, root string, cursors []codex.PersistedCursor) error {
	if s == nil || s.db == nil || len(cursors) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: save begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_cursors (
			root, path, mod_time, size_bytes, read_offset, last_event_at,
			fingerprint, state, schema_version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(root, path) DO UPDATE SET
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			read_offset = excluded.read_offset,
			last_event_at = excluded.last_event_at,
			fingerprint = excluded.fingerprint,
			state = excluded.state,
			schema_version = excluded.schema_version,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("index: prepare upsert: %w", err)
	}
	defer stmt.Close()

	updatedAt := s.now().UTC().Format(time.RFC3339Nano)
	for _, pc := range cursors {
		c := pc.Cursor
		if _, err := stmt.ExecContext(ctx,
			root,
			c.Path,
			c.ModTime.UTC().Format(time.RFC3339Nano),
			c.Size,
			c.Offset,
			nullableTime(c.LastEventAt),
			c.Fingerprint,
			pc.State,
			schemaVersion,
			updatedAt,
		); err != nil {
			return fmt.Errorf("index: upsert %s: %w", c.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: save commit: %w", err)
	}
	return nil
}

func (s *Store) DeleteCursors(ctx context.Context, root string, paths []string) error {
	if s == nil || s.db == nil || len(paths) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: delete begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, path := range paths {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_cursors WHERE root = ? AND path = ?`, root, path); err != nil {
			return fmt.Errorf("index: delete %s: %w", path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: delete commit: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
