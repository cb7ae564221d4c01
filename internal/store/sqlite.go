package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"noticebot/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS seen_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	title      TEXT NOT NULL,
	link       TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LastSeen(ctx context.Context) (Marker, error) {
	var m Marker
	var at string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, link, updated_at FROM seen_state WHERE id = 1`,
	).Scan(&m.Title, &m.Link, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Marker{}, nil
	}
	if err != nil {
		return Marker{}, fmt.Errorf("store: query seen_state: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
		m.UpdatedAt = t
	}
	return m, nil
}

func (s *sqliteStore) SetLastSeen(ctx context.Context, m Marker) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_state(id, title, link, updated_at) VALUES(1,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, link=excluded.link, updated_at=excluded.updated_at`,
		m.Title, m.Link, m.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: upsert seen_state: %w", err)
	}
	s.log.Debug("seen marker saved", logx.String("title", m.Title))
	return nil
}
