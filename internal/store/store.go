// Package store persists the seen-state marker: the identity of the most
// recently notified notice. It is deliberately tiny — one record, no
// history — and accessed by exactly one invocation at a time.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"noticebot/pkg/logx"
)

// Marker identifies the newest notice we have already notified about.
// A zero Marker means "nothing seen yet" (first run).
type Marker struct {
	Title     string    `json:"title"`
	Link      string    `json:"link,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func (m Marker) IsZero() bool { return strings.TrimSpace(m.Title) == "" }

// Matches reports whether the marker identifies the notice with the given
// title. Identity is the title; links are stored for operator context only
// (older markers may predate link tracking).
func (m Marker) Matches(title string) bool {
	return !m.IsZero() && strings.TrimSpace(m.Title) == strings.TrimSpace(title)
}

// Store is the persistence API for the seen-state marker.
//
// LastSeen returns a zero Marker (and nil error) when nothing has been
// persisted yet.
type Store interface {
	LastSeen(ctx context.Context) (Marker, error)
	SetLastSeen(ctx context.Context, m Marker) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": single-file backend, atomic overwrite (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
