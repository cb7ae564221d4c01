package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"noticebot/pkg/logx"
)

// fileStore keeps the marker in a single JSON file, overwritten atomically
// (tmp + rename) on every save.
//
// For compatibility with the bot's earliest deployments the loader also
// accepts a bare-text file whose content is just the notice title.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) LastSeen(ctx context.Context) (Marker, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Marker{}, nil
	}
	if err != nil {
		return Marker{}, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return Marker{}, nil
	}

	var m Marker
	if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
		return m, nil
	}
	// Legacy format: the whole file is the last seen title.
	return Marker{Title: trimmed}, nil
}

func (s *fileStore) SetLastSeen(ctx context.Context, m Marker) error {
	_ = ctx
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now()
	}

	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("store: marshal marker: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	s.log.Debug("seen marker saved", logx.String("title", m.Title))
	return nil
}
