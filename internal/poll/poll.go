// Package poll implements one pass of the fetch → parse → diff → notify →
// persist sequence.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"noticebot/internal/scrape"
	"noticebot/internal/store"
	"noticebot/pkg/logx"
)

type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

type Parser interface {
	Parse(html string) ([]scrape.Notice, error)
}

// Notifier delivers one new-notice alert to the broadcast recipient.
type Notifier interface {
	NotifyNew(ctx context.Context, n scrape.Notice) error
}

// Status is a snapshot of the most recent run, for /status.
type Status struct {
	LastRun   time.Time
	LastErr   error
	LastNew   int
	TotalRuns int
	TotalSent int
}

type Job struct {
	fetcher  Fetcher
	parser   Parser
	store    store.Store
	notifier Notifier
	log      logx.Logger

	mu     sync.Mutex
	status Status
}

func NewJob(f Fetcher, p Parser, st store.Store, n Notifier, log logx.Logger) *Job {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Job{fetcher: f, parser: p, store: st, notifier: n, log: log}
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Run performs a single poll pass. Any step's failure aborts the pass
// without mutating stored state, so the next run retries from the same
// baseline. The returned error is informational; the caller logs and
// swallows it (a missed cycle is tolerable).
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	sent, err := j.run(ctx)

	j.mu.Lock()
	j.status.LastRun = start
	j.status.LastErr = err
	j.status.LastNew = sent
	j.status.TotalRuns++
	j.status.TotalSent += sent
	j.mu.Unlock()

	if err != nil {
		j.log.Warn("poll run failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return err
	}
	j.log.Info("poll run done", logx.Int("new", sent), logx.Duration("took", time.Since(start)))
	return nil
}

func (j *Job) run(ctx context.Context) (sent int, err error) {
	page, err := j.fetcher.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	notices, err := j.parser.Parse(page)
	if err != nil {
		return 0, err
	}
	if len(notices) == 0 {
		return 0, scrape.ErrNoNotices
	}

	last, err := j.store.LastSeen(ctx)
	if err != nil {
		return 0, err
	}

	newest := notices[0]

	// First run: seed the store without notifying, otherwise a fresh
	// deployment would broadcast the entire board.
	if last.IsZero() {
		if err := j.saveMarker(ctx, newest); err != nil {
			return 0, err
		}
		j.log.Info("seen state seeded", logx.String("title", newest.Title), logx.Int("notices", len(notices)))
		return 0, nil
	}

	if last.Matches(newest.Key()) {
		return 0, nil
	}

	fresh := newSince(notices, last)
	// Oldest first, so chat ordering matches publication order.
	for i := len(fresh) - 1; i >= 0; i-- {
		if err := j.notifier.NotifyNew(ctx, fresh[i]); err != nil {
			// State stays untouched: already-sent notices may repeat on
			// the next run, better a duplicate than a dropped alert.
			return sent, fmt.Errorf("notify %q: %w", fresh[i].Title, err)
		}
		sent++
	}

	if err := j.saveMarker(ctx, newest); err != nil {
		return sent, err
	}
	return sent, nil
}

func (j *Job) saveMarker(ctx context.Context, n scrape.Notice) error {
	m := store.Marker{Title: n.Key(), Link: n.Link}
	if err := j.store.SetLastSeen(ctx, m); err != nil {
		return err
	}
	return nil
}

// newSince returns the prefix of notices published after the stored marker.
// If the marker's notice is no longer on the page at all, everything
// scraped counts as new (capped, by construction, at the page length).
func newSince(notices []scrape.Notice, last store.Marker) []scrape.Notice {
	for i, n := range notices {
		if last.Matches(n.Key()) {
			return notices[:i]
		}
	}
	return notices
}
