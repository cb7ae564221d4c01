// Package scheduler triggers the poll job on a fixed schedule.
//
// The schedule string is either a plain Go duration ("30m") or a cron
// expression (5 or 6 fields, descriptors like @hourly accepted). Runs
// never overlap: a tick that lands while the previous run is still in
// flight is skipped.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"noticebot/pkg/logx"
)

type SpecKind int

const (
	SpecInterval SpecKind = iota
	SpecCron
)

type Spec struct {
	Kind  SpecKind
	Every time.Duration // SpecInterval only
	Cron  string        // SpecCron only, normalized raw expression
}

// cronParser accepts both 5-field and 6-field (with seconds) expressions.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec parses a schedule string. Accepted forms:
//
//	"30m", "interval:45s"        -> interval
//	"*/30 * * * *", "cron:@hourly" -> cron
func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule is empty")
	}

	if rest, ok := strings.CutPrefix(s, "interval:"); ok {
		return parseInterval(rest)
	}
	if rest, ok := strings.CutPrefix(s, "cron:"); ok {
		return parseCron(rest)
	}

	if !strings.ContainsAny(s, " @") {
		if sp, err := parseInterval(s); err == nil {
			return sp, nil
		}
	}
	return parseCron(s)
}

func parseInterval(s string) (Spec, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return Spec{}, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d < time.Minute {
		return Spec{}, fmt.Errorf("interval %q too short (min 1m)", s)
	}
	return Spec{Kind: SpecInterval, Every: d}, nil
}

func parseCron(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if _, err := cronParser.Parse(s); err != nil {
		return Spec{}, fmt.Errorf("invalid schedule %q: %w", s, err)
	}
	return Spec{Kind: SpecCron, Cron: s}, nil
}

// Service runs a single job on the parsed schedule.
type Service struct {
	job func(ctx context.Context)
	log logx.Logger

	mu      sync.Mutex
	spec    Spec
	c       *cron.Cron
	ticker  *time.Ticker
	done    chan struct{}
	running atomic.Bool // overlap guard
	started bool
}

func New(spec Spec, job func(ctx context.Context), log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{job: job, log: log, spec: spec}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.startLocked(ctx)
	s.log.Info("scheduler started", logx.String("schedule", s.spec.describe()))
}

// Apply swaps the schedule at runtime (config hot reload).
func (s *Service) Apply(ctx context.Context, spec Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.spec {
		return
	}
	s.spec = spec
	if !s.started {
		return
	}
	s.stopLocked()
	s.startLocked(ctx)
	s.log.Info("schedule updated", logx.String("schedule", spec.describe()))
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.stopLocked()
	s.log.Info("scheduler stopped")
}

func (s *Service) startLocked(ctx context.Context) {
	fire := func() { s.fire(ctx) }
	switch s.spec.Kind {
	case SpecCron:
		s.c = cron.New(cron.WithParser(cronParser))
		_, _ = s.c.AddFunc(s.spec.Cron, fire)
		s.c.Start()
	default:
		s.ticker = time.NewTicker(s.spec.Every)
		s.done = make(chan struct{})
		go func(t *time.Ticker, done chan struct{}) {
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case <-t.C:
					fire()
				}
			}
		}(s.ticker, s.done)
	}
}

func (s *Service) stopLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

func (s *Service) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous run still in flight; skipping tick")
		return
	}
	defer s.running.Store(false)
	s.job(ctx)
}

func (sp Spec) describe() string {
	if sp.Kind == SpecCron {
		return "cron " + sp.Cron
	}
	return "every " + sp.Every.String()
}
