package poll

import (
	"context"
	"errors"
	"testing"

	"noticebot/internal/scrape"
	"noticebot/internal/store"
	"noticebot/pkg/logx"
)

type fakeFetcher struct {
	page string
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context) (string, error) { return f.page, f.err }

// fakeParser ignores the page and returns a fixed notice list.
type fakeParser struct {
	notices []scrape.Notice
	err     error
}

func (p *fakeParser) Parse(string) ([]scrape.Notice, error) { return p.notices, p.err }

type memStore struct {
	m      store.Marker
	saves  int
	getErr error
	setErr error
}

func (s *memStore) LastSeen(ctx context.Context) (store.Marker, error) { return s.m, s.getErr }
func (s *memStore) SetLastSeen(ctx context.Context, m store.Marker) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.m = m
	s.saves++
	return nil
}
func (s *memStore) Close() error { return nil }

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) NotifyNew(ctx context.Context, notice scrape.Notice) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notice.Title)
	return nil
}

func notices(titles ...string) []scrape.Notice {
	out := make([]scrape.Notice, 0, len(titles))
	for _, t := range titles {
		out = append(out, scrape.Notice{Title: t, Link: "https://www.aiub.edu/n/" + t})
	}
	return out
}

func newTestJob(ns []scrape.Notice, st store.Store, n Notifier) *Job {
	return NewJob(&fakeFetcher{page: "x"}, &fakeParser{notices: ns}, st, n, logx.Nop())
}

func TestFirstRunSeedsWithoutNotifying(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	nt := &recordingNotifier{}
	j := newTestJob(notices("C", "B", "A"), st, nt)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(nt.sent) != 0 {
		t.Fatalf("first run broadcast %d notices, want 0 (seeding policy)", len(nt.sent))
	}
	if st.m.Title != "C" {
		t.Fatalf("seeded marker = %q, want newest %q", st.m.Title, "C")
	}
}

func TestNoChangeNoSendNoWrite(t *testing.T) {
	t.Parallel()
	st := &memStore{m: store.Marker{Title: "C"}}
	nt := &recordingNotifier{}
	j := newTestJob(notices("C", "B", "A"), st, nt)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(nt.sent) != 0 {
		t.Fatalf("sent %v, want none when newest == stored", nt.sent)
	}
	if st.saves != 0 {
		t.Fatalf("stored state written %d times, want 0", st.saves)
	}
}

func TestNewBatchSentOldestFirstAndMarkerAdvanced(t *testing.T) {
	t.Parallel()
	st := &memStore{m: store.Marker{Title: "C"}}
	nt := &recordingNotifier{}
	j := newTestJob(notices("E", "D", "C", "B"), st, nt)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(nt.sent) != 2 || nt.sent[0] != "D" || nt.sent[1] != "E" {
		t.Fatalf("sent %v, want [D E] (ascending publication order)", nt.sent)
	}
	if st.m.Title != "E" {
		t.Fatalf("marker = %q, want batch newest %q", st.m.Title, "E")
	}
}

func TestIdempotentReplay(t *testing.T) {
	t.Parallel()
	st := &memStore{m: store.Marker{Title: "B"}}
	nt := &recordingNotifier{}
	j := newTestJob(notices("C", "B", "A"), st, nt)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("sent %v, want exactly [C]", nt.sent)
	}

	// Page unchanged: replay must send nothing.
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("replay Run: %v", err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("replay sent extra messages: %v", nt.sent)
	}
}

func TestMarkerVanishedTreatsWholePageAsNew(t *testing.T) {
	t.Parallel()
	st := &memStore{m: store.Marker{Title: "ancient notice"}}
	nt := &recordingNotifier{}
	j := newTestJob(notices("C", "B", "A"), st, nt)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(nt.sent) != 3 || nt.sent[0] != "A" || nt.sent[2] != "C" {
		t.Fatalf("sent %v, want the full page oldest-first", nt.sent)
	}
	if st.m.Title != "C" {
		t.Fatalf("marker = %q", st.m.Title)
	}
}

func TestFailuresLeaveStateUntouched(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	tests := []struct {
		name string
		job  func(st *memStore) *Job
	}{
		{name: "fetch fails", job: func(st *memStore) *Job {
			return NewJob(&fakeFetcher{err: boom}, &fakeParser{notices: notices("C")}, st, &recordingNotifier{}, logx.Nop())
		}},
		{name: "parse fails", job: func(st *memStore) *Job {
			return NewJob(&fakeFetcher{page: "x"}, &fakeParser{err: scrape.ErrNoNotices}, st, &recordingNotifier{}, logx.Nop())
		}},
		{name: "notify fails", job: func(st *memStore) *Job {
			return newTestJob(notices("C", "B"), st, &recordingNotifier{err: boom})
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := &memStore{m: store.Marker{Title: "B"}}
			if err := tt.job(st).Run(context.Background()); err == nil {
				t.Fatal("expected an error")
			}
			if st.saves != 0 || st.m.Title != "B" {
				t.Fatalf("state mutated on failure: saves=%d marker=%q", st.saves, st.m.Title)
			}
		})
	}
}

func TestStatusTracksRuns(t *testing.T) {
	t.Parallel()
	st := &memStore{m: store.Marker{Title: "B"}}
	j := newTestJob(notices("C", "B"), st, &recordingNotifier{})

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := j.Status()
	if s.TotalRuns != 1 || s.TotalSent != 1 || s.LastNew != 1 || s.LastErr != nil {
		t.Fatalf("unexpected status: %+v", s)
	}
	if s.LastRun.IsZero() {
		t.Fatal("LastRun not stamped")
	}
}
