package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"noticebot/internal/poll"
	"noticebot/internal/scrape"
	kit "noticebot/internal/transport"
	"noticebot/pkg/logx"
)

type fakeAdapter struct {
	sent []sentMsg
}

type sentMsg struct {
	to   kit.ChatTarget
	text string
	opt  kit.SendOptions
}

func (a *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error                         { return nil }
func (a *fakeAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	return nil
}
func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	o := kit.SendOptions{}
	if opt != nil {
		o = *opt
	}
	a.sent = append(a.sent, sentMsg{to: to, text: text, opt: o})
	return nil
}

type staticFetcher struct{ err error }

func (f *staticFetcher) Fetch(ctx context.Context) (string, error) { return "<page>", f.err }

type staticParser struct {
	notices []scrape.Notice
	err     error
}

func (p *staticParser) Parse(string) ([]scrape.Notice, error) { return p.notices, p.err }

func boardNotices(n int) []scrape.Notice {
	out := make([]scrape.Notice, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, scrape.Notice{
			Title: fmt.Sprintf("Notice %d", i),
			Date:  "20 August 2026",
			Link:  fmt.Sprintf("https://www.aiub.edu/n/%d", i),
		})
	}
	// Make one title search-relevant.
	out[0].Title = "End-term EXAM Schedule"
	return out
}

func newTestRouter(ad *fakeAdapter, notices []scrape.Notice) *Router {
	return NewRouter(ad, &staticFetcher{}, &staticParser{notices: notices},
		func() poll.Status { return poll.Status{} }, "file", logx.Nop())
}

func (r *Router) handleText(t *testing.T, text string) {
	t.Helper()
	r.handle(context.Background(), &kit.Message{ChatID: 42, Text: text})
}

func lastSent(t *testing.T, ad *fakeAdapter) sentMsg {
	t.Helper()
	if len(ad.sent) == 0 {
		t.Fatal("no message sent")
	}
	return ad.sent[len(ad.sent)-1]
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		verb string
		arg  string
		ok   bool
	}{
		{in: "/notice", verb: "notice", ok: true},
		{in: "/notice@AIUBNoticeBot", verb: "notice", ok: true},
		{in: "/search exam schedule", verb: "search", arg: "exam schedule", ok: true},
		{in: "/SEARCH exam", verb: "search", arg: "exam", ok: true},
		{in: "  /help  ", verb: "help", ok: true},
		{in: "hello there", ok: false},
		{in: "/", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		verb, arg, ok := parseCommand(tt.in)
		if verb != tt.verb || arg != tt.arg || ok != tt.ok {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, verb, arg, ok, tt.verb, tt.arg, tt.ok)
		}
	}
}

func TestNoticeCapsAtFive(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := newTestRouter(ad, boardNotices(9))
	r.handleText(t, "/notice")

	msg := lastSent(t, ad)
	if msg.to.ChatID != 42 {
		t.Fatalf("reply went to chat %d, want the requesting chat", msg.to.ChatID)
	}
	for i := 1; i <= 5; i++ {
		if !strings.Contains(msg.text, fmt.Sprintf("%d. ", i)) {
			t.Errorf("missing entry %d in:\n%s", i, msg.text)
		}
	}
	if strings.Contains(msg.text, "6. ") {
		t.Errorf("more than 5 entries listed:\n%s", msg.text)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := newTestRouter(ad, boardNotices(6))
	r.handleText(t, "/search exam")

	msg := lastSent(t, ad)
	if !strings.Contains(msg.text, "End-term EXAM Schedule") {
		t.Fatalf("case-insensitive match missing:\n%s", msg.text)
	}
}

func TestSearchNoResults(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := newTestRouter(ad, boardNotices(3))
	r.handleText(t, "/search zzzzz")

	if msg := lastSent(t, ad); !strings.Contains(msg.text, "No notices found") {
		t.Fatalf("want no-results message, got:\n%s", msg.text)
	}
}

func TestSearchWithoutKeywordShowsUsage(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := newTestRouter(ad, boardNotices(3))
	r.handleText(t, "/search")

	if msg := lastSent(t, ad); !strings.Contains(msg.text, "Usage: /search") {
		t.Fatalf("want usage text, got:\n%s", msg.text)
	}
}

func TestLatestKeepsPreview(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := newTestRouter(ad, boardNotices(3))
	r.handleText(t, "/latest")

	msg := lastSent(t, ad)
	if msg.opt.DisablePreview {
		t.Error("latest should keep the link preview")
	}
	if !strings.Contains(msg.text, "End-term EXAM Schedule") {
		t.Errorf("latest should show the newest notice:\n%s", msg.text)
	}
}

func TestUnknownCommandGetsHint(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := newTestRouter(ad, boardNotices(1))
	r.handleText(t, "/frobnicate")

	if msg := lastSent(t, ad); msg.text != usageHint {
		t.Fatalf("got %q, want usage hint", msg.text)
	}
}

func TestPlainTextIgnored(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := newTestRouter(ad, boardNotices(1))
	r.handleText(t, "just chatting")

	if len(ad.sent) != 0 {
		t.Fatalf("plain text should not trigger a reply, sent %v", ad.sent)
	}
}

func TestFetchErrorIsUserVisible(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := NewRouter(ad, &staticFetcher{err: errors.New("connection refused")},
		&staticParser{}, func() poll.Status { return poll.Status{} }, "file", logx.Nop())
	r.handleText(t, "/notice")

	if msg := lastSent(t, ad); !strings.Contains(msg.text, "Could not fetch notices") {
		t.Fatalf("want user-visible error, got:\n%s", msg.text)
	}
}

func TestStartAndHelpAreStatic(t *testing.T) {
	t.Parallel()
	// A failing fetcher proves /start and /help never touch the board.
	ad := &fakeAdapter{}
	r := NewRouter(ad, &staticFetcher{err: errors.New("down")},
		&staticParser{}, func() poll.Status { return poll.Status{} }, "file", logx.Nop())

	for _, cmd := range []string{"/start", "/help"} {
		r.handleText(t, cmd)
		if msg := lastSent(t, ad); !strings.Contains(msg.text, "Welcome to AIUB Notice Bot") {
			t.Fatalf("%s: got %q", cmd, msg.text)
		}
	}
}
