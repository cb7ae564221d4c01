// Package bot dispatches user commands and formats replies.
//
// Each command runs statelessly: /notice, /latest and /search fetch and
// parse the board fresh (no caching), and replies always go back to the
// chat that issued the command.
package bot

import (
	"context"
	"strings"
	"time"

	"noticebot/internal/poll"
	"noticebot/internal/scrape"
	kit "noticebot/internal/transport"
	"noticebot/pkg/logx"
	"noticebot/pkg/tgui"
)

const commandTimeout = 30 * time.Second

type Router struct {
	adapter kit.Adapter
	fetcher poll.Fetcher
	parser  poll.Parser
	status  func() poll.Status
	log     logx.Logger

	storeDriver string
	startedAt   time.Time
}

func NewRouter(adapter kit.Adapter, fetcher poll.Fetcher, parser poll.Parser, status func() poll.Status, storeDriver string, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter:     adapter,
		fetcher:     fetcher,
		parser:      parser,
		status:      status,
		log:         log,
		storeDriver: storeDriver,
		startedAt:   time.Now(),
	}
}

// Commands lists the command menu registered with the platform.
func (r *Router) Commands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "notice", Description: "Show the latest 5 notices"},
		{Command: "latest", Description: "Show the most recent notice"},
		{Command: "search", Description: "Search notices by keyword"},
		{Command: "status", Description: "Bot health"},
		{Command: "help", Description: "Show usage"},
	}
}

// Run consumes updates until ctx is done.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Message == nil {
				continue
			}
			r.handle(ctx, up.Message)
		}
	}
}

func (r *Router) handle(ctx context.Context, m *kit.Message) {
	verb, arg, ok := parseCommand(m.Text)
	if !ok {
		return // plain chatter, not a command
	}

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	log := r.log.With(logx.String("cmd", verb), logx.Int64("chat_id", m.ChatID))
	start := time.Now()

	text, preview := r.dispatch(cctx, verb, arg)
	if err := r.reply(cctx, m.ChatID, text, preview); err != nil {
		log.Warn("reply failed", logx.Err(err))
		return
	}
	log.Debug("command handled", logx.Duration("took", time.Since(start)))
}

// dispatch returns the reply text and whether to keep the link preview.
func (r *Router) dispatch(ctx context.Context, verb, arg string) (string, bool) {
	switch verb {
	case "start", "help":
		return startText, false
	case "notice":
		notices, err := r.fresh(ctx)
		if err != nil {
			return errorReply(err), false
		}
		return formatNoticeList(notices), false
	case "latest":
		notices, err := r.fresh(ctx)
		if err != nil {
			return errorReply(err), false
		}
		return formatLatest(notices[0]), true
	case "search":
		keyword := strings.TrimSpace(arg)
		if keyword == "" {
			return "Usage: /search <keyword>\nExample: /search exam", false
		}
		notices, err := r.fresh(ctx)
		if err != nil {
			return errorReply(err), false
		}
		return formatSearchResults(keyword, filterByTitle(notices, keyword)), false
	case "status":
		return formatStatus(r.status(), r.startedAt, r.storeDriver), false
	default:
		return usageHint, false
	}
}

func (r *Router) fresh(ctx context.Context) ([]scrape.Notice, error) {
	page, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	notices, err := r.parser.Parse(page)
	if err != nil {
		return nil, err
	}
	if len(notices) == 0 {
		return nil, scrape.ErrNoNotices
	}
	return notices, nil
}

func (r *Router) reply(ctx context.Context, chatID int64, text string, preview bool) error {
	return r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, tgui.TruncRunes(text, tgui.MaxMessageLen), &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: !preview,
	})
}

func errorReply(err error) string {
	return "⚠️ Could not fetch notices right now: " + tgui.Esc(err.Error()).String()
}

// parseCommand splits "/verb arg..." and strips the @BotName suffix
// Telegram appends in group chats. ok is false for non-command text.
func parseCommand(text string) (verb, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	verb, arg, _ = strings.Cut(text[1:], " ")
	if at := strings.IndexByte(verb, '@'); at >= 0 {
		verb = verb[:at]
	}
	verb = strings.ToLower(strings.TrimSpace(verb))
	if verb == "" {
		return "", "", false
	}
	return verb, strings.TrimSpace(arg), true
}

func filterByTitle(notices []scrape.Notice, keyword string) []scrape.Notice {
	kw := strings.ToLower(keyword)
	var out []scrape.Notice
	for _, n := range notices {
		if strings.Contains(strings.ToLower(n.Title), kw) {
			out = append(out, n)
		}
	}
	return out
}
