package bot

import (
	"context"

	"noticebot/internal/scrape"
	kit "noticebot/internal/transport"
)

// Broadcaster delivers new-notice alerts to the fixed broadcast chat.
// It is the poll job's Notifier.
type Broadcaster struct {
	adapter kit.Adapter
	target  kit.ChatTarget
}

func NewBroadcaster(adapter kit.Adapter, chatID int64) *Broadcaster {
	return &Broadcaster{adapter: adapter, target: kit.ChatTarget{ChatID: chatID}}
}

func (b *Broadcaster) NotifyNew(ctx context.Context, n scrape.Notice) error {
	// Preview on: the alert links straight to the notice.
	return b.adapter.SendText(ctx, b.target, formatAlert(n), &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: false,
	})
}
