// Package transport defines the platform-neutral messaging surface the bot
// is written against. The Telegram implementation lives in
// transport/telegram; tests use in-memory fakes.
package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error

	// UpdateMenuCommands updates the platform command menu (Telegram "/" list).
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
