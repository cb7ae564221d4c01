// Package telegram implements transport.Adapter on top of telebot.
//
// Two update modes are supported: long polling (default, zero setup) and
// webhook (the messaging platform POSTs updates to us; needs a public
// HTTPS endpoint).
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	kit "noticebot/internal/transport"
	"noticebot/pkg/logx"
)

type Config struct {
	Token string

	// Mode is "longpoll" (default) or "webhook".
	Mode        string
	PollTimeout time.Duration
	Webhook     WebhookConfig

	// RatePerSec caps outbound sends; Telegram throttles chatty bots.
	RatePerSec int
}

type WebhookConfig struct {
	Listen    string
	PublicURL string
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	limiter *rate.Limiter

	out atomic.Value // chan<- kit.Update

	runMu   sync.Mutex
	running bool
	stopped chan struct{}

	droppedUpdates atomic.Uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	poller, err := buildPoller(cfg)
	if err != nil {
		return nil, err
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Poller: poller})
	if err != nil {
		return nil, err
	}

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}

	a := &Adapter{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func buildPoller(cfg Config) (tele.Poller, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "longpoll":
		timeout := cfg.PollTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return &tele.LongPoller{Timeout: timeout}, nil
	case "webhook":
		if cfg.Webhook.Listen == "" || cfg.Webhook.PublicURL == "" {
			return nil, errors.New("webhook mode needs listen address and public url")
		}
		return &tele.Webhook{
			Listen:   cfg.Webhook.Listen,
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.PublicURL},
		}, nil
	default:
		return nil, errors.New("unknown telegram mode: " + cfg.Mode)
	}
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{Message: &kit.Message{
			ID:           m.ID,
			ChatID:       m.Chat.ID,
			FromID:       m.Sender.ID,
			FromUsername: m.Sender.Username,
			Text:         m.Text,
		}})
		return nil
	})
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		// Never let a slow consumer stall the poll loop.
		if n := a.droppedUpdates.Add(1); n%10 == 1 {
			a.log.Warn("incoming updates dropped (channel full)", logx.Int64("total", int64(n)))
		}
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.stopped = make(chan struct{})
	a.out.Store(out)
	stopped := a.stopped
	a.runMu.Unlock()

	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()
	go func() {
		defer close(stopped)
		a.log.Info("telegram polling started", logx.String("mode", a.mode()))
		a.bot.Start() // blocks until Stop()
		a.log.Info("telegram polling stopped")
	}()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	stopped := a.stopped
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	// telebot Stop is expected to be fast; run it async just in case.
	go a.bot.Stop()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		a.log.Warn("telegram stop timed out")
		return nil
	}
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	})
	return err
}

func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	_ = ctx
	tc := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		tc = append(tc, tele.Command{Text: c.Command, Description: c.Description})
	}
	return a.bot.SetCommands(tc)
}

func (a *Adapter) mode() string {
	if strings.EqualFold(strings.TrimSpace(a.cfg.Mode), "webhook") {
		return "webhook"
	}
	return "longpoll"
}
