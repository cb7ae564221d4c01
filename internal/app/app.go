// Package app wires the services together: config, logging, transport,
// store, poll job, scheduler, and the command router.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"noticebot/internal/bot"
	"noticebot/internal/config"
	"noticebot/internal/fetch"
	"noticebot/internal/poll"
	"noticebot/internal/scheduler"
	"noticebot/internal/scrape"
	"noticebot/internal/store"
	"noticebot/internal/transport"
	"noticebot/internal/transport/telegram"
	"noticebot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter *telegram.Adapter
	st      store.Store
	job     *poll.Job
	sched   *scheduler.Service
	router  *bot.Router

	updates chan transport.Update

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func New(cfgPath string) (*App, error) {
	boot := logx.NewConsole("info")
	cfgMgr := config.NewManager(cfgPath, boot)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})

	a := &App{cfgMgr: cfgMgr, logSvc: logSvc, log: log}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	fetchTimeout, err := config.ParseDurationField("board.timeout", cfg.Board.Timeout)
	if err != nil {
		return err
	}
	fetcher := fetch.New(fetch.Config{
		URL:       cfg.Board.URL,
		UserAgent: cfg.Board.UserAgent,
		Timeout:   fetchTimeout,
	}, a.log.With(logx.String("comp", "fetch")))

	parser, err := scrape.New(cfg.Board.BaseURL)
	if err != nil {
		return err
	}

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, a.log.With(logx.String("comp", "store")))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.st = st

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		Mode:        cfg.Telegram.Mode,
		PollTimeout: pollTimeout,
		Webhook: telegram.WebhookConfig{
			Listen:    cfg.Telegram.Webhook.Listen,
			PublicURL: cfg.Telegram.Webhook.PublicURL,
		},
		RatePerSec: cfg.Telegram.RatePerSec,
	}, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}
	a.adapter = adapter

	broadcaster := bot.NewBroadcaster(adapter, cfg.Telegram.BroadcastChatID)
	a.job = poll.NewJob(fetcher, parser, st, broadcaster, a.log.With(logx.String("comp", "poll")))

	spec, err := scheduler.ParseSpec(cfg.Poll.Schedule)
	if err != nil {
		return fmt.Errorf("poll.schedule: %w", err)
	}
	a.sched = scheduler.New(spec, func(ctx context.Context) { _ = a.job.Run(ctx) },
		a.log.With(logx.String("comp", "scheduler")))

	driver := strings.TrimSpace(cfg.Storage.Driver)
	if driver == "" {
		driver = "file"
	}
	a.router = bot.NewRouter(adapter, fetcher, parser, a.job.Status, driver,
		a.log.With(logx.String("comp", "bot")))

	a.updates = make(chan transport.Update, 64)
	return nil
}

// RunOnce performs a single poll pass and returns — the mode used when an
// external scheduler (cron, CI timer) triggers the bot.
func (a *App) RunOnce(ctx context.Context) error {
	defer a.Close()
	return a.job.Run(ctx)
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.stopped = make(chan struct{})
	stopped := a.stopped
	a.mu.Unlock()

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}
	if err := a.adapter.UpdateMenuCommands(runCtx, a.router.Commands()); err != nil {
		a.log.Warn("command menu update failed", logx.Err(err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.router.Run(runCtx, a.updates)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.cfgMgr.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.applyConfigUpdates(runCtx)
	}()
	go func() {
		wg.Wait()
		close(stopped)
	}()

	if a.cfgMgr.Get().Poll.IsEnabled() {
		a.sched.Start(runCtx)
		// Don't wait a full interval for the first pass.
		go func() { _ = a.job.Run(runCtx) }()
	} else {
		a.log.Info("scheduled polling disabled; commands only")
	}

	a.log.Info("noticebot started", logx.String("board", a.cfgMgr.Get().Board.URL))
	return nil
}

// applyConfigUpdates reacts to hot-reloaded config. Only runtime tunables
// move without a restart: log level/sinks and the poll schedule.
func (a *App) applyConfigUpdates(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(1)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
			})
			if spec, err := scheduler.ParseSpec(cfg.Poll.Schedule); err != nil {
				a.log.Warn("ignoring invalid poll.schedule", logx.Err(err))
			} else {
				a.sched.Apply(ctx, spec)
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	stopped := a.stopped
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.sched.Stop()
	_ = a.adapter.Stop(ctx)
	if stopped != nil {
		select {
		case <-stopped:
		case <-ctx.Done():
		}
	}
	a.Close()
	a.log.Info("noticebot stopped")
	return nil
}

func (a *App) Close() {
	if a.st != nil {
		_ = a.st.Close()
		a.st = nil
	}
	_ = a.logSvc.Close()
}
