// Package config loads and watches the bot configuration.
//
// Files may be YAML or JSON; YAML is coerced to JSON so both formats go
// through the same strict decoder (unknown fields rejected). Secrets
// (bot token, broadcast chat) may come from the environment instead of
// the file, which is how hosted deployments supply them.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

const (
	EnvToken         = "TELEGRAM_TOKEN"
	EnvBroadcastChat = "BROADCAST_CHAT_ID"
)

const defaultBoardURL = "https://www.aiub.edu/category/notices"

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Board    BoardConfig    `json:"board"`
	Poll     PollConfig     `json:"poll"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via TELEGRAM_TOKEN.
	Token string `json:"token,omitempty"`
	// BroadcastChatID is the fixed recipient for new-notice alerts.
	// May be supplied via BROADCAST_CHAT_ID.
	BroadcastChatID int64 `json:"broadcast_chat_id,omitempty"`

	// Mode is "longpoll" (default) or "webhook".
	Mode string `json:"mode,omitempty"`
	// PollTimeout is a Go duration string (longpoll mode).
	PollTimeout string        `json:"poll_timeout,omitempty"`
	Webhook     WebhookConfig `json:"webhook,omitempty"`

	// RatePerSec throttles outbound sends. Default 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type WebhookConfig struct {
	Listen    string `json:"listen,omitempty"`     // e.g. ":8443"
	PublicURL string `json:"public_url,omitempty"` // e.g. "https://bot.example.edu/tg"
}

type BoardConfig struct {
	URL string `json:"url,omitempty"`
	// BaseURL resolves relative notice links; defaults to URL.
	BaseURL   string `json:"base_url,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	// Timeout is a Go duration string for the page fetch.
	Timeout string `json:"timeout,omitempty"`
}

type PollConfig struct {
	// Enabled defaults to true; set false when an external trigger runs
	// the bot with -once instead.
	Enabled *bool `json:"enabled,omitempty"`
	// Schedule is a duration ("30m", default) or cron expression.
	Schedule string `json:"schedule,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // "file" (default) or "sqlite"
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

func (c *PollConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// applyEnv overlays secrets from the environment. Env values win over the
// file so hosting platforms never need credentials on disk.
func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBroadcastChat)); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBroadcastChat, err)
		}
		c.Telegram.BroadcastChatID = id
	}
	return nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Board.URL) == "" {
		c.Board.URL = defaultBoardURL
	}
	if strings.TrimSpace(c.Board.BaseURL) == "" {
		c.Board.BaseURL = c.Board.URL
	}
	if strings.TrimSpace(c.Poll.Schedule) == "" {
		c.Poll.Schedule = "30m"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = "./noticebot.state"
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = 1
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or set %s)", EnvToken)
	}
	if c.Telegram.BroadcastChatID == 0 {
		return fmt.Errorf("telegram.broadcast_chat_id is required (or set %s)", EnvBroadcastChat)
	}
	switch strings.ToLower(strings.TrimSpace(c.Telegram.Mode)) {
	case "", "longpoll":
	case "webhook":
		if strings.TrimSpace(c.Telegram.Webhook.Listen) == "" || strings.TrimSpace(c.Telegram.Webhook.PublicURL) == "" {
			return errors.New("telegram.webhook.listen and telegram.webhook.public_url are required in webhook mode")
		}
	default:
		return fmt.Errorf("telegram.mode must be longpoll or webhook, got %q", c.Telegram.Mode)
	}
	return nil
}

func decode(path string, data []byte) (*Config, error) {
	jb, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// coerceToJSONBytes converts YAML config to JSON bytes so we can re-use the
// strict JSON decoder (DisallowUnknownFields) for both formats.
func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	jb, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml to json: %w", err)
	}
	return jb, nil
}
