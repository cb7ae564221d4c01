// Package fetch retrieves the raw notice board page.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"noticebot/pkg/logx"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; NoticeBot/1.0)"

// maxBodyBytes bounds how much page we read; the board page is ~100KB.
const maxBodyBytes = 4 << 20

type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Client fetches the board page. No retries: a failed run is abandoned
// and the next scheduled trigger retries from the same baseline.
type Client struct {
	url  string
	ua   string
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		url:  cfg.URL,
		ua:   ua,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (c *Client) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", c.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("fetch %s: read body: %w", c.url, err)
	}

	c.log.Debug("page fetched",
		logx.String("url", c.url),
		logx.Int("bytes", len(body)),
		logx.Duration("took", time.Since(start)),
	)
	return string(body), nil
}
