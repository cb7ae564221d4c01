package scrape

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Notice is a single published item on the board.
//
// The board exposes no stable numeric ID, so identity is the title
// (plus link when available).
type Notice struct {
	Title string
	Date  string // display string as rendered by the page
	Link  string

	// PublishedAt is a best-effort parse of Date. Zero when the page's
	// date format is not machine-readable; only used for display.
	PublishedAt time.Time
}

// Key returns the identity of the notice used for seen-state comparison.
func (n Notice) Key() string { return strings.TrimSpace(n.Title) }

func parsePublished(date string) time.Time {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(date)
	if err != nil {
		return time.Time{}
	}
	return t
}
