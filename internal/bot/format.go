package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"noticebot/internal/poll"
	"noticebot/internal/scrape"
	"noticebot/pkg/tgui"
)

const (
	listLimit   = 5
	searchLimit = 5
)

const startText = `👋 <b>Welcome to AIUB Notice Bot!</b>

Available commands:
/notice — show the latest 5 notices
/latest — show the most recent notice
/search &lt;keyword&gt; — search notices by title
/status — bot health
/help — show this message`

const usageHint = "Unknown command. Try /help"

func formatAlert(n scrape.Notice) string {
	return tgui.JoinH("\n\n",
		tgui.Raw("🚨 <b>New AIUB Notice!</b>"),
		tgui.I(n.Title),
		tgui.Link("Click to Read", n.Link),
	).String()
}

func formatNoticeList(notices []scrape.Notice) string {
	if len(notices) == 0 {
		return "No notices found."
	}
	lines := []tgui.H{tgui.Raw("📋 <b>Latest AIUB Notices</b>\n")}
	for i, n := range notices {
		if i >= listLimit {
			break
		}
		lines = append(lines, numberedLine(i+1, n))
	}
	return tgui.JoinH("\n", lines...).String()
}

func formatLatest(n scrape.Notice) string {
	parts := []tgui.H{tgui.Raw("🔔 <b>Latest Notice</b>")}
	if when := relativeDate(n); when != "" {
		parts = append(parts, tgui.Esc("📅 "+when))
	} else if n.Date != "" {
		parts = append(parts, tgui.Esc("📅 "+n.Date))
	}
	parts = append(parts, tgui.I(n.Title), tgui.Link("Click to Read", n.Link))
	return tgui.JoinH("\n\n", parts...).String()
}

func formatSearchResults(keyword string, matches []scrape.Notice) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No notices found matching %q", keyword)
	}
	lines := []tgui.H{tgui.Raw("🔍 <b>Search results for " + tgui.Esc(`"`+keyword+`"`).String() + "</b>\n")}
	for i, n := range matches {
		if i >= searchLimit {
			break
		}
		lines = append(lines, numberedLine(i+1, n))
	}
	if extra := len(matches) - searchLimit; extra > 0 {
		lines = append(lines, tgui.I(fmt.Sprintf("+%d more results", extra)))
	}
	return tgui.JoinH("\n", lines...).String()
}

func formatStatus(s poll.Status, startedAt time.Time, storeDriver string) string {
	var b strings.Builder
	b.WriteString("🤖 <b>Notice Bot</b>\n")
	fmt.Fprintf(&b, "Uptime: %s\n", humanize.RelTime(startedAt, time.Now(), "", ""))
	b.WriteString("Store: " + tgui.Esc(storeDriver).String() + "\n")
	if s.LastRun.IsZero() {
		b.WriteString("Poll: not run yet")
		return b.String()
	}
	fmt.Fprintf(&b, "Last poll: %s", humanize.Time(s.LastRun))
	if s.LastErr != nil {
		b.WriteString(" (failed: " + tgui.Esc(s.LastErr.Error()).String() + ")")
	} else if s.LastNew > 0 {
		fmt.Fprintf(&b, " (%d new)", s.LastNew)
	} else {
		b.WriteString(" (no new notices)")
	}
	fmt.Fprintf(&b, "\nRuns: %d, notices sent: %d", s.TotalRuns, s.TotalSent)
	return b.String()
}

func numberedLine(i int, n scrape.Notice) tgui.H {
	line := tgui.H(fmt.Sprintf("%d. %s", i, tgui.Link(n.Title, n.Link)))
	if n.Date != "" {
		line += tgui.H(" ") + tgui.Esc("("+n.Date+")")
	}
	return line
}

func relativeDate(n scrape.Notice) string {
	if n.PublishedAt.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s (%s)", n.Date, humanize.Time(n.PublishedAt))
}
