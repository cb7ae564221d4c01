// Package scrape extracts notice records from the board's HTML.
//
// All page-structure assumptions live here, behind the stable
// Parse(html) -> []Notice contract: a board layout change should only
// ever touch this package and its tests.
package scrape

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrNoNotices means the expected structural markers are absent,
// usually because the page layout changed.
var ErrNoNotices = errors.New("scrape: no notices found in page")

var (
	selItem     = cascadia.MustCompile(".event-item, .notice-item, article")
	selTitle    = cascadia.MustCompile("h2.title")
	selDate     = cascadia.MustCompile(".date, time, .event-date")
	selAnyLink  = cascadia.MustCompile("a[href]")
	selFallback = cascadia.MustCompile("h2.title")
)

// Parser turns raw board HTML into an ordered notice list,
// most-recent first, as rendered by the page.
type Parser struct {
	base *url.URL
}

func New(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("scrape: invalid base url %q: %w", baseURL, err)
	}
	return &Parser{base: u}, nil
}

func (p *Parser) Parse(pageHTML string) ([]Notice, error) {
	root, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("scrape: parse html: %w", err)
	}

	notices := p.fromItems(root)
	if len(notices) == 0 {
		// Older board layout: bare h2.title headings wrapped in links.
		notices = p.fromBareTitles(root)
	}
	if len(notices) == 0 {
		return nil, ErrNoNotices
	}
	return notices, nil
}

func (p *Parser) fromItems(root *html.Node) []Notice {
	var out []Notice
	for _, item := range selItem.MatchAll(root) {
		title := selTitle.MatchFirst(item)
		if title == nil {
			continue
		}
		text := nodeText(title)
		if text == "" {
			continue
		}

		link := ancestorHref(title)
		if link == "" {
			if a := selAnyLink.MatchFirst(item); a != nil {
				link = attr(a, "href")
			}
		}

		date := ""
		if d := selDate.MatchFirst(item); d != nil {
			date = nodeText(d)
		}

		out = append(out, Notice{
			Title:       text,
			Date:        date,
			Link:        p.resolve(link),
			PublishedAt: parsePublished(date),
		})
	}
	return out
}

func (p *Parser) fromBareTitles(root *html.Node) []Notice {
	var out []Notice
	for _, title := range selFallback.MatchAll(root) {
		text := nodeText(title)
		if text == "" {
			continue
		}
		out = append(out, Notice{
			Title: text,
			Link:  p.resolve(ancestorHref(title)),
		})
	}
	return out
}

// resolve joins a scraped href against the board's base URL.
// Empty hrefs fall back to the base itself so every notice stays clickable.
func (p *Parser) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return p.base.String()
	}
	u, err := url.Parse(href)
	if err != nil {
		return p.base.String()
	}
	return p.base.ResolveReference(u).String()
}

// ancestorHref walks up from n to the nearest enclosing <a href>.
func ancestorHref(n *html.Node) string {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == "a" {
			if href := attr(cur, "href"); href != "" {
				return href
			}
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
