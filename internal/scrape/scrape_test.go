package scrape

import (
	"errors"
	"testing"
)

const boardPage = `<!DOCTYPE html>
<html><body>
<div class="events">
  <div class="event-item">
    <a href="/notices/final-exam-routine">
      <h2 class="title"> Final  Exam Routine </h2>
    </a>
    <span class="date">20 August 2026</span>
  </div>
  <div class="event-item">
    <h2 class="title"></h2>
  </div>
  <div class="notice-item">
    <h2 class="title">Midterm EXAM Schedule</h2>
    <a href="https://cdn.example.edu/files/mid.pdf">download</a>
    <time>15 August 2026</time>
  </div>
  <article>
    <a href="/notices/club-fair"><h2 class="title">Club Fair 2026</h2></a>
  </article>
</div>
</body></html>`

func TestParseItems(t *testing.T) {
	t.Parallel()
	p, err := New("https://www.aiub.edu")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	notices, err := p.Parse(boardPage)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(notices) != 3 {
		t.Fatalf("got %d notices, want 3 (empty title skipped)", len(notices))
	}

	first := notices[0]
	if first.Title != "Final Exam Routine" {
		t.Errorf("title = %q, want whitespace-collapsed %q", first.Title, "Final Exam Routine")
	}
	if first.Link != "https://www.aiub.edu/notices/final-exam-routine" {
		t.Errorf("link = %q, want resolved against base", first.Link)
	}
	if first.Date != "20 August 2026" {
		t.Errorf("date = %q", first.Date)
	}
	if first.PublishedAt.IsZero() {
		t.Errorf("expected PublishedAt parsed from %q", first.Date)
	}

	// Title not wrapped in <a>: falls back to the item's first link, absolute URLs untouched.
	if notices[1].Link != "https://cdn.example.edu/files/mid.pdf" {
		t.Errorf("second link = %q", notices[1].Link)
	}
	if notices[2].Title != "Club Fair 2026" {
		t.Errorf("third title = %q", notices[2].Title)
	}
}

func TestParseBareTitleFallback(t *testing.T) {
	t.Parallel()
	p, err := New("https://www.aiub.edu")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	page := `<html><body>
		<a href="/notices/one"><h2 class="title">Notice One</h2></a>
		<a href="/notices/two"><h2 class="title">Notice Two</h2></a>
	</body></html>`
	notices, err := p.Parse(page)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(notices) != 2 {
		t.Fatalf("got %d notices, want 2", len(notices))
	}
	if notices[0].Title != "Notice One" || notices[0].Link != "https://www.aiub.edu/notices/one" {
		t.Errorf("unexpected first notice: %+v", notices[0])
	}
	if notices[0].Date != "" || !notices[0].PublishedAt.IsZero() {
		t.Errorf("fallback notices carry no date: %+v", notices[0])
	}
}

func TestParseLayoutChanged(t *testing.T) {
	t.Parallel()
	p, err := New("https://www.aiub.edu")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Parse(`<html><body><h1>Maintenance</h1></body></html>`)
	if !errors.Is(err, ErrNoNotices) {
		t.Fatalf("err = %v, want ErrNoNotices", err)
	}
}

func TestParseMissingLinkFallsBackToBase(t *testing.T) {
	t.Parallel()
	p, err := New("https://www.aiub.edu/category/notices")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	page := `<html><body><div class="event-item"><h2 class="title">Orphan Notice</h2></div></body></html>`
	notices, err := p.Parse(page)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if notices[0].Link != "https://www.aiub.edu/category/notices" {
		t.Errorf("link = %q, want board base URL", notices[0].Link)
	}
}
