package scraper

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"kultuurivoog/internal/classify"
	"kultuurivoog/internal/config"
	"kultuurivoog/internal/etdate"
	"kultuurivoog/internal/logger"
)

const (
	defaultConcertURL = "https://concert.ee/"
	defaultConcertMax = 40
)

// ConcertAdapter reads the concert agency front page listing.
type ConcertAdapter struct {
	Fetcher   *Fetcher
	URL       string
	HomeURL   string
	MaxEvents int
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewConcertAdapter(cfg config.SourceConfig, f *Fetcher, log *zap.Logger) *ConcertAdapter {
	return &ConcertAdapter{
		Fetcher:   f,
		URL:       cfg.URL,
		HomeURL:   cfg.HomeURL,
		MaxEvents: cfg.MaxEvents,
		Logger:    log,
	}
}

func (a *ConcertAdapter) Name() string {
	return SourceConcert
}

func (a *ConcertAdapter) Fetch(ctx context.Context) ([]Record, Stats) {
	log := logger.ForSource(a.Logger, SourceConcert)
	pageURL := strings.TrimSpace(a.URL)
	if pageURL == "" {
		pageURL = defaultConcertURL
	}
	limit := a.MaxEvents
	if limit <= 0 {
		limit = defaultConcertMax
	}
	parse := func(doc *goquery.Document, base *url.URL, now time.Time) ([]Record, map[string]int) {
		return parseConcertPage(doc, base, now, limit)
	}
	return scrape(ctx, a.Fetcher, SourceConcert, pageURL, strings.TrimSpace(a.HomeURL), nowFrom(a.Now), parse, log)
}

// concertBlocks prefers explicit .event cards and falls back to grid
// columns that carry both a date and a linked heading.
func concertBlocks(doc *goquery.Document) *goquery.Selection {
	blocks := doc.Find(".event")
	if blocks.Length() > 0 {
		return blocks
	}
	return doc.Find(".col").FilterFunction(func(_ int, col *goquery.Selection) bool {
		return col.Find(".date").Length() > 0 && col.Find("h3 a").Length() > 0
	})
}

func parseConcertPage(doc *goquery.Document, base *url.URL, now time.Time, limit int) ([]Record, map[string]int) {
	stats := Stats{}
	records := make([]Record, 0, limit)
	concertBlocks(doc).EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if len(records) >= limit {
			return false
		}
		res := extractFragment(func() fragmentResult {
			return concertFragment(block, base, now)
		})
		if res.Skip != "" {
			stats.Skip(res.Skip)
			return true
		}
		records = append(records, res.Record)
		return true
	})
	return records, stats.Skipped
}

func concertFragment(block *goquery.Selection, base *url.URL, now time.Time) fragmentResult {
	link := block.Find("h3 a").First()
	if link.Length() == 0 {
		link = block.Find(".title a").First()
	}
	title := text(link)
	if title == "" {
		return fragmentResult{Skip: SkipMissingTitle}
	}
	dateText := text(block.Find(".date").First())
	if dateText == "" {
		return fragmentResult{Skip: SkipMissingDate}
	}
	dateISO, err := etdate.Resolve(dateText, now)
	if err != nil {
		return fragmentResult{Skip: SkipBadDate}
	}

	clock := clockTime(text(block.Find(".time").First()))
	if clock == "" {
		clock = dateClock(dateText)
	}
	d := draft{
		Title:       title,
		Date:        dateISO,
		Time:        clock,
		Venue:       firstText(block, ".venue", ".location", ".place"),
		Description: firstText(block, ".description"),
		ImageURL:    resolveURL(base, imageSrc(block)),
		TicketURL:   resolveURL(base, ticketHref(block)),
	}
	if href, ok := link.Attr("href"); ok {
		d.SourceURL = resolveURL(base, href)
	}
	return fragmentResult{Record: d.build(SourceConcert, classify.GenreConcert)}
}

// dateClock finds a showtime written into the date text. After a date with
// its own year any "19:30" or "19.30" counts; otherwise only colon times do,
// since "12.02" may be the date itself.
func dateClock(dateText string) string {
	if tail, ok := etdate.Tail(dateText); ok {
		return clockTime(tail)
	}
	return clockInDate(dateText)
}
