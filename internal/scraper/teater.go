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
	"kultuurivoog/internal/textnorm"
)

const (
	defaultTeaterURL = "https://teater.ee/teatriinfo/mangukava/"
	defaultTeaterMax = 50
)

// TeaterAdapter reads the national play schedule. The page groups events
// under one heading per day.
type TeaterAdapter struct {
	Fetcher       *Fetcher
	URL           string
	HomeURL       string
	MaxEvents     int
	WarmupTimeout time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

func NewTeaterAdapter(cfg config.SourceConfig, fetch config.FetchConfig, f *Fetcher, log *zap.Logger) *TeaterAdapter {
	return &TeaterAdapter{
		Fetcher:       f,
		URL:           cfg.URL,
		HomeURL:       cfg.HomeURL,
		MaxEvents:     cfg.MaxEvents,
		WarmupTimeout: fetch.WarmupTimeout,
		Logger:        log,
	}
}

func (a *TeaterAdapter) Name() string {
	return SourceTeater
}

func (a *TeaterAdapter) Fetch(ctx context.Context) ([]Record, Stats) {
	log := logger.ForSource(a.Logger, SourceTeater)
	pageURL := strings.TrimSpace(a.URL)
	if pageURL == "" {
		pageURL = defaultTeaterURL
	}
	home := strings.TrimSpace(a.HomeURL)
	if home != "" {
		a.warmUp(ctx, home, log)
	}
	limit := a.MaxEvents
	if limit <= 0 {
		limit = defaultTeaterMax
	}
	parse := func(doc *goquery.Document, base *url.URL, now time.Time) ([]Record, map[string]int) {
		return parseTeaterPage(doc, base, now, limit)
	}
	return scrape(ctx, a.Fetcher, SourceTeater, pageURL, home, nowFrom(a.Now), parse, log)
}

// warmUp requests the home page once before the schedule. Failure is
// logged and ignored.
func (a *TeaterAdapter) warmUp(ctx context.Context, home string, log *zap.Logger) {
	if a.Fetcher == nil {
		return
	}
	timeout := a.WarmupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := a.Fetcher.do(wctx, home, ""); err != nil {
		log.Info("warm-up request failed", zap.String("url", home), zap.Error(err))
	}
}

func parseTeaterPage(doc *goquery.Document, base *url.URL, now time.Time, limit int) ([]Record, map[string]int) {
	stats := Stats{}
	records := make([]Record, 0, limit)

	doc.Find(".post-etendus__item").EachWithBreak(func(_ int, day *goquery.Selection) bool {
		if len(records) >= limit {
			return false
		}
		events := day.Find(".block-etendus")
		heading := text(day.Find(".post-etendus__heading").First())
		var dateISO string
		var dateSkip SkipReason
		if heading == "" {
			dateSkip = SkipMissingDate
		} else if iso, err := etdate.Resolve(heading, now); err != nil {
			dateSkip = SkipBadDate
		} else {
			dateISO = iso
		}

		events.EachWithBreak(func(_ int, ev *goquery.Selection) bool {
			if len(records) >= limit {
				return false
			}
			res := extractFragment(func() fragmentResult {
				if dateSkip != "" {
					return fragmentResult{Skip: dateSkip}
				}
				return teaterFragment(ev, base, dateISO)
			})
			if res.Skip != "" {
				stats.Skip(res.Skip)
				return true
			}
			records = append(records, res.Record)
			return true
		})
		return true
	})
	return records, stats.Skipped
}

func teaterFragment(ev *goquery.Selection, base *url.URL, dateISO string) fragmentResult {
	title := text(ev.Find(".block-etendus__paragraph-big").First())
	if title == "" {
		return fragmentResult{Skip: SkipMissingTitle}
	}
	d := draft{
		Title: title,
		Date:  dateISO,
		Time:  clockTime(text(ev.Find(".block-etendus__time").First())),
		Venue: teaterVenue(ev),
	}
	if href, ok := ev.Find(`a[href*="/lavastused/"]`).First().Attr("href"); ok {
		d.SourceURL = resolveURL(base, href)
	}
	d.ImageURL = resolveURL(base, imageSrc(ev))
	d.TicketURL = resolveURL(base, ticketHref(ev))
	return fragmentResult{Record: d.build(SourceTeater, classify.GenreTheatre)}
}

// teaterVenue is the first small paragraph that is not an age rating or
// a production credit.
func teaterVenue(ev *goquery.Selection) string {
	venue := ""
	ev.Find(".block-etendus__paragraph-small").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		t := text(p)
		norm := textnorm.Normalize(t)
		if strings.Contains(norm, "vaatajale") || strings.Contains(norm, "lavastus") {
			return true
		}
		if runeLen(t) > 2 {
			venue = t
			return false
		}
		return true
	})
	return venue
}
