package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"kultuurivoog/internal/classify"
	"kultuurivoog/internal/identity"
	"kultuurivoog/internal/textnorm"
)

var knownCities = []string{
	"Tallinn", "Tartu", "Pärnu", "Rakvere", "Viljandi",
	"Kuressaare", "Narva", "Jõhvi", "Haapsalu",
}

// DetectCity returns the first known city named in venue, or "".
func DetectCity(venue string) string {
	v := textnorm.Normalize(venue)
	if v == "" {
		return ""
	}
	for _, city := range knownCities {
		if strings.Contains(v, strings.ToLower(city)) {
			return city
		}
	}
	return ""
}

var (
	clockAny   = regexp.MustCompile(`(?:^|[^\d])([01]?\d|2[0-3])[:.]([0-5]\d)(?:[^\d]|$)`)
	clockColon = regexp.MustCompile(`(?:^|[^\d])([01]?\d|2[0-3]):([0-5]\d)(?:[^\d]|$)`)
)

// clockTime extracts HH:MM from text such as "19:00" or "kell 19.30".
func clockTime(s string) string {
	return formatClock(clockAny.FindStringSubmatch(s))
}

// clockInDate only accepts colon times so "12.02.2026" is not read as 12:02.
func clockInDate(s string) string {
	return formatClock(clockColon.FindStringSubmatch(s))
}

func formatClock(m []string) string {
	if m == nil {
		return ""
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + m[2]
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		if !u.IsAbs() {
			return ""
		}
		return u.String()
	}
	return base.ResolveReference(u).String()
}

func text(sel *goquery.Selection) string {
	return textnorm.Clean(sel.Text())
}

func firstText(scope *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if t := text(scope.Find(s).First()); t != "" {
			return t
		}
	}
	return ""
}

func imageSrc(scope *goquery.Selection) string {
	img := scope.Find("img").First()
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func ticketHref(scope *goquery.Selection) string {
	if href, ok := scope.Find(`a[href*="piletilevi"], a[href*="ticket"], a[href*="pilet"]`).First().Attr("href"); ok {
		return href
	}
	return ""
}

// draft holds the raw strings pulled out of one fragment.
type draft struct {
	Title       string
	Date        string
	Time        string
	Venue       string
	Description string
	ImageURL    string
	TicketURL   string
	SourceURL   string
}

func (d draft) build(source, fallbackGenre string) Record {
	city := DetectCity(d.Venue)
	c := classify.Classify(d.Title, d.Description, d.Venue, fallbackGenre)
	return Record{
		CanonicalID: identity.Generate(d.Title, d.Date, d.Venue, city, d.Time),
		Title:       textnorm.Clean(d.Title),
		Genre:       c.Genre,
		Date:        d.Date,
		Time:        textnorm.Ptr(d.Time),
		Venue:       textnorm.Ptr(d.Venue),
		City:        textnorm.Ptr(city),
		IsFree:      c.IsFree,
		FreeReason:  textnorm.Ptr(c.FreeReason),
		IsKidsEvent: c.IsKidsEvent,
		Description: textnorm.Ptr(d.Description),
		ImageURL:    textnorm.Ptr(d.ImageURL),
		TicketURL:   textnorm.Ptr(d.TicketURL),
		Source:      source,
		SourceURL:   textnorm.Ptr(d.SourceURL),
	}
}

// fragmentResult is either a record or the reason the fragment was dropped.
type fragmentResult struct {
	Record Record
	Skip   SkipReason
}

// extractFragment runs fn and converts a panic into SkipExtractError so a
// single malformed fragment cannot abort the page.
func extractFragment(fn func() fragmentResult) (res fragmentResult) {
	defer func() {
		if r := recover(); r != nil {
			res = fragmentResult{Skip: SkipExtractError}
		}
	}()
	return fn()
}

type pageParser func(doc *goquery.Document, base *url.URL, now time.Time) ([]Record, map[string]int)

// scrape fetches pageURL, parses it and fills the fetch part of Stats.
func scrape(ctx context.Context, f *Fetcher, source, pageURL, referer string, now time.Time, parse pageParser, logger *zap.Logger) ([]Record, Stats) {
	started := time.Now()
	stats := Stats{Source: source}
	finish := func(records []Record) ([]Record, Stats) {
		stats.DurationMs = time.Since(started).Milliseconds()
		return records, stats
	}

	if f == nil {
		stats.Error = "fetcher is nil"
		return finish(nil)
	}
	page, err := f.Get(ctx, pageURL, referer)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			stats.HTTPStatus = se.Status
		}
		if errors.Is(err, ErrBlocked) {
			stats.Blocked = true
			logger.Warn("source blocked", zap.Int("status", stats.HTTPStatus), zap.String("url", pageURL))
			return finish(nil)
		}
		stats.Error = err.Error()
		logger.Warn("fetch failed", zap.String("url", pageURL), zap.Error(err))
		return finish(nil)
	}
	stats.HTTPStatus = page.Status

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		stats.Error = fmt.Sprintf("parse html: %v", err)
		logger.Warn("parse html failed", zap.Error(err))
		return finish(nil)
	}
	base := page.URL
	if base == nil {
		base, _ = url.Parse(pageURL)
	}
	records, skipped := parse(doc, base, now)
	stats.Parsed = len(records)
	if len(skipped) > 0 {
		stats.Skipped = skipped
	}
	logger.Info("source parsed",
		zap.Int("http_status", stats.HTTPStatus),
		zap.Int("parsed", stats.Parsed),
		zap.Int("skipped", stats.SkippedTotal()),
		zap.Any("skip_reasons", stats.Skipped),
	)
	return finish(records)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
