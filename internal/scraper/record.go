// Package scraper fetches public event listings and turns each listing
// fragment into a normalized Record.
package scraper

import (
	"context"
	"time"
)

const (
	SourceTeater  = "teater.ee"
	SourceConcert = "concert.ee"
)

type SkipReason string

const (
	SkipMissingTitle SkipReason = "missing_title"
	SkipMissingDate  SkipReason = "missing_date"
	SkipBadDate      SkipReason = "bad_date"
	SkipExtractError SkipReason = "extract_error"
)

// Record is one extracted event. Date is YYYY-MM-DD and Time HH:MM;
// optional fields are nil when the page does not carry them.
type Record struct {
	CanonicalID string  `json:"canonical_id"`
	Title       string  `json:"title"`
	Genre       string  `json:"genre"`
	Date        string  `json:"date"`
	Time        *string `json:"time,omitempty"`
	Venue       *string `json:"venue,omitempty"`
	City        *string `json:"city,omitempty"`
	IsFree      bool    `json:"is_free"`
	FreeReason  *string `json:"free_reason,omitempty"`
	IsKidsEvent bool    `json:"is_kids_event"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	TicketURL   *string `json:"ticket_url,omitempty"`
	Source      string  `json:"source"`
	SourceURL   *string `json:"source_url,omitempty"`
}

// Stats describes one adapter run. Inserted and Updated are filled in
// after the records are merged.
type Stats struct {
	Source     string         `json:"source"`
	Parsed     int            `json:"parsed"`
	Inserted   int            `json:"inserted"`
	Updated    int            `json:"updated"`
	Skipped    map[string]int `json:"skipped,omitempty"`
	HTTPStatus int            `json:"http_status"`
	Blocked    bool           `json:"blocked"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

func (s *Stats) Skip(reason SkipReason) {
	if s.Skipped == nil {
		s.Skipped = map[string]int{}
	}
	s.Skipped[string(reason)]++
}

func (s Stats) SkippedTotal() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// SourceAdapter produces records for one site. Failures are reported in
// Stats and never abort the caller.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context) ([]Record, Stats)
}

func nowFrom(fn func() time.Time) time.Time {
	if fn == nil {
		return time.Now()
	}
	return fn()
}
