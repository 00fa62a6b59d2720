package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kultuurivoog/internal/etdate"
	"kultuurivoog/internal/identity"
	"kultuurivoog/internal/models"
	"kultuurivoog/internal/repository"
	"kultuurivoog/internal/scraper"
	"kultuurivoog/internal/textnorm"
)

// MergeStore writes one adapter batch into the events table.
type MergeStore struct {
	Repo   repository.EventRepository
	Logger *zap.Logger
	Now    func() time.Time
}

type MergeResult struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Rejected map[string]int `json:"rejected,omitempty"`
}

// Upsert validates records, then inserts or refreshes them in a single
// transaction. A storage error rolls back the whole batch.
func (m *MergeStore) Upsert(ctx context.Context, records []scraper.Record) (MergeResult, error) {
	result := MergeResult{}
	if m == nil || m.Repo == nil {
		return result, fmt.Errorf("merge store is not configured")
	}
	now := time.Now().UTC()
	if m.Now != nil {
		now = m.Now().UTC()
	}

	items := make([]models.Event, 0, len(records))
	for _, rec := range records {
		item, reason := eventFromRecord(rec, now)
		if reason != "" {
			if result.Rejected == nil {
				result.Rejected = map[string]int{}
			}
			result.Rejected[string(reason)]++
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return result, nil
	}

	inserted, updated := 0, 0
	err := m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		for i := range items {
			ok, err := m.Repo.UpsertEventTx(ctx, tx, &items[i])
			if err != nil {
				return err
			}
			if ok {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Inserted = inserted
	result.Updated = updated
	if m.Logger != nil {
		m.Logger.Debug("merge batch committed",
			zap.Int("inserted", inserted),
			zap.Int("updated", updated),
			zap.Int("rejected", len(records)-len(items)),
		)
	}
	return result, nil
}

func eventFromRecord(rec scraper.Record, now time.Time) (models.Event, scraper.SkipReason) {
	title := textnorm.Clean(rec.Title)
	if title == "" {
		return models.Event{}, scraper.SkipMissingTitle
	}
	if strings.TrimSpace(rec.Date) == "" {
		return models.Event{}, scraper.SkipMissingDate
	}
	date, err := etdate.ParseISO(rec.Date)
	if err != nil {
		return models.Event{}, scraper.SkipBadDate
	}
	id := strings.TrimSpace(rec.CanonicalID)
	if id == "" {
		id = identity.Generate(title, rec.Date, deref(rec.Venue), deref(rec.City), deref(rec.Time))
	}
	return models.Event{
		CanonicalID: id,
		Title:       title,
		Genre:       rec.Genre,
		Date:        date,
		Time:        nonEmpty(rec.Time),
		Venue:       nonEmpty(rec.Venue),
		City:        nonEmpty(rec.City),
		IsFree:      rec.IsFree,
		FreeReason:  nonEmpty(rec.FreeReason),
		IsKidsEvent: rec.IsKidsEvent,
		Description: nonEmpty(rec.Description),
		ImageURL:    nonEmpty(rec.ImageURL),
		TicketURL:   nonEmpty(rec.TicketURL),
		Source:      rec.Source,
		SourceURL:   nonEmpty(rec.SourceURL),
		FirstSeenAt: now,
		LastSeenAt:  now,
		UpdatedAt:   now,
	}, ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	return textnorm.Ptr(*s)
}
