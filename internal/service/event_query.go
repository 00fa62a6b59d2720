package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kultuurivoog/internal/models"
	"kultuurivoog/internal/repository"
)

const maxWindowRows = 2000

// EventQueryService serves date windows from the read views.
type EventQueryService struct {
	Repo     repository.EventRepository
	Logger   *zap.Logger
	Location *time.Location
	Now      func() time.Time
}

// Window returns events dated from..to inclusive, ordered by date and time.
// Kids events are included only when showKids is set. Storage failures are
// logged and yield an empty slice.
func (s *EventQueryService) Window(ctx context.Context, from, to time.Time, showKids bool) []models.Event {
	if s == nil || s.Repo == nil {
		return []models.Event{}
	}
	if to.Before(from) {
		from, to = to, from
	}
	view := repository.ViewAdults
	if showKids {
		view = repository.ViewClean
	}
	items, err := s.Repo.ListViewEvents(ctx, repository.ListViewEventsParams{
		View:  view,
		From:  from,
		To:    to,
		Limit: maxWindowRows,
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("query events window failed",
				zap.String("view", view),
				zap.String("from", from.Format("2006-01-02")),
				zap.String("to", to.Format("2006-01-02")),
				zap.Error(err),
			)
		}
		return []models.Event{}
	}
	if items == nil {
		items = []models.Event{}
	}
	return items
}

// NextDays returns today plus the following days; days=0 is today only.
func (s *EventQueryService) NextDays(ctx context.Context, days int, showKids bool) []models.Event {
	today := s.Today()
	if days < 0 {
		days = 0
	}
	return s.Window(ctx, today, today.AddDate(0, 0, days), showKids)
}

// Today is the current calendar day in the service time zone.
func (s *EventQueryService) Today() time.Time {
	now := time.Now()
	if s != nil && s.Now != nil {
		now = s.Now()
	}
	loc := time.UTC
	if s != nil && s.Location != nil {
		loc = s.Location
	}
	now = now.In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}
