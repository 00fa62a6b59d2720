package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"kultuurivoog/internal/models"
	"kultuurivoog/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.EventRepository.
// Views are evaluated against today, mirroring the SQL definitions.
type stubRepo struct {
	mu       sync.Mutex
	events   map[string]models.Event
	runs     []models.SourceRun
	today    time.Time
	nextID   int64
	txCalls  int
	viewsSQL int

	upsertErr error
	listErr   error
	pingErr   error
}

func newStubRepo(today time.Time) *stubRepo {
	return &stubRepo{events: map[string]models.Event{}, today: today}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	s.txCalls++
	snapshot := make(map[string]models.Event, len(s.events))
	for k, v := range s.events {
		snapshot[k] = v
	}
	s.mu.Unlock()
	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.events = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *stubRepo) UpsertEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) (bool, error) {
	if s.upsertErr != nil {
		return false, s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.events[item.CanonicalID]
	row := *item
	if ok {
		row.ID = prev.ID
		row.FirstSeenAt = prev.FirstSeenAt
		s.events[item.CanonicalID] = row
		return false, nil
	}
	s.nextID++
	row.ID = s.nextID
	s.events[item.CanonicalID] = row
	return true, nil
}

func (s *stubRepo) DeleteEventsByTitleKeywordsTx(ctx context.Context, tx *gorm.DB, keywords []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, ev := range s.events {
		title := strings.ToLower(ev.Title)
		for _, kw := range keywords {
			if strings.Contains(title, strings.ToLower(kw)) {
				delete(s.events, id)
				n++
				break
			}
		}
	}
	return n, nil
}

func (s *stubRepo) DeleteEventsWithoutTimeTx(ctx context.Context, tx *gorm.DB, source, genre string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, ev := range s.events {
		if ev.Source != source || ev.Genre != genre {
			continue
		}
		if ev.Time == nil || strings.TrimSpace(*ev.Time) == "" {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) CountEvents(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.events)), nil
}

func (s *stubRepo) EnsureViews(ctx context.Context) error {
	s.mu.Lock()
	s.viewsSQL++
	s.mu.Unlock()
	return nil
}

func (s *stubRepo) viewRows(view string) []models.Event {
	out := make([]models.Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.Date.Before(s.today) {
			continue
		}
		if view == repository.ViewAdults && ev.IsKidsEvent {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return derefTime(out[i].Time) < derefTime(out[j].Time)
	})
	return out
}

func derefTime(t *string) string {
	if t == nil {
		return "99:99"
	}
	return *t
}

func (s *stubRepo) CountView(ctx context.Context, view string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.viewRows(view))), nil
}

func (s *stubRepo) ListViewEvents(ctx context.Context, params repository.ListViewEventsParams) ([]models.Event, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, ev := range s.viewRows(params.View) {
		if ev.Date.Before(params.From) || ev.Date.After(params.To) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *stubRepo) InsertSourceRuns(ctx context.Context, items []models.SourceRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, items...)
	return nil
}

func (s *stubRepo) ListSourceRuns(ctx context.Context, params repository.ListSourceRunsParams) ([]models.SourceRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SourceRun(nil), s.runs...), nil
}

func (s *stubRepo) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *stubRepo) get(id string) (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	return ev, ok
}
