package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"kultuurivoog/internal/models"
)

const (
	ViewClean  = "v_events_clean"
	ViewAdults = "v_events_clean_adults"
)

type EventRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	// UpsertEventTx inserts the event or overwrites every field except the
	// identity and first_seen_at. inserted reports which branch ran.
	UpsertEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) (inserted bool, err error)
	DeleteEventsByTitleKeywordsTx(ctx context.Context, tx *gorm.DB, keywords []string) (int64, error)
	DeleteEventsWithoutTimeTx(ctx context.Context, tx *gorm.DB, source, genre string) (int64, error)
	CountEvents(ctx context.Context) (int64, error)

	EnsureViews(ctx context.Context) error
	CountView(ctx context.Context, view string) (int64, error)
	ListViewEvents(ctx context.Context, params ListViewEventsParams) ([]models.Event, error)

	InsertSourceRuns(ctx context.Context, items []models.SourceRun) error
	ListSourceRuns(ctx context.Context, params ListSourceRunsParams) ([]models.SourceRun, error)

	Ping(ctx context.Context) error
}

type ListViewEventsParams struct {
	View  string
	From  time.Time
	To    time.Time
	Limit int
}

type ListSourceRunsParams struct {
	Limit   int
	Offset  int
	Source  *string
	CycleID *string
}
