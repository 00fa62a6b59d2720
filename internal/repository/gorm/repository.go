package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"kultuurivoog/internal/models"
	"kultuurivoog/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var errNoDB = errors.New("repository: db is nil")

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

const upsertEventSQL = `
INSERT INTO events (
	canonical_id, title, genre, "date", "time", venue, city,
	is_free, free_reason, is_kids_event, description, image_url, ticket_url,
	source, source_url, first_seen_at, last_seen_at, updated_at
) VALUES (
	@canonical_id, @title, @genre, @date, @time, @venue, @city,
	@is_free, @free_reason, @is_kids_event, @description, @image_url, @ticket_url,
	@source, @source_url, @now, @now, @now
)
ON CONFLICT (canonical_id) DO UPDATE SET
	title = EXCLUDED.title,
	genre = EXCLUDED.genre,
	"date" = EXCLUDED."date",
	"time" = EXCLUDED."time",
	venue = EXCLUDED.venue,
	city = EXCLUDED.city,
	is_free = EXCLUDED.is_free,
	free_reason = EXCLUDED.free_reason,
	is_kids_event = EXCLUDED.is_kids_event,
	description = EXCLUDED.description,
	image_url = EXCLUDED.image_url,
	ticket_url = EXCLUDED.ticket_url,
	source = EXCLUDED.source,
	source_url = EXCLUDED.source_url,
	last_seen_at = EXCLUDED.last_seen_at,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`

func (s *Store) UpsertEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) (bool, error) {
	if item == nil {
		return false, nil
	}
	db := tx
	if db == nil {
		if s == nil || s.db == nil {
			return false, errNoDB
		}
		db = s.db
	}
	now := item.LastSeenAt
	if now.IsZero() {
		now = db.NowFunc()
	}
	var row struct {
		Inserted bool
	}
	err := db.WithContext(ctx).Raw(upsertEventSQL, map[string]any{
		"canonical_id":  item.CanonicalID,
		"title":         item.Title,
		"genre":         item.Genre,
		"date":          item.Date.Format("2006-01-02"),
		"time":          item.Time,
		"venue":         item.Venue,
		"city":          item.City,
		"is_free":       item.IsFree,
		"free_reason":   item.FreeReason,
		"is_kids_event": item.IsKidsEvent,
		"description":   item.Description,
		"image_url":     item.ImageURL,
		"ticket_url":    item.TicketURL,
		"source":        item.Source,
		"source_url":    item.SourceURL,
		"now":           now,
	}).Scan(&row).Error
	if err != nil {
		return false, fmt.Errorf("upsert event %s: %w", item.CanonicalID, err)
	}
	return row.Inserted, nil
}

func (s *Store) DeleteEventsByTitleKeywordsTx(ctx context.Context, tx *gorm.DB, keywords []string) (int64, error) {
	keywords = cleanKeywords(keywords)
	if len(keywords) == 0 {
		return 0, nil
	}
	db := s.txOrDB(tx)
	if db == nil {
		return 0, errNoDB
	}
	clauses := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords))
	for _, kw := range keywords {
		clauses = append(clauses, "LOWER(title) LIKE ?")
		args = append(args, "%"+escapeLike(kw)+"%")
	}
	res := db.WithContext(ctx).
		Where(strings.Join(clauses, " OR "), args...).
		Delete(&models.Event{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteEventsWithoutTimeTx(ctx context.Context, tx *gorm.DB, source, genre string) (int64, error) {
	db := s.txOrDB(tx)
	if db == nil {
		return 0, errNoDB
	}
	res := db.WithContext(ctx).
		Where("source = ? AND genre = ?", source, genre).
		Where(`("time" IS NULL OR TRIM("time") = '')`).
		Delete(&models.Event{})
	return res.RowsAffected, res.Error
}

func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNoDB
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Event{}).Count(&total).Error
	return total, err
}

var viewDDL = []string{
	`CREATE OR REPLACE VIEW ` + repository.ViewClean + ` AS
	SELECT * FROM events WHERE "date" >= CURRENT_DATE`,
	`CREATE OR REPLACE VIEW ` + repository.ViewAdults + ` AS
	SELECT * FROM ` + repository.ViewClean + ` WHERE is_kids_event = false`,
}

func (s *Store) EnsureViews(ctx context.Context) error {
	return s.InTx(ctx, func(tx *gorm.DB) error {
		for _, stmt := range viewDDL {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) CountView(ctx context.Context, view string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNoDB
	}
	if !knownView(view) {
		return 0, fmt.Errorf("unknown view: %s", view)
	}
	var total int64
	err := s.db.WithContext(ctx).Table(view).Count(&total).Error
	return total, err
}

func (s *Store) ListViewEvents(ctx context.Context, params repository.ListViewEventsParams) ([]models.Event, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	view := params.View
	if view == "" {
		view = repository.ViewClean
	}
	if !knownView(view) {
		return nil, fmt.Errorf("unknown view: %s", view)
	}
	query := s.db.WithContext(ctx).Table(view).
		Where(`"date" BETWEEN ? AND ?`, params.From.Format("2006-01-02"), params.To.Format("2006-01-02")).
		Order(`"date" asc`).
		Order(`"time" asc NULLS LAST`).
		Order("title asc")
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	var items []models.Event
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertSourceRuns(ctx context.Context, items []models.SourceRun) error {
	if len(items) == 0 {
		return nil
	}
	if s == nil || s.db == nil {
		return errNoDB
	}
	return s.db.WithContext(ctx).CreateInBatches(items, 50).Error
}

func (s *Store) ListSourceRuns(ctx context.Context, params repository.ListSourceRunsParams) ([]models.SourceRun, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	query := s.db.WithContext(ctx).Model(&models.SourceRun{})
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	if params.CycleID != nil && strings.TrimSpace(*params.CycleID) != "" {
		query = query.Where("cycle_id = ?", strings.TrimSpace(*params.CycleID))
	}
	var items []models.SourceRun
	err := query.Order("created_at desc").Order("id desc").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) txOrDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	if s == nil {
		return nil
	}
	return s.db
}

func knownView(view string) bool {
	return view == repository.ViewClean || view == repository.ViewAdults
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanKeywords(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.ToLower(strings.TrimSpace(raw))
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
