package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kultuurivoog/internal/classify"
	"kultuurivoog/internal/repository"
	"kultuurivoog/internal/scraper"
)

const (
	RuleTitleKeywords = "title_keywords"
	RuleConcertNoTime = "concert_without_time"
)

// DefaultTitleBlocklist names gallery and retrospective posts that the
// schedules list among real performances.
var DefaultTitleBlocklist = []string{"galerii", "foto", "pildid", "tähistas", "tagasivaade"}

type CleanupEngine struct {
	Repo           repository.EventRepository
	TitleBlocklist []string
	Logger         *zap.Logger
}

type CleanupStats struct {
	Skipped               bool  `json:"skipped"`
	Deleted               int64 `json:"deleted"`
	DeletedByTitle        int64 `json:"deleted_by_title"`
	DeletedConcertsNoTime int64 `json:"deleted_concerts_no_time"`
	Remaining             int64 `json:"remaining"`
}

func (s CleanupStats) ByRule() map[string]int64 {
	return map[string]int64{
		RuleTitleKeywords: s.DeletedByTitle,
		RuleConcertNoTime: s.DeletedConcertsNoTime,
	}
}

// RunCleanup deletes non-event rows. It does nothing when the cycle parsed
// no events, so a failed scrape never empties the catalog.
func (c *CleanupEngine) RunCleanup(ctx context.Context, parsedThisCycle int) (CleanupStats, error) {
	if parsedThisCycle <= 0 {
		if c != nil && c.Logger != nil {
			c.Logger.Info("cleanup skipped: nothing parsed this cycle")
		}
		return CleanupStats{Skipped: true}, nil
	}
	if c == nil || c.Repo == nil {
		return CleanupStats{}, fmt.Errorf("cleanup engine is not configured")
	}
	blocklist := c.TitleBlocklist
	if len(blocklist) == 0 {
		blocklist = DefaultTitleBlocklist
	}

	stats := CleanupStats{}
	err := c.Repo.InTx(ctx, func(tx *gorm.DB) error {
		n, err := c.Repo.DeleteEventsByTitleKeywordsTx(ctx, tx, blocklist)
		if err != nil {
			return fmt.Errorf("title keyword rule: %w", err)
		}
		stats.DeletedByTitle = n
		n, err = c.Repo.DeleteEventsWithoutTimeTx(ctx, tx, scraper.SourceConcert, classify.GenreConcert)
		if err != nil {
			return fmt.Errorf("concert time rule: %w", err)
		}
		stats.DeletedConcertsNoTime = n
		return nil
	})
	if err != nil {
		return CleanupStats{}, err
	}
	stats.Deleted = stats.DeletedByTitle + stats.DeletedConcertsNoTime

	remaining, err := c.Repo.CountEvents(ctx)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("count events after cleanup failed", zap.Error(err))
		}
	} else {
		stats.Remaining = remaining
	}
	if c.Logger != nil {
		c.Logger.Info("cleanup done",
			zap.Int64("deleted", stats.Deleted),
			zap.Int64("deleted_by_title", stats.DeletedByTitle),
			zap.Int64("deleted_concerts_no_time", stats.DeletedConcertsNoTime),
			zap.Int64("remaining", stats.Remaining),
		)
	}
	return stats, nil
}
