package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"kultuurivoog/internal/metrics"
	"kultuurivoog/internal/models"
	"kultuurivoog/internal/repository"
	"kultuurivoog/internal/scraper"
)

// ErrCycleRunning is returned by TryRunRefreshCycle while another cycle holds
// the guard.
var ErrCycleRunning = errors.New("refresh cycle already running")

const sampleSize = 5

// RefreshService runs the ingestion pipeline: fetch every source, merge,
// clean up, refresh views, then record and publish the outcome.
type RefreshService struct {
	Adapters     []scraper.SourceAdapter
	Merge        *MergeStore
	Cleanup      *CleanupEngine
	Views        *ViewMaterializer
	Repo         repository.EventRepository
	Status       *StatusCache
	Metrics      *metrics.Recorder
	Logger       *zap.Logger
	Parallel     bool
	CycleTimeout time.Duration
	Now          func() time.Time

	running atomic.Bool
}

type sourceResult struct {
	records []scraper.Record
	stats   scraper.Stats
}

// Running reports whether a guarded cycle is in progress.
func (s *RefreshService) Running() bool {
	return s.running.Load()
}

// TryRunRefreshCycle runs a cycle unless one is already in progress.
func (s *RefreshService) TryRunRefreshCycle(ctx context.Context) (CycleStatus, error) {
	if !s.running.CompareAndSwap(false, true) {
		if s.Logger != nil {
			s.Logger.Warn("refresh cycle skipped: previous cycle still running")
		}
		s.Metrics.ObserveCycle("skipped", 0, s.now())
		return CycleStatus{}, ErrCycleRunning
	}
	defer s.running.Store(false)
	return s.RunRefreshCycle(ctx)
}

// RunRefreshCycle executes one full cycle. Source, storage and cleanup
// failures are recorded in the returned status; an error is returned only
// when ctx ends before the cycle completes.
func (s *RefreshService) RunRefreshCycle(ctx context.Context) (CycleStatus, error) {
	if s.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CycleTimeout)
		defer cancel()
	}
	status := CycleStatus{
		CycleID:   uuid.NewString(),
		StartedAt: s.now(),
	}
	log := s.logger().With(zap.String("cycle_id", status.CycleID))
	log.Info("refresh cycle started", zap.Int("sources", len(s.Adapters)), zap.Bool("parallel", s.Parallel))

	results := s.fetchAll(ctx)
	for _, r := range results {
		status.ParsedTotal += r.stats.Parsed
	}
	if err := ctx.Err(); err != nil {
		return s.abort(ctx, &status, results, log, err)
	}

	for i := range results {
		s.mergeSource(ctx, &status, &results[i], log)
	}
	if err := ctx.Err(); err != nil {
		return s.abort(ctx, &status, results, log, err)
	}

	cleanup, err := s.Cleanup.RunCleanup(ctx, status.ParsedTotal)
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("cleanup: %v", err))
		log.Warn("cleanup failed", zap.Error(err))
	}
	status.Cleanup = cleanup
	s.Metrics.ObserveCleanup(cleanup.Skipped, cleanup.ByRule())

	views, err := s.Views.Refresh(ctx)
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("views: %v", err))
		log.Warn("view refresh failed", zap.Error(err))
	} else {
		s.Metrics.SetViewRows(repository.ViewClean, views.Clean)
		s.Metrics.SetViewRows(repository.ViewAdults, views.Adults)
	}
	status.Views = views

	if err := ctx.Err(); err != nil {
		return s.abort(ctx, &status, results, log, err)
	}
	s.finish(ctx, &status, results, log)
	return status, nil
}

func (s *RefreshService) fetchAll(ctx context.Context) []sourceResult {
	results := make([]sourceResult, len(s.Adapters))
	run := func(i int, a scraper.SourceAdapter) {
		defer func() {
			if r := recover(); r != nil {
				results[i] = sourceResult{stats: scraper.Stats{Source: a.Name(), Error: fmt.Sprintf("adapter panic: %v", r)}}
			}
		}()
		records, stats := a.Fetch(ctx)
		if stats.Source == "" {
			stats.Source = a.Name()
		}
		stats.Parsed = len(records)
		results[i] = sourceResult{records: records, stats: stats}
	}

	if !s.Parallel {
		for i, a := range s.Adapters {
			if ctx.Err() != nil {
				results[i] = sourceResult{stats: scraper.Stats{Source: a.Name(), Error: ctx.Err().Error()}}
				continue
			}
			run(i, a)
		}
		return results
	}
	var wg sync.WaitGroup
	for i, a := range s.Adapters {
		wg.Add(1)
		go func(i int, a scraper.SourceAdapter) {
			defer wg.Done()
			run(i, a)
		}(i, a)
	}
	wg.Wait()
	return results
}

func (s *RefreshService) mergeSource(ctx context.Context, status *CycleStatus, r *sourceResult, log *zap.Logger) {
	src := SourceStatus{Stats: r.stats, Samples: samples(r.records)}
	if len(r.records) > 0 {
		res, err := s.Merge.Upsert(ctx, r.records)
		if err != nil {
			src.StorageError = err.Error()
			status.Errors = append(status.Errors, fmt.Sprintf("%s merge: %v", r.stats.Source, err))
			log.Warn("merge failed", zap.String("source", r.stats.Source), zap.Error(err))
		} else {
			src.Inserted = res.Inserted
			src.Updated = res.Updated
			if len(res.Rejected) > 0 && src.Skipped == nil {
				src.Skipped = map[string]int{}
			}
			for reason, n := range res.Rejected {
				src.Skipped[reason] += n
			}
		}
	}
	r.stats = src.Stats
	status.Sources = append(status.Sources, src)
	log.Info("source merged",
		zap.String("source", src.Source),
		zap.Int("parsed", src.Parsed),
		zap.Int("inserted", src.Inserted),
		zap.Int("updated", src.Updated),
		zap.Int("skipped", src.SkippedTotal()),
		zap.Bool("blocked", src.Blocked),
		zap.String("error", src.Error),
	)
}

// abort publishes what the cycle learned before ctx ended.
func (s *RefreshService) abort(ctx context.Context, status *CycleStatus, results []sourceResult, log *zap.Logger, cause error) (CycleStatus, error) {
	status.Cancelled = true
	status.Errors = append(status.Errors, fmt.Sprintf("cycle aborted: %v", cause))
	if len(status.Sources) == 0 {
		for _, r := range results {
			status.Sources = append(status.Sources, SourceStatus{Stats: r.stats, Samples: samples(r.records)})
		}
	}
	log.Warn("refresh cycle aborted", zap.Error(cause))
	s.finish(context.WithoutCancel(ctx), status, results, log)
	return *status, cause
}

func (s *RefreshService) finish(ctx context.Context, status *CycleStatus, results []sourceResult, log *zap.Logger) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	status.DBOk = s.Repo != nil && s.Repo.Ping(pingCtx) == nil

	if s.Repo != nil {
		if err := s.Repo.InsertSourceRuns(ctx, sourceRuns(status)); err != nil {
			log.Warn("persist source runs failed", zap.Error(err))
		}
	}

	status.FinishedAt = s.now()
	status.DurationMs = status.FinishedAt.Sub(status.StartedAt).Milliseconds()
	for _, src := range status.Sources {
		s.Metrics.ObserveSource(src.Stats)
	}
	s.Metrics.ObserveCycle(status.Outcome(), status.FinishedAt.Sub(status.StartedAt), status.FinishedAt)

	if s.Status != nil {
		if err := s.Status.Publish(ctx, status); err != nil {
			log.Warn("publish cycle status failed", zap.Error(err))
		}
	}
	log.Info("refresh cycle finished",
		zap.Int64("version", status.Version),
		zap.String("outcome", status.Outcome()),
		zap.Int("parsed_total", status.ParsedTotal),
		zap.Int64("deleted", status.Cleanup.Deleted),
		zap.Int64("view_clean", status.Views.Clean),
		zap.Int64("duration_ms", status.DurationMs),
	)
}

func sourceRuns(status *CycleStatus) []models.SourceRun {
	rows := make([]models.SourceRun, 0, len(status.Sources))
	for _, src := range status.Sources {
		row := models.SourceRun{
			CycleID:    status.CycleID,
			Source:     src.Source,
			Parsed:     src.Parsed,
			Inserted:   src.Inserted,
			Updated:    src.Updated,
			Skipped:    src.SkippedTotal(),
			HTTPStatus: src.HTTPStatus,
			Blocked:    src.Blocked,
			DurationMs: src.DurationMs,
			StartedAt:  status.StartedAt,
		}
		msg := src.Error
		if src.StorageError != "" {
			if msg != "" {
				msg += "; "
			}
			msg += "storage: " + src.StorageError
		}
		if msg != "" {
			row.Error = &msg
		}
		if len(src.Skipped) > 0 {
			if raw, err := json.Marshal(src.Skipped); err == nil {
				row.SkipJSON = datatypes.JSON(raw)
			}
		}
		if len(src.Samples) > 0 {
			if raw, err := json.Marshal(src.Samples); err == nil {
				row.SampleJSON = datatypes.JSON(raw)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func samples(records []scraper.Record) []scraper.Record {
	if len(records) > sampleSize {
		records = records[:sampleSize]
	}
	if len(records) == 0 {
		return nil
	}
	out := make([]scraper.Record, len(records))
	copy(out, records)
	return out
}

func (s *RefreshService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RefreshService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// StartRefreshCycle launches a guarded cycle in the background and reports
// whether it started.
func (s *RefreshService) StartRefreshCycle(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer s.running.Store(false)
		if _, err := s.RunRefreshCycle(ctx); err != nil {
			s.logger().Warn("manual refresh cycle ended early", zap.Error(err))
		}
	}()
	return true
}
