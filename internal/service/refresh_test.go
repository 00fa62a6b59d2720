package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kultuurivoog/internal/cache"
	"kultuurivoog/internal/metrics"
	"kultuurivoog/internal/scraper"
)

type fakeAdapter struct {
	name    string
	records []scraper.Record
	stats   scraper.Stats
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context) ([]scraper.Record, scraper.Stats) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, scraper.Stats{Source: f.name, Error: ctx.Err().Error()}
		}
	}
	st := f.stats
	st.Source = f.name
	return f.records, st
}

func newRefreshService(repo *stubRepo, adapters ...scraper.SourceAdapter) *RefreshService {
	return &RefreshService{
		Adapters: adapters,
		Merge:    &MergeStore{Repo: repo},
		Cleanup:  &CleanupEngine{Repo: repo},
		Views:    &ViewMaterializer{Repo: repo},
		Repo:     repo,
		Status:   &StatusCache{Store: cache.NewMemoryStore()},
		Metrics:  metrics.New(prometheus.NewRegistry()),
	}
}

func TestRefreshCycleCompletesWhenOneSourceIsBlocked(t *testing.T) {
	repo := newStubRepo(day0)
	teater := &fakeAdapter{
		name: scraper.SourceTeater,
		records: []scraper.Record{
			rec("Hamlet", "2026-02-12", strPtr("19:00")),
			rec("Teatri galerii: hooaja pildid", "2026-02-12", nil),
		},
		stats: scraper.Stats{HTTPStatus: 200},
	}
	concert := &fakeAdapter{
		name:  scraper.SourceConcert,
		stats: scraper.Stats{HTTPStatus: 403, Blocked: true},
	}
	svc := newRefreshService(repo, teater, concert)

	status, err := svc.RunRefreshCycle(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(status.Sources) != 2 || status.Sources[0].Source != scraper.SourceTeater || status.Sources[1].Source != scraper.SourceConcert {
		t.Fatalf("sources=%+v want registration order", status.Sources)
	}
	if status.Sources[0].Inserted != 2 || !status.Sources[1].Blocked {
		t.Fatalf("sources=%+v", status.Sources)
	}
	if status.ParsedTotal != 2 {
		t.Fatalf("parsed_total=%d want=2", status.ParsedTotal)
	}
	if status.Cleanup.Skipped || status.Cleanup.DeletedByTitle != 1 {
		t.Fatalf("cleanup=%+v", status.Cleanup)
	}
	if status.Views.Clean != 1 || status.Views.Adults != 1 {
		t.Fatalf("views=%+v want 1/1", status.Views)
	}
	if !status.DBOk || status.Version != 1 || status.CycleID == "" {
		t.Fatalf("status=%+v", status)
	}
	if status.Outcome() != "degraded" {
		t.Fatalf("outcome=%s want degraded", status.Outcome())
	}
	if len(repo.runs) != 2 || repo.runs[1].Blocked != true {
		t.Fatalf("source runs=%+v", repo.runs)
	}
	if len(status.Sources[0].Samples) != 2 {
		t.Fatalf("samples=%d want=2", len(status.Sources[0].Samples))
	}

	latest, err := svc.Status.Latest(context.Background())
	if err != nil || latest == nil || latest.CycleID != status.CycleID {
		t.Fatalf("latest=%+v err=%v", latest, err)
	}
}

func TestRefreshCycleSkipsCleanupWhenAllSourcesFail(t *testing.T) {
	repo := newStubRepo(day0)
	seed(repo, ev("old", "Galerii", "concert.ee", "Concert"))
	svc := newRefreshService(repo,
		&fakeAdapter{name: scraper.SourceTeater, stats: scraper.Stats{Blocked: true, HTTPStatus: 429}},
		&fakeAdapter{name: scraper.SourceConcert, stats: scraper.Stats{Error: "dial tcp: timeout"}},
	)

	status, err := svc.RunRefreshCycle(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !status.Cleanup.Skipped {
		t.Fatalf("cleanup=%+v want skipped", status.Cleanup)
	}
	if _, ok := repo.get("old"); !ok {
		t.Fatalf("catalog emptied although nothing was parsed")
	}
}

func TestRefreshCycleRecordsStorageErrorAndContinues(t *testing.T) {
	repo := newStubRepo(day0)
	repo.upsertErr = errors.New("deadlock detected")
	svc := newRefreshService(repo,
		&fakeAdapter{name: scraper.SourceTeater, records: []scraper.Record{rec("Hamlet", "2026-02-12", strPtr("19:00"))}},
	)

	status, err := svc.RunRefreshCycle(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status.Sources[0].StorageError == "" || len(status.Errors) == 0 {
		t.Fatalf("status=%+v want storage error recorded", status)
	}
	if repo.viewsSQL != 1 {
		t.Fatalf("views refreshed %d times want=1", repo.viewsSQL)
	}
}

func TestRefreshCycleParallelKeepsOrder(t *testing.T) {
	repo := newStubRepo(day0)
	slow := &fakeAdapter{name: "slow", delay: 20 * time.Millisecond, records: []scraper.Record{rec("A", "2026-02-10", strPtr("19:00"))}}
	fast := &fakeAdapter{name: "fast", records: []scraper.Record{rec("B", "2026-02-11", strPtr("19:00"))}}
	svc := newRefreshService(repo, slow, fast)
	svc.Parallel = true

	status, err := svc.RunRefreshCycle(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if status.Sources[0].Source != "slow" || status.Sources[1].Source != "fast" {
		t.Fatalf("order=%s,%s", status.Sources[0].Source, status.Sources[1].Source)
	}
}

func TestRefreshCycleReturnsErrorWhenCancelled(t *testing.T) {
	repo := newStubRepo(day0)
	svc := newRefreshService(repo, &fakeAdapter{name: "slow", delay: time.Hour})
	svc.CycleTimeout = 20 * time.Millisecond

	status, err := svc.RunRefreshCycle(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
	if !status.Cancelled || status.Version != 1 {
		t.Fatalf("status=%+v want cancelled and published", status)
	}
}

func TestTryRunRefreshCycleIsExclusive(t *testing.T) {
	repo := newStubRepo(day0)
	slow := &fakeAdapter{name: "slow", delay: 100 * time.Millisecond}
	svc := newRefreshService(repo, slow)

	done := make(chan error, 1)
	go func() {
		_, err := svc.TryRunRefreshCycle(context.Background())
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for !svc.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, err := svc.TryRunRefreshCycle(context.Background()); !errors.Is(err, ErrCycleRunning) {
		t.Fatalf("err=%v want ErrCycleRunning", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first cycle err=%v", err)
	}
	if slow.calls.Load() != 1 {
		t.Fatalf("adapter calls=%d want=1", slow.calls.Load())
	}
	if svc.Running() {
		t.Fatalf("guard not released")
	}
}
