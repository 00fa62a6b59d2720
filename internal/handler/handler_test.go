package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"kultuurivoog/internal/cache"
	"kultuurivoog/internal/models"
	"kultuurivoog/internal/repository"
	"kultuurivoog/internal/scraper"
	"kultuurivoog/internal/service"
)

// stubRepo serves a fixed event list; only read paths are exercised here.
type stubRepo struct {
	events  []models.Event
	runs    []models.SourceRun
	pingErr error
	params  repository.ListViewEventsParams
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }
func (s *stubRepo) UpsertEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) (bool, error) {
	return true, nil
}
func (s *stubRepo) DeleteEventsByTitleKeywordsTx(ctx context.Context, tx *gorm.DB, keywords []string) (int64, error) {
	return 0, nil
}
func (s *stubRepo) DeleteEventsWithoutTimeTx(ctx context.Context, tx *gorm.DB, source, genre string) (int64, error) {
	return 0, nil
}
func (s *stubRepo) CountEvents(ctx context.Context) (int64, error)            { return int64(len(s.events)), nil }
func (s *stubRepo) EnsureViews(ctx context.Context) error                     { return nil }
func (s *stubRepo) CountView(ctx context.Context, view string) (int64, error) { return 0, nil }
func (s *stubRepo) ListViewEvents(ctx context.Context, params repository.ListViewEventsParams) ([]models.Event, error) {
	s.params = params
	return s.events, nil
}
func (s *stubRepo) InsertSourceRuns(ctx context.Context, items []models.SourceRun) error {
	s.runs = append(s.runs, items...)
	return nil
}
func (s *stubRepo) ListSourceRuns(ctx context.Context, params repository.ListSourceRunsParams) ([]models.SourceRun, error) {
	return s.runs, nil
}
func (s *stubRepo) Ping(ctx context.Context) error { return s.pingErr }

type slowAdapter struct{ delay time.Duration }

func (a slowAdapter) Name() string { return "slow" }
func (a slowAdapter) Fetch(ctx context.Context) ([]scraper.Record, scraper.Stats) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
	}
	return nil, scraper.Stats{Source: "slow"}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r *gin.Engine, method, target string) (*httptest.ResponseRecorder, apiResponse) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	var body apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestReadyz(t *testing.T) {
	repo := &stubRepo{pingErr: errors.New("down")}
	r := gin.New()
	(&HealthHandler{DB: repo}).Register(r)

	w, _ := do(r, http.MethodGet, "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d want=503", w.Code)
	}
	repo.pingErr = nil
	w, _ = do(r, http.MethodGet, "/readyz")
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d want=200", w.Code)
	}
}

func TestEventsSearch(t *testing.T) {
	d := time.Date(2026, time.February, 12, 0, 0, 0, 0, time.UTC)
	clock := "19:00"
	repo := &stubRepo{events: []models.Event{{ID: 1, CanonicalID: "x", Title: "Hamlet", Date: d, Time: &clock, Source: "teater.ee"}}}
	r := gin.New()
	(&EventsHandler{Query: &service.EventQueryService{Repo: repo}}).Register(r)

	w, _ := do(r, http.MethodGet, "/events/search?start=12.02.2026&end=2026-02-20")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d want=400", w.Code)
	}

	w, body := do(r, http.MethodGet, "/events/search?start=2026-02-01&end=2026-02-20&show_kids=true")
	if w.Code != http.StatusOK || body.Code != 0 {
		t.Fatalf("code=%d body=%+v", w.Code, body)
	}
	if repo.params.View != repository.ViewClean {
		t.Fatalf("view=%s want=%s", repo.params.View, repository.ViewClean)
	}
	items, ok := body.Data.([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("data=%#v", body.Data)
	}
	first := items[0].(map[string]any)
	if first["date"] != "2026-02-12" || first["time"] != "19:00" || first["title"] != "Hamlet" {
		t.Fatalf("event=%v", first)
	}
}

func TestEventsWindowDefaultsToAdults(t *testing.T) {
	repo := &stubRepo{}
	r := gin.New()
	(&EventsHandler{Query: &service.EventQueryService{Repo: repo}}).Register(r)

	w, body := do(r, http.MethodGet, "/events/7days")
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
	if repo.params.View != repository.ViewAdults {
		t.Fatalf("view=%s want=%s", repo.params.View, repository.ViewAdults)
	}
	if got := repo.params.To.Sub(repo.params.From); got != 7*24*time.Hour {
		t.Fatalf("window=%v want=168h", got)
	}
	if body.Meta["count"] != float64(0) {
		t.Fatalf("meta=%v", body.Meta)
	}
}

func TestRefreshConflictAndStatus(t *testing.T) {
	repo := &stubRepo{}
	status := &service.StatusCache{Store: cache.NewMemoryStore()}
	svc := &service.RefreshService{
		Adapters: []scraper.SourceAdapter{slowAdapter{delay: 150 * time.Millisecond}},
		Merge:    &service.MergeStore{Repo: repo},
		Cleanup:  &service.CleanupEngine{Repo: repo},
		Views:    &service.ViewMaterializer{Repo: repo},
		Repo:     repo,
		Status:   status,
	}
	r := gin.New()
	(&StatusHandler{Refresh: svc, Status: status, Repo: repo}).Register(r)

	w, _ := do(r, http.MethodPost, "/api/refresh")
	if w.Code != http.StatusAccepted {
		t.Fatalf("first refresh code=%d want=202", w.Code)
	}
	w, _ = do(r, http.MethodPost, "/api/refresh")
	if w.Code != http.StatusConflict {
		t.Fatalf("second refresh code=%d want=409", w.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for svc.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if svc.Running() {
		t.Fatalf("cycle did not finish")
	}

	w, body := do(r, http.MethodGet, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status code=%d", w.Code)
	}
	if body.Meta["db_ok"] != true {
		t.Fatalf("meta=%v", body.Meta)
	}
	data, ok := body.Data.(map[string]any)
	if !ok || data["version"] != float64(1) {
		t.Fatalf("data=%#v", body.Data)
	}

	w, body = do(r, http.MethodGet, "/api/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("runs code=%d", w.Code)
	}
	if runs, ok := body.Data.([]any); !ok || len(runs) != 1 {
		t.Fatalf("runs=%#v", body.Data)
	}
}
