package service

import (
	"context"
	"testing"

	"kultuurivoog/internal/cache"
	"kultuurivoog/internal/scraper"
)

func TestStatusCacheVersionsIncrease(t *testing.T) {
	c := &StatusCache{Store: cache.NewMemoryStore()}
	ctx := context.Background()

	if st, err := c.Latest(ctx); err != nil || st != nil {
		t.Fatalf("latest before publish=%v err=%v", st, err)
	}
	for want := int64(1); want <= 3; want++ {
		st := &CycleStatus{CycleID: "c", DBOk: true}
		if err := c.Publish(ctx, st); err != nil {
			t.Fatalf("publish: %v", err)
		}
		if st.Version != want {
			t.Fatalf("version=%d want=%d", st.Version, want)
		}
	}
	latest, err := c.Latest(ctx)
	if err != nil || latest == nil || latest.Version != 3 {
		t.Fatalf("latest=%+v err=%v", latest, err)
	}
}

func TestCycleStatusOutcome(t *testing.T) {
	ok := CycleStatus{DBOk: true, Sources: []SourceStatus{{Stats: scraper.Stats{Source: "a"}}}}
	if ok.Outcome() != "ok" {
		t.Fatalf("outcome=%s want ok", ok.Outcome())
	}
	blocked := CycleStatus{DBOk: true, Sources: []SourceStatus{{Stats: scraper.Stats{Source: "a", Blocked: true}}}}
	if blocked.Outcome() != "degraded" {
		t.Fatalf("outcome=%s want degraded", blocked.Outcome())
	}
	if (CycleStatus{DBOk: true, Cancelled: true}).Outcome() != "cancelled" {
		t.Fatalf("cancelled outcome")
	}
}
