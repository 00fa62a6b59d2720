package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kultuurivoog/internal/cache"
	"kultuurivoog/internal/scraper"
)

// CycleStatus is the outcome of one refresh cycle as served by the status
// endpoint. Version increases by one with every published cycle.
type CycleStatus struct {
	Version     int64          `json:"version"`
	CycleID     string         `json:"cycle_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	DurationMs  int64          `json:"duration_ms"`
	Sources     []SourceStatus `json:"sources"`
	ParsedTotal int            `json:"parsed_total"`
	Cleanup     CleanupStats   `json:"cleanup"`
	Views       ViewStats      `json:"views"`
	DBOk        bool           `json:"db_ok"`
	Cancelled   bool           `json:"cancelled,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
}

type SourceStatus struct {
	scraper.Stats
	StorageError string           `json:"storage_error,omitempty"`
	Samples      []scraper.Record `json:"samples,omitempty"`
}

// Outcome summarizes the cycle for metrics: ok, degraded or cancelled.
func (s CycleStatus) Outcome() string {
	if s.Cancelled {
		return "cancelled"
	}
	if len(s.Errors) > 0 || !s.DBOk {
		return "degraded"
	}
	for _, src := range s.Sources {
		if src.Blocked || src.Error != "" || src.StorageError != "" {
			return "degraded"
		}
	}
	return "ok"
}

const defaultStatusKey = "kultuurivoog:cycle_status"

// StatusCache publishes the latest CycleStatus through a cache.Store so
// every API replica serves the same value.
type StatusCache struct {
	Store cache.Store
	Key   string
	TTL   time.Duration
}

func (c *StatusCache) key() string {
	if c == nil || strings.TrimSpace(c.Key) == "" {
		return defaultStatusKey
	}
	return c.Key
}

// Publish assigns the next version to st and stores it.
func (c *StatusCache) Publish(ctx context.Context, st *CycleStatus) error {
	if c == nil || c.Store == nil || st == nil {
		return fmt.Errorf("status cache is not configured")
	}
	version, err := c.Store.Incr(ctx, c.key()+":version")
	if err != nil {
		return fmt.Errorf("next status version: %w", err)
	}
	st.Version = version
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.Store.Set(ctx, c.key(), raw, c.TTL)
}

// Latest returns the most recently published status, or nil before the
// first cycle.
func (c *StatusCache) Latest(ctx context.Context) (*CycleStatus, error) {
	if c == nil || c.Store == nil {
		return nil, fmt.Errorf("status cache is not configured")
	}
	raw, found, err := c.Store.Get(ctx, c.key())
	if err != nil || !found {
		return nil, err
	}
	var st CycleStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}
