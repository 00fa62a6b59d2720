package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kultuurivoog/internal/repository"
)

type ViewMaterializer struct {
	Repo   repository.EventRepository
	Logger *zap.Logger
}

type ViewStats struct {
	Clean  int64 `json:"clean"`
	Adults int64 `json:"adults"`
}

// Refresh recreates both read views and reports their row counts.
func (v *ViewMaterializer) Refresh(ctx context.Context) (ViewStats, error) {
	if v == nil || v.Repo == nil {
		return ViewStats{}, fmt.Errorf("view materializer is not configured")
	}
	if err := v.Repo.EnsureViews(ctx); err != nil {
		return ViewStats{}, fmt.Errorf("ensure views: %w", err)
	}
	clean, err := v.Repo.CountView(ctx, repository.ViewClean)
	if err != nil {
		return ViewStats{}, fmt.Errorf("count %s: %w", repository.ViewClean, err)
	}
	adults, err := v.Repo.CountView(ctx, repository.ViewAdults)
	if err != nil {
		return ViewStats{}, fmt.Errorf("count %s: %w", repository.ViewAdults, err)
	}
	if v.Logger != nil {
		v.Logger.Info("views refreshed", zap.Int64("clean", clean), zap.Int64("adults", adults))
	}
	return ViewStats{Clean: clean, Adults: adults}, nil
}
