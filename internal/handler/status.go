package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kultuurivoog/internal/repository"
	"kultuurivoog/internal/service"
)

type StatusHandler struct {
	Refresh    *service.RefreshService
	Status     *service.StatusCache
	Repo       repository.EventRepository
	Logger     *zap.Logger
	RunHistory int

	// BaseCtx outlives the request that triggers a manual refresh.
	BaseCtx context.Context
}

func (h *StatusHandler) Register(r *gin.Engine) {
	group := r.Group("/api")
	group.GET("/status", h.status)
	group.POST("/refresh", h.refresh)
	group.GET("/runs", h.listRuns)
}

// @Summary Latest refresh cycle status
// @Tags status
// @Success 200 {object} apiResponse
// @Router /api/status [get]
func (h *StatusHandler) status(c *gin.Context) {
	ctx := c.Request.Context()
	dbOk := false
	if h.Repo != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		dbOk = h.Repo.Ping(pingCtx) == nil
		cancel()
	}
	running := h.Refresh != nil && h.Refresh.Running()
	meta := map[string]any{"db_ok": dbOk, "running": running}

	latest, err := h.Status.Latest(ctx)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("read cycle status failed", zap.Error(err))
		}
		meta["status_error"] = err.Error()
	}
	if latest == nil {
		Ok(c, nil, meta)
		return
	}
	Ok(c, latest, meta)
}

// @Summary Trigger a refresh cycle
// @Tags status
// @Success 202 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/refresh [post]
func (h *StatusHandler) refresh(c *gin.Context) {
	if h.Refresh == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	base := h.BaseCtx
	if base == nil {
		base = context.Background()
	}
	if !h.Refresh.StartRefreshCycle(base) {
		Error(c, http.StatusConflict, service.ErrCycleRunning.Error(), nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("manual refresh cycle started", zap.String("client_ip", c.ClientIP()))
	}
	Accepted(c, gin.H{"started": true})
}

// @Summary Recent per-source run records
// @Tags status
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param source query string false "source name"
// @Param cycle_id query string false "cycle id"
// @Success 200 {object} apiResponse
// @Router /api/runs [get]
func (h *StatusHandler) listRuns(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	def := h.RunHistory
	if def <= 0 {
		def = 50
	}
	params := repository.ListSourceRunsParams{
		Limit:   intQuery(c, "limit", def),
		Offset:  intQuery(c, "offset", 0),
		Source:  stringQueryPtr(c, "source"),
		CycleID: stringQueryPtr(c, "cycle_id"),
	}
	items, err := h.Repo.ListSourceRuns(c.Request.Context(), params)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list source runs failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"limit": params.Limit, "offset": params.Offset})
}
