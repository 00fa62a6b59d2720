package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kultuurivoog/internal/models"
	"kultuurivoog/internal/service"
)

type EventsHandler struct {
	Query    *service.EventQueryService
	Location *time.Location
}

type eventDTO struct {
	ID          int64   `json:"id"`
	CanonicalID string  `json:"canonical_id"`
	Title       string  `json:"title"`
	Genre       string  `json:"genre"`
	Date        string  `json:"date"`
	Time        *string `json:"time"`
	Venue       *string `json:"venue"`
	City        *string `json:"city"`
	IsFree      bool    `json:"is_free"`
	FreeReason  *string `json:"free_reason,omitempty"`
	IsKidsEvent bool    `json:"is_kids_event"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	TicketURL   *string `json:"ticket_url"`
	Source      string  `json:"source"`
	SourceURL   *string `json:"source_url"`
}

func toEventDTOs(items []models.Event) []eventDTO {
	out := make([]eventDTO, 0, len(items))
	for _, ev := range items {
		out = append(out, eventDTO{
			ID:          ev.ID,
			CanonicalID: ev.CanonicalID,
			Title:       ev.Title,
			Genre:       ev.Genre,
			Date:        ev.Date.Format("2006-01-02"),
			Time:        ev.Time,
			Venue:       ev.Venue,
			City:        ev.City,
			IsFree:      ev.IsFree,
			FreeReason:  ev.FreeReason,
			IsKidsEvent: ev.IsKidsEvent,
			Description: ev.Description,
			ImageURL:    ev.ImageURL,
			TicketURL:   ev.TicketURL,
			Source:      ev.Source,
			SourceURL:   ev.SourceURL,
		})
	}
	return out
}

func (h *EventsHandler) Register(r *gin.Engine) {
	group := r.Group("/events")
	group.GET("/today", h.days(0))
	group.GET("/7days", h.days(7))
	group.GET("/14days", h.days(14))
	group.GET("/30days", h.days(30))
	group.GET("/search", h.search)
}

// @Summary Upcoming events from today
// @Tags events
// @Param show_kids query bool false "include kids events"
// @Success 200 {object} apiResponse
// @Router /events/today [get]
// @Router /events/7days [get]
// @Router /events/14days [get]
// @Router /events/30days [get]
func (h *EventsHandler) days(n int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Query == nil {
			Error(c, http.StatusInternalServerError, "service unavailable", nil)
			return
		}
		showKids := boolQueryDefault(c, "show_kids", false)
		from := h.Query.Today()
		to := from.AddDate(0, 0, n)
		items := h.Query.Window(c.Request.Context(), from, to, showKids)
		Ok(c, toEventDTOs(items), windowMeta(from, to, showKids, len(items)))
	}
}

// @Summary Events in a date range
// @Tags events
// @Param start query string true "YYYY-MM-DD"
// @Param end query string true "YYYY-MM-DD"
// @Param show_kids query bool false "include kids events"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /events/search [get]
func (h *EventsHandler) search(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	from, ok := dateQuery(c, "start", h.Location)
	if !ok {
		Error(c, http.StatusBadRequest, "start must be YYYY-MM-DD", nil)
		return
	}
	to, ok := dateQuery(c, "end", h.Location)
	if !ok {
		Error(c, http.StatusBadRequest, "end must be YYYY-MM-DD", nil)
		return
	}
	if to.Before(from) {
		Error(c, http.StatusBadRequest, "end is before start", nil)
		return
	}
	showKids := boolQueryDefault(c, "show_kids", false)
	items := h.Query.Window(c.Request.Context(), from, to, showKids)
	Ok(c, toEventDTOs(items), windowMeta(from, to, showKids, len(items)))
}

func windowMeta(from, to time.Time, showKids bool, count int) map[string]any {
	return map[string]any{
		"start":     from.Format("2006-01-02"),
		"end":       to.Format("2006-01-02"),
		"show_kids": showKids,
		"count":     count,
	}
}
