package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kultuurivoog/internal/scraper"
)

const namespace = "kultuurivoog"

// Recorder exports refresh cycle results. A nil *Recorder records nothing.
type Recorder struct {
	parsed        *prometheus.GaugeVec
	merged        *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	fetchOutcome  *prometheus.CounterVec
	httpStatus    *prometheus.GaugeVec
	sourceDur     *prometheus.GaugeVec
	cleanup       *prometheus.CounterVec
	cleanupSkips  prometheus.Counter
	viewRows      *prometheus.GaugeVec
	cycleDur      prometheus.Histogram
	cycles        *prometheus.CounterVec
	lastSuccessTS prometheus.Gauge
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		parsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_parsed_events",
			Help:      "Events parsed from a source in the last cycle",
		}, []string{"source"}),
		merged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_merged_events_total",
			Help:      "Events merged into storage by result",
		}, []string{"source", "result"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_skipped_fragments_total",
			Help:      "Listing fragments dropped during extraction by reason",
		}, []string{"source", "reason"}),
		fetchOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Source fetches by outcome (ok, blocked, error)",
		}, []string{"source", "outcome"}),
		httpStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_http_status",
			Help:      "Final HTTP status of the last fetch",
		}, []string{"source"}),
		sourceDur: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Duration of the last adapter run",
		}, []string{"source"}),
		cleanup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted_events_total",
			Help:      "Rows deleted by cleanup by rule",
		}, []string{"rule"}),
		cleanupSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_skipped_total",
			Help:      "Cleanups skipped because the cycle parsed nothing",
		}),
		viewRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_rows",
			Help:      "Row count of each read view after refresh",
		}, []string{"view"}),
		cycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Wall time of a full refresh cycle",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by status (ok, degraded, cancelled, skipped)",
		}, []string{"status"}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last cycle that reached storage",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			r.parsed, r.merged, r.skipped, r.fetchOutcome, r.httpStatus, r.sourceDur,
			r.cleanup, r.cleanupSkips, r.viewRows, r.cycleDur, r.cycles, r.lastSuccessTS,
		)
	}
	return r
}

func (r *Recorder) ObserveSource(st scraper.Stats) {
	if r == nil {
		return
	}
	r.parsed.WithLabelValues(st.Source).Set(float64(st.Parsed))
	r.merged.WithLabelValues(st.Source, "inserted").Add(float64(st.Inserted))
	r.merged.WithLabelValues(st.Source, "updated").Add(float64(st.Updated))
	for reason, n := range st.Skipped {
		r.skipped.WithLabelValues(st.Source, reason).Add(float64(n))
	}
	outcome := "ok"
	switch {
	case st.Blocked:
		outcome = "blocked"
	case st.Error != "":
		outcome = "error"
	}
	r.fetchOutcome.WithLabelValues(st.Source, outcome).Inc()
	r.httpStatus.WithLabelValues(st.Source).Set(float64(st.HTTPStatus))
	r.sourceDur.WithLabelValues(st.Source).Set(float64(st.DurationMs) / 1000)
}

func (r *Recorder) ObserveCleanup(skipped bool, byRule map[string]int64) {
	if r == nil {
		return
	}
	if skipped {
		r.cleanupSkips.Inc()
		return
	}
	for rule, n := range byRule {
		r.cleanup.WithLabelValues(rule).Add(float64(n))
	}
}

func (r *Recorder) SetViewRows(view string, rows int64) {
	if r == nil {
		return
	}
	r.viewRows.WithLabelValues(view).Set(float64(rows))
}

func (r *Recorder) ObserveCycle(status string, took time.Duration, finishedAt time.Time) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(status).Inc()
	if status == "skipped" {
		return
	}
	r.cycleDur.Observe(took.Seconds())
	if status == "ok" {
		r.lastSuccessTS.Set(float64(finishedAt.Unix()))
	}
}
