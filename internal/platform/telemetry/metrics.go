package telemetry

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the scheduler's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	PlanDuration     prometheus.Histogram
	DemandDuration   prometheus.Histogram
	Substitutions    prometheus.Counter
	SkipReverts      *prometheus.CounterVec
	AnalysisRebuilds prometheus.Counter
	TrackerEntries   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fillsched",
			Name:      "replenish_plan_duration_seconds",
			Help:      "Latency of replenishment plan computation.",
			Buckets:   prometheus.DefBuckets,
		}),
		DemandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fillsched",
			Name:      "demand_aggregation_duration_seconds",
			Help:      "Latency of canister demand aggregation.",
			Buckets:   prometheus.DefBuckets,
		}),
		Substitutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fillsched",
			Name:      "canister_substitutions_total",
			Help:      "Canister replacements applied to pack analyses.",
		}),
		SkipReverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fillsched",
			Name:      "skip_reverts_total",
			Help:      "Skipped-detail reverts, by trigger.",
		}, []string{"trigger"}),
		AnalysisRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fillsched",
			Name:      "analysis_rebuilds_total",
			Help:      "Pack analysis rebuilds.",
		}),
		TrackerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fillsched",
			Name:      "tracker_entries_total",
			Help:      "Batch change tracker entries recorded, by action.",
		}, []string{"action"}),
	}

	m.registry.MustRegister(
		m.PlanDuration,
		m.DemandDuration,
		m.Substitutions,
		m.SkipReverts,
		m.AnalysisRebuilds,
		m.TrackerEntries,
	)
	return m
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() echo.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}
