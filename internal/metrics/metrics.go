// Package metrics exposes Prometheus instrumentation for the qualification
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-crm/harrier/internal/domain"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	LeadsQualified  *prometheus.CounterVec
	LeadScore       prometheus.Histogram
	Assignments     *prometheus.CounterVec
	QualifyDuration prometheus.Histogram
	LimitRejections prometheus.Counter
	GuardBlocks     prometheus.Counter
}

// New registers the collectors on a fresh registry and returns both.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		LeadsQualified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "leads_qualified_total",
			Help:      "Leads qualified, by resulting category.",
		}, []string{"category"}),

		LeadScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harrier",
			Name:      "lead_score",
			Help:      "Distribution of computed lead scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),

		Assignments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "lead_assignments_total",
			Help:      "Lead assignments, by routing method.",
		}, []string{"method"}),

		QualifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harrier",
			Name:      "qualification_duration_seconds",
			Help:      "End-to-end qualification pipeline duration.",
			Buckets:   prometheus.DefBuckets,
		}),

		LimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "lead_limit_rejections_total",
			Help:      "Lead intake rejections due to plan limits.",
		}),

		GuardBlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "guard_blocks_total",
			Help:      "Leads blocked by guard rules before scoring.",
		}),
	}

	return m, reg
}

// ObserveQualification records one pipeline outcome.
func (m *Metrics) ObserveQualification(qual *domain.Qualification, method domain.RoutingMethod) {
	m.LeadsQualified.WithLabelValues(string(qual.Category)).Inc()
	m.LeadScore.Observe(float64(qual.Score))
	m.QualifyDuration.Observe(float64(qual.Metadata.TotalMs) / 1000.0)

	if qual.GuardReason != "" {
		m.GuardBlocks.Inc()
	}
	if qual.Assigned() {
		m.Assignments.WithLabelValues(string(method)).Inc()
	}
}

// Handler returns the /metrics HTTP handler for the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
