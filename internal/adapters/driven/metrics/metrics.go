// Package metrics provides Prometheus metrics for ingestion and audits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

const namespace = "claimaudit"

// Ensure implementations satisfy the interface.
var (
	_ driven.Metrics = (*Metrics)(nil)
	_ driven.Metrics = Noop{}
)

// Metrics holds the Prometheus collectors.
type Metrics struct {
	// Ingestion
	FileTransitions *prometheus.CounterVec
	IndexedChunks   *prometheus.CounterVec

	// Audit
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec
	Verdicts      *prometheus.CounterVec
	RiskScore     prometheus.Histogram
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		FileTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_file_transitions_total",
			Help:      "Landing file state transitions by target state",
		}, []string{"state"}),
		IndexedChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_chunks_indexed_total",
			Help:      "Chunks written to the knowledge store by collection",
		}, []string{"collection"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audit_stage_duration_seconds",
			Help:      "Duration of audit workflow stages",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"}),
		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_stage_errors_total",
			Help:      "Audit workflow stages that ended in error",
		}, []string{"stage"}),
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_verdicts_total",
			Help:      "Archived verdicts by decision",
		}, []string{"decision", "failure"}),
		RiskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audit_risk_score",
			Help:      "Risk score of archived verdicts",
			Buckets:   []float64{0, 25, 40, 65, 100},
		}),
	}
}

// FileTransition counts a landing file entering state.
func (m *Metrics) FileTransition(state domain.FileState) {
	m.FileTransitions.WithLabelValues(string(state)).Inc()
}

// ChunksIndexed counts chunks written to collection.
func (m *Metrics) ChunksIndexed(collection domain.Collection, n int) {
	m.IndexedChunks.WithLabelValues(collection.String()).Add(float64(n))
}

// StageCompleted observes a stage duration and counts failures.
func (m *Metrics) StageCompleted(stage domain.Stage, d time.Duration, err error) {
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(string(stage)).Inc()
	}
}

// VerdictRecorded counts an archived verdict.
func (m *Metrics) VerdictRecorded(v domain.Verdict) {
	failure := "false"
	if v.Failure {
		failure = "true"
	}
	m.Verdicts.WithLabelValues(string(v.Decision), failure).Inc()
	m.RiskScore.Observe(float64(v.RiskScore))
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) FileTransition(domain.FileState)                   {}
func (Noop) ChunksIndexed(domain.Collection, int)              {}
func (Noop) StageCompleted(domain.Stage, time.Duration, error) {}
func (Noop) VerdictRecorded(domain.Verdict)                    {}
