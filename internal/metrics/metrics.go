package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for analyses.
const (
	OutcomeOK           = "ok"
	OutcomeEmpty        = "empty"
	OutcomeUnrecognized = "unrecognized"
)

// Metrics holds the Prometheus metrics for plan analyses.
type Metrics struct {
	Analyses *prometheus.CounterVec
	Findings *prometheus.CounterVec
	Nodes    prometheus.Histogram
	Duration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	analyses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "myxplain_analyses_total",
		Help: "Total plan analyses by input format and outcome",
	}, []string{"format", "outcome"})

	findings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "myxplain_findings_total",
		Help: "Total diagnostic findings by code",
	}, []string{"code"})

	nodes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "myxplain_analysis_nodes",
		Help:    "Execution tree size per analysis",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
	})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "myxplain_analysis_duration_seconds",
		Help:    "Time spent analyzing a plan",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	reg.MustRegister(analyses, findings, nodes, duration)

	return &Metrics{
		Analyses: analyses,
		Findings: findings,
		Nodes:    nodes,
		Duration: duration,
	}
}

// InitFindings exposes a zero counter for every finding code before the first analysis.
func (m *Metrics) InitFindings(codes []string) {
	if m == nil {
		return
	}
	for _, code := range codes {
		m.Findings.WithLabelValues(code)
	}
}

// ObserveAnalysis records one analysis. A nil receiver records nothing.
func (m *Metrics) ObserveAnalysis(format, outcome string, nodeCount int, codes []string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(format, outcome).Inc()
	for _, code := range codes {
		m.Findings.WithLabelValues(code).Inc()
	}
	if outcome != OutcomeUnrecognized {
		m.Nodes.Observe(float64(nodeCount))
	}
	m.Duration.Observe(elapsed.Seconds())
}
