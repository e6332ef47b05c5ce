package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAnalysis(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveAnalysis("json", OutcomeOK, 4, []string{"BOTTLENECK", "UNUSED_INDEX", "BOTTLENECK"}, 3*time.Millisecond)
	m.ObserveAnalysis("text", OutcomeUnrecognized, 0, []string{"BOTTLENECK"}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("json", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("text", OutcomeUnrecognized)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Findings.WithLabelValues("BOTTLENECK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Findings.WithLabelValues("UNUSED_INDEX")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Nodes))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis("json", OutcomeOK, 1, nil, time.Millisecond)
	})
}

func TestInitFindings(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.InitFindings([]string{"FILE_SORT", "TEMP_TABLE"})

	assert.Equal(t, 2, testutil.CollectAndCount(m.Findings))
	assert.Zero(t, testutil.ToFloat64(m.Findings.WithLabelValues("FILE_SORT")))
	assert.NotPanics(t, func() { (*Metrics)(nil).InitFindings([]string{"FILE_SORT"}) })
}

func TestRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveAnalysis("json", OutcomeEmpty, 0, nil, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["myxplain_analyses_total"])
	assert.True(t, names["myxplain_analysis_nodes"])
	assert.True(t, names["myxplain_analysis_duration_seconds"])

	assert.Panics(t, func() { NewMetrics(reg) })
}
