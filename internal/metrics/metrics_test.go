package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counts(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Switch("committed")
	m.Switch("committed")
	m.CacheLookup(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Switches.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AuthTransition("authenticated")
		m.EdgeDecision("allow")
		m.Stale("directory")
	})
}
