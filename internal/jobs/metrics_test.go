package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("invoice:export").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("invoice:export").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("invoice:export", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("invoice:export", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("invoice:export")))
}

func TestAddExported(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddExported("success", 3)
	m.AddExported("failure", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.exported.WithLabelValues("success")))

	var nilMetrics *Metrics
	nilMetrics.AddExported("success", 1)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}
