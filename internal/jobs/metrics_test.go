package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("staging:sweep").End(nil))
	err := m.Track("staging:sweep").End(errors.New("boom"))
	require.EqualError(t, err, "boom")

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("staging:sweep", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("staging:sweep", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("staging:sweep")))
}

func TestObserveStagingRemoved(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveStagingRemoved("expired", 3)
	m.ObserveStagingRemoved("expired", 0)
	m.ObserveStagingRemoved("session", 3)

	require.Equal(t, 3.0, testutil.ToFloat64(m.stagingRemoved.WithLabelValues("expired")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.stagingRemoved.WithLabelValues("session")))

	var nilMetrics *Metrics
	nilMetrics.ObserveStagingRemoved("expired", 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
