package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.ObserveFetch("ok", 10*time.Millisecond)
	m.ObserveFetch("ok", 20*time.Millisecond)
	m.ObserveFetch("timeout", time.Second)
	m.IncPages()
	m.IncItem("ok")
	m.IncItem("extraction")
	m.IncRequest("/catalog/{category}", "200")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesWalked))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsTotal.WithLabelValues("extraction")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/catalog/{category}", "200")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveFetch("ok", time.Millisecond)
		m.IncPages()
		m.IncItem("ok")
		m.ObserveBatch(3)
		m.IncRequest("r", "200")
	})
	assert.NotNil(t, m.Handler())
}
