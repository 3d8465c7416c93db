package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIncrementAndAdd(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("batches_sent_total", nil, "Batches delivered")
	r.IncrementCounter("batches_sent_total", nil, "Batches delivered")
	r.AddToCounter("batches_sent_total", 3, nil, "Batches delivered")

	snapshot := r.Snapshot()
	counters := snapshot["counters"].(map[string]*Metric)
	require.Contains(t, counters, "batches_sent_total")
	assert.Equal(t, float64(5), counters["batches_sent_total"].Value)
}

func TestCounterLabelsSeparateSeries(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("http_requests_total", map[string]string{"method": "GET"}, "")
	r.IncrementCounter("http_requests_total", map[string]string{"method": "POST"}, "")
	r.IncrementCounter("http_requests_total", map[string]string{"method": "GET"}, "")

	counters := r.Snapshot()["counters"].(map[string]*Metric)
	require.Len(t, counters, 2)
	assert.Equal(t, float64(2), counters["http_requests_total_method:GET"].Value)
	assert.Equal(t, float64(1), counters["http_requests_total_method:POST"].Value)
}

func TestMetricKeyLabelOrderIndependent(t *testing.T) {
	a := metricKey("m", map[string]string{"a": "1", "b": "2"})
	b := metricKey("m", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
}

func TestGaugeOverwrites(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("pool_active_numbers", 5, nil, "Active pool size")
	r.SetGauge("pool_active_numbers", 2, nil, "Active pool size")

	gauges := r.Snapshot()["gauges"].(map[string]*Metric)
	assert.Equal(t, float64(2), gauges["pool_active_numbers"].Value)
}

func TestTimerAggregates(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("dispatch_duration", 100*time.Millisecond, nil)
	r.RecordTimer("dispatch_duration", 300*time.Millisecond, nil)

	timers := r.Snapshot()["timers"].(map[string]*TimerMetric)
	timer := timers["dispatch_duration"]
	require.NotNil(t, timer)
	assert.Equal(t, int64(2), timer.Count)
	assert.Equal(t, float64(100), timer.Min)
	assert.Equal(t, float64(300), timer.Max)
	assert.Equal(t, float64(200), timer.Average)
}

func TestSnapshotIncludesUptime(t *testing.T) {
	r := NewRegistry()
	snapshot := r.Snapshot()

	assert.Contains(t, snapshot, "uptime_ms")
	assert.Contains(t, snapshot, "timestamp")
}

func TestCopiedLabelsNotAliased(t *testing.T) {
	r := NewRegistry()

	labels := map[string]string{"method": "GET"}
	r.IncrementCounter("http_requests_total", labels, "")
	labels["method"] = "mutated"

	counters := r.Snapshot()["counters"].(map[string]*Metric)
	assert.Equal(t, "GET", counters["http_requests_total_method:GET"].Labels["method"])
}
