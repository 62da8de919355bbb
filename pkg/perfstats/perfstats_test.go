package perfstats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/metrics"
)

func TestRecordAndLatest(t *testing.T) {
	c := New()

	c.Record(benchtypes.PerfSample{TestID: "t1", OperationsPerSecond: 100})
	c.Record(benchtypes.PerfSample{TestID: "t1", OperationsPerSecond: 200})

	latest, ok := c.Latest("t1")
	require.True(t, ok)
	assert.Equal(t, 200.0, latest.OperationsPerSecond)
}

func TestLatestOnUnknownTestReturnsFalse(t *testing.T) {
	c := New()
	_, ok := c.Latest("missing")
	assert.False(t, ok)
}

func TestHistoryIsBoundedAndOldestFirst(t *testing.T) {
	c := New()
	for i := 0; i < historySize+10; i++ {
		c.Record(benchtypes.PerfSample{TestID: "t1", OperationsPerSecond: float64(i)})
	}

	history := c.History("t1")
	require.Len(t, history, historySize)
	assert.Equal(t, float64(10), history[0].OperationsPerSecond)
	assert.Equal(t, float64(historySize+9), history[len(history)-1].OperationsPerSecond)
}

func TestTestIDsListsEveryRecordedTest(t *testing.T) {
	c := New()
	c.Record(benchtypes.PerfSample{TestID: "t1"})
	c.Record(benchtypes.PerfSample{TestID: "t2"})

	assert.ElementsMatch(t, []string{"t1", "t2"}, c.TestIDs())
}

func TestCollectorExportsLatestSampleAsGauges(t *testing.T) {
	c := New()
	c.Record(benchtypes.PerfSample{TestID: "t-export", OperationsPerSecond: 42, P50LatencyMs: 5, P99LatencyMs: 9})

	collector := NewCollector(c)
	collector.collect()

	assert.Equal(t, 42.0, testutil.ToFloat64(metrics.TestOperationsPerSecond.WithLabelValues("t-export")))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.TestLatencyP50Ms.WithLabelValues("t-export")))
	assert.Equal(t, 9.0, testutil.ToFloat64(metrics.TestLatencyP99Ms.WithLabelValues("t-export")))
}

func TestCollectorStartStop(t *testing.T) {
	c := New()
	collector := NewCollector(c)
	collector.Start()
	collector.Stop()
}
