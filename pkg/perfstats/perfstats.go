package perfstats

import (
	"sync"
	"time"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/metrics"
)

// historySize bounds how many samples are retained per test; older samples
// are dropped as new ones arrive.
const historySize = 120

type testHistory struct {
	samples []benchtypes.PerfSample
}

func (h *testHistory) push(s benchtypes.PerfSample) {
	h.samples = append(h.samples, s)
	if len(h.samples) > historySize {
		h.samples = h.samples[len(h.samples)-historySize:]
	}
}

func (h *testHistory) latest() (benchtypes.PerfSample, bool) {
	if len(h.samples) == 0 {
		return benchtypes.PerfSample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Container is the Coordinator's in-memory store of per-test performance
// samples. It has no durable backing store; samples live only for the
// lifetime of one run.
type Container struct {
	mu      sync.RWMutex
	history map[string]*testHistory
}

// New creates an empty Container.
func New() *Container {
	return &Container{history: make(map[string]*testHistory)}
}

// Record appends a sample to its test's history.
func (c *Container) Record(sample benchtypes.PerfSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.history[sample.TestID]
	if !ok {
		h = &testHistory{}
		c.history[sample.TestID] = h
	}
	h.push(sample)
}

// Latest returns the most recent sample recorded for testID.
func (c *Container) Latest(testID string) (benchtypes.PerfSample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.history[testID]
	if !ok {
		return benchtypes.PerfSample{}, false
	}
	return h.latest()
}

// History returns a copy of every sample recorded for testID, oldest first.
func (c *Container) History(testID string) []benchtypes.PerfSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.history[testID]
	if !ok {
		return nil
	}
	out := make([]benchtypes.PerfSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// TestIDs returns every test ID with at least one recorded sample.
func (c *Container) TestIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.history))
	for id := range c.history {
		ids = append(ids, id)
	}
	return ids
}

// Collector periodically republishes the latest sample per test as
// pkg/metrics gauges.
type Collector struct {
	container *Container
	stopCh    chan struct{}
}

// NewCollector creates a Collector over container.
func NewCollector(container *Container) *Collector {
	return &Collector{
		container: container,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic export on a 2 second ticker, collecting once
// immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(2 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for _, testID := range c.container.TestIDs() {
		sample, ok := c.container.Latest(testID)
		if !ok {
			continue
		}
		metrics.TestOperationsPerSecond.WithLabelValues(testID).Set(sample.OperationsPerSecond)
		metrics.TestLatencyP50Ms.WithLabelValues(testID).Set(sample.P50LatencyMs)
		metrics.TestLatencyP99Ms.WithLabelValues(testID).Set(sample.P99LatencyMs)
	}
}
