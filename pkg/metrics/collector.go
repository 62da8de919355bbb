package metrics

import (
	"time"

	"github.com/cuemby/warrenbench/pkg/registry"
)

// Collector periodically snapshots the component registry into gauges.
// Phase and failure counters are set directly by their owning packages as
// events happen, and the per-test performance-sample gauges are set by
// pkg/perfstats' own ticker; this collector only handles the values that are
// cheapest read as a point-in-time poll.
type Collector struct {
	registry *registry.Registry
	stopCh   chan struct{}
}

// NewCollector creates a metrics collector bound to the given registry.
func NewCollector(reg *registry.Registry) *Collector {
	return &Collector{
		registry: reg,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection loop.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
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

// Stop halts the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkerMetrics()
	c.collectAgentMetrics()
}

func (c *Collector) collectWorkerMetrics() {
	total, finished := c.registry.WorkerCounts()
	WorkersRegistered.Set(float64(total))
	WorkersFinished.Set(float64(finished))
}

func (c *Collector) collectAgentMetrics() {
	AgentsRegistered.Set(float64(c.registry.AgentCount()))
}
