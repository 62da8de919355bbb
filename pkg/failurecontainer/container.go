package failurecontainer

import (
	"sync"
	"time"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/events"
	"github.com/cuemby/warrenbench/pkg/metrics"
)

// Container is the Coordinator's append-only failure log: it records every
// benchtypes.FailureOperation, derives the monotonic finishedWorkers set,
// and answers critical-failure queries against a suite's tolerable set.
type Container struct {
	mu        sync.RWMutex
	failures  []benchtypes.FailureOperation
	finished  map[string]bool
	broker    *events.Broker
	listening bool
}

// New creates an empty Container with its listener-dispatch broker started.
func New() *Container {
	c := &Container{
		finished: make(map[string]bool),
		broker:   events.NewBroker(),
	}
	c.broker.Start()
	c.listening = true
	return c
}

// Close stops the listener-dispatch broker. Safe to call once per Container.
func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listening {
		c.broker.Stop()
		c.listening = false
	}
}

// Add appends a failure to the log, updates finishedWorkers if the kind is
// terminal, increments the failures-by-kind metric, and notifies listeners
// asynchronously.
func (c *Container) Add(failure benchtypes.FailureOperation) {
	c.mu.Lock()
	c.failures = append(c.failures, failure)
	if failure.Kind.IsTerminal() {
		c.finished[failure.WorkerAddress] = true
	}
	c.mu.Unlock()

	metrics.FailuresTotal.WithLabelValues(string(failure.Kind)).Inc()
	c.broker.Publish(failure)
}

// AddListener registers a callback invoked, off the caller's goroutine, for
// every subsequently added failure.
func (c *Container) AddListener(l func(benchtypes.FailureOperation)) {
	c.broker.AddListener(func(ev events.Event) {
		if f, ok := ev.Payload.(benchtypes.FailureOperation); ok {
			l(f)
		}
	})
}

// Count returns the total number of failures recorded, matching the
// Coordinator's accepted-FailureOperation count one to one.
func (c *Container) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.failures)
}

// All returns a snapshot of every recorded failure, in insertion order.
func (c *Container) All() []benchtypes.FailureOperation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]benchtypes.FailureOperation, len(c.failures))
	copy(out, c.failures)
	return out
}

// HasCriticalFailure reports whether any recorded failure's kind is absent
// from tolerable.
func (c *Container) HasCriticalFailure(tolerable map[benchtypes.FailureKind]bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.failures {
		if f.IsCritical(tolerable) {
			return true
		}
	}
	return false
}

// IsFinished reports whether workerAddress has reported a terminal failure
// kind.
func (c *Container) IsFinished(workerAddress string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finished[workerAddress]
}

// FinishedCount reports the size of the monotonic finishedWorkers set.
func (c *Container) FinishedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.finished)
}

// WaitForWorkerShutdown blocks until at least expectedCount workers have
// been marked finished, or timeout elapses. Returns true if the expected
// count was reached.
func (c *Container) WaitForWorkerShutdown(expectedCount int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if c.FinishedCount() >= expectedCount {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}
