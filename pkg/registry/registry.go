package registry

import (
	"sync"
	"time"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
)

type workerKey struct {
	agentIndex  int
	workerIndex int
}

// Registry is the Component Registry: a single-mutex, in-memory map of
// agents, workers and in-flight tests. All reads and writes go through its
// exported methods; callers never see the internal maps.
type Registry struct {
	mu      sync.RWMutex
	agents  map[int]benchtypes.AgentData
	workers map[workerKey]benchtypes.WorkerData
	tests   map[int]benchtypes.TestData
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		agents:  make(map[int]benchtypes.AgentData),
		workers: make(map[workerKey]benchtypes.WorkerData),
		tests:   make(map[int]benchtypes.TestData),
	}
}

// AddAgent registers or replaces an agent's row.
func (r *Registry) AddAgent(data benchtypes.AgentData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[data.AddressIndex] = data
}

// RemoveAgent drops an agent's row and every worker it hosts.
func (r *Registry) RemoveAgent(agentIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentIndex)
	for key := range r.workers {
		if key.agentIndex == agentIndex {
			delete(r.workers, key)
		}
	}
}

// GetAgent looks up an agent by address index.
func (r *Registry) GetAgent(agentIndex int) (benchtypes.AgentData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.agents[agentIndex]
	return data, ok
}

// Agents returns a snapshot of all registered agents.
func (r *Registry) Agents() []benchtypes.AgentData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]benchtypes.AgentData, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// AgentCount reports how many agents are currently registered.
func (r *Registry) AgentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// AddWorker registers or replaces a worker's row.
func (r *Registry) AddWorker(data benchtypes.WorkerData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[workerKey{data.AgentAddressIndex, data.WorkerIndex}] = data
}

// RemoveWorker drops a single worker's row.
func (r *Registry) RemoveWorker(agentIndex, workerIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, workerKey{agentIndex, workerIndex})
}

// GetWorker looks up a worker by (agent index, worker index).
func (r *Registry) GetWorker(agentIndex, workerIndex int) (benchtypes.WorkerData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.workers[workerKey{agentIndex, workerIndex}]
	return data, ok
}

// Workers returns a snapshot of every worker currently registered.
func (r *Registry) Workers() []benchtypes.WorkerData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]benchtypes.WorkerData, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, w)
	}
	return out
}

// WorkersForAgent returns the workers hosted by a single agent.
func (r *Registry) WorkersForAgent(agentIndex int) []benchtypes.WorkerData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []benchtypes.WorkerData
	for key, w := range r.workers {
		if key.agentIndex == agentIndex {
			out = append(out, w)
		}
	}
	return out
}

// WorkerCounts reports the total worker count and how many have finished.
func (r *Registry) WorkerCounts() (total, finished int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total = len(r.workers)
	for _, w := range r.workers {
		if w.IsFinished {
			finished++
		}
	}
	return total, finished
}

// MarkWorkerFinished flips a worker's finished flag in place.
func (r *Registry) MarkWorkerFinished(agentIndex, workerIndex int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := workerKey{agentIndex, workerIndex}
	data, ok := r.workers[key]
	if !ok {
		return false
	}
	data.IsFinished = true
	r.workers[key] = data
	return true
}

// Touch refreshes a worker's LastSeen heartbeat timestamp.
func (r *Registry) Touch(agentIndex, workerIndex int, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := workerKey{agentIndex, workerIndex}
	data, ok := r.workers[key]
	if !ok {
		return false
	}
	data.LastSeen = at
	r.workers[key] = data
	return true
}

// MissingWorkers returns the unfinished workers whose last heartbeat is
// older than timeout as of now — candidates for a WorkerTimeout failure.
func (r *Registry) MissingWorkers(timeout time.Duration, now time.Time) []benchtypes.WorkerData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []benchtypes.WorkerData
	for _, w := range r.workers {
		if w.IsFinished {
			continue
		}
		if now.Sub(w.LastSeen) > timeout {
			out = append(out, w)
		}
	}
	return out
}

// AddTest registers a test's assignment row.
func (r *Registry) AddTest(data benchtypes.TestData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[data.TestIndex] = data
}

// GetTest looks up a test by index.
func (r *Registry) GetTest(testIndex int) (benchtypes.TestData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.tests[testIndex]
	return data, ok
}

// RemoveTest drops a test's assignment row once it has been torn down.
func (r *Registry) RemoveTest(testIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tests, testIndex)
}
