package phaselisteners

import (
	"sync"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/log"
)

// Handlers are the callbacks registered for one test index.
type Handlers struct {
	OnPhaseComplete func(workerAddress string, phase benchtypes.TestPhase)
	OnFailure       func(failure benchtypes.FailureOperation)
}

// Registry maps a TestCase's index within its suite to that test's Handlers.
type Registry struct {
	mu        sync.RWMutex
	listeners map[int]Handlers
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{listeners: make(map[int]Handlers)}
}

// Register associates testIdx with h, replacing any previous registration.
func (r *Registry) Register(testIdx int, h Handlers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[testIdx] = h
}

// Unregister removes testIdx's registration, if any.
func (r *Registry) Unregister(testIdx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, testIdx)
}

// DispatchPhaseComplete invokes testIdx's OnPhaseComplete handler. Returns
// false, after logging, if no listener is registered for testIdx.
func (r *Registry) DispatchPhaseComplete(testIdx int, workerAddress string, phase benchtypes.TestPhase) bool {
	h, ok := r.lookup(testIdx)
	if !ok || h.OnPhaseComplete == nil {
		log.Logger.Warn().Int("testIdx", testIdx).Str("workerAddress", workerAddress).
			Msg("phaselisteners: dropping phase-complete for unknown test index")
		return false
	}
	h.OnPhaseComplete(workerAddress, phase)
	return true
}

// DispatchFailure invokes testIdx's OnFailure handler. Returns false, after
// logging, if no listener is registered for testIdx.
func (r *Registry) DispatchFailure(testIdx int, failure benchtypes.FailureOperation) bool {
	h, ok := r.lookup(testIdx)
	if !ok || h.OnFailure == nil {
		log.Logger.Warn().Int("testIdx", testIdx).Str("workerAddress", failure.WorkerAddress).
			Msg("phaselisteners: dropping failure for unknown test index")
		return false
	}
	h.OnFailure(failure)
	return true
}

func (r *Registry) lookup(testIdx int) (Handlers, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.listeners[testIdx]
	return h, ok
}

// Len reports how many test indices currently have registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
