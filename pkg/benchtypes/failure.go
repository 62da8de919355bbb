package benchtypes

import "time"

// FailureKind classifies why a FailureOperation was raised.
type FailureKind string

const (
	// WorkerException means the Worker wrote a *.exception artifact.
	WorkerException FailureKind = "WORKER_EXCEPTION"
	// WorkerOOM means worker.oome or a *.hprof file appeared in the
	// Worker's home directory.
	WorkerOOM FailureKind = "WORKER_OOM"
	// WorkerTimeout means the Worker stopped refreshing its lastSeen
	// timestamp.
	WorkerTimeout FailureKind = "WORKER_TIMEOUT"
	// WorkerExit means the child process exited with a nonzero code.
	WorkerExit FailureKind = "WORKER_EXIT"
	// WorkerFinished means the child process exited with code 0.
	WorkerFinished FailureKind = "WORKER_FINISHED"
	// WorkerFinishedNormal is informational only; it is never critical.
	WorkerFinishedNormal FailureKind = "WORKER_FINISHED_NORMAL"
)

// terminalKinds are the kinds whose occurrence implies the Worker is dead
// and must be removed from the Component Registry before the next phase.
var terminalKinds = map[FailureKind]bool{
	WorkerOOM:            true,
	WorkerExit:           true,
	WorkerFinished:       true,
	WorkerFinishedNormal: true,
}

// IsTerminal reports whether this failure kind implies the Worker process is
// no longer running. WorkerException and WorkerTimeout are not terminal on
// their own: an exception can be raised by a Worker that keeps running, and
// a timeout is a suspicion, not a confirmed death.
func (k FailureKind) IsTerminal() bool {
	return terminalKinds[k]
}

// IsInformational reports whether this kind carries no failure semantics at
// all (WORKER_FINISHED_NORMAL).
func (k FailureKind) IsInformational() bool {
	return k == WorkerFinishedNormal
}

// FailureOperation is a single structured failure report traveling from an
// Agent to the Coordinator. It is immutable once constructed and is never
// mutated after insertion into the Failure Container.
type FailureOperation struct {
	Message            string      `json:"message"`
	Kind               FailureKind `json:"kind"`
	WorkerAddress      string      `json:"workerAddress"`
	AgentPublicAddress string      `json:"agentPublicAddress"`
	HazelcastAddress   string      `json:"hazelcastAddress,omitempty"`
	WorkerID           string      `json:"workerId"`
	TestID             string      `json:"testId,omitempty"`
	TestSuiteRef       string      `json:"testSuiteRef"`
	Cause              string      `json:"cause,omitempty"`
	ObservedAt         time.Time   `json:"observedAt"`
}

// IsCritical reports whether this failure's kind is absent from the given
// tolerable set, per TestSuite.TolerableFailures.
func (f FailureOperation) IsCritical(tolerable map[FailureKind]bool) bool {
	if f.Kind.IsInformational() {
		return false
	}
	return !tolerable[f.Kind]
}
