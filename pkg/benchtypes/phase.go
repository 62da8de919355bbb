package benchtypes

import "strings"

// TestPhase is one stage of a TestCase's fixed lifecycle. The zero value is
// not a valid phase; phases are compared with Before using their declared
// order.
type TestPhase int

const (
	// SetupPhase runs on every Worker hosting the test.
	SetupPhase TestPhase = iota + 1
	// LocalWarmupPhase runs on every Worker hosting the test.
	LocalWarmupPhase
	// GlobalWarmupPhase runs on the first Worker only.
	GlobalWarmupPhase
	// RunPhase runs on every Worker hosting the test.
	RunPhase
	// GlobalVerifyPhase runs on the first Worker only.
	GlobalVerifyPhase
	// LocalVerifyPhase runs on every Worker hosting the test.
	LocalVerifyPhase
	// GlobalTeardownPhase runs on the first Worker only.
	GlobalTeardownPhase
	// LocalTeardownPhase runs on every Worker hosting the test.
	LocalTeardownPhase
)

// Phases is every TestPhase in declared order.
var Phases = []TestPhase{
	SetupPhase,
	LocalWarmupPhase,
	GlobalWarmupPhase,
	RunPhase,
	GlobalVerifyPhase,
	LocalVerifyPhase,
	GlobalTeardownPhase,
	LocalTeardownPhase,
}

var phaseNames = map[TestPhase]string{
	SetupPhase:          "SETUP",
	LocalWarmupPhase:    "LOCAL_WARMUP",
	GlobalWarmupPhase:   "GLOBAL_WARMUP",
	RunPhase:            "RUN",
	GlobalVerifyPhase:   "GLOBAL_VERIFY",
	LocalVerifyPhase:    "LOCAL_VERIFY",
	GlobalTeardownPhase: "GLOBAL_TEARDOWN",
	LocalTeardownPhase:  "LOCAL_TEARDOWN",
}

// String renders the phase using the spec's ALL_CAPS names.
func (p TestPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "UNKNOWN_PHASE"
}

// IsGlobal reports whether the phase runs on a single designated ("first")
// Worker rather than on every Worker hosting the test.
func (p TestPhase) IsGlobal() bool {
	return strings.HasPrefix(p.String(), "GLOBAL_")
}

// Next returns the phase that follows p in the declared order, and false if
// p is the last phase.
func (p TestPhase) Next() (TestPhase, bool) {
	for i, candidate := range Phases {
		if candidate == p && i+1 < len(Phases) {
			return Phases[i+1], true
		}
	}
	return 0, false
}

// Before reports whether p occurs strictly before other in the declared
// order.
func (p TestPhase) Before(other TestPhase) bool {
	return p < other
}
