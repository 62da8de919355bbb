package benchtypes

import (
	"fmt"

	"github.com/google/uuid"
)

// TestCase names a workload (via the "class" property, among others) to run
// against the data grid. Property keys are unique; order is irrelevant.
type TestCase struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// NewTestCase creates a TestCase with a generated id.
func NewTestCase(properties map[string]string) TestCase {
	return TestCase{ID: uuid.NewString(), Properties: cloneProps(properties)}
}

func cloneProps(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// WorkloadClass returns the "class" property, the name the Worker looks up
// in its workload registry.
func (tc TestCase) WorkloadClass() string {
	return tc.Properties["class"]
}

// Validate checks that the TestCase names a workload class.
func (tc TestCase) Validate() error {
	if tc.WorkloadClass() == "" {
		return fmt.Errorf("benchtypes: test case %s has no %q property", tc.ID, "class")
	}
	return nil
}

// TestSuite is an ordered sequence of TestCase plus the scheduling and
// failure-tolerance policy the Coordinator applies while running them.
type TestSuite struct {
	ID                string         `json:"id"`
	Tests             []TestCase     `json:"tests"`
	DurationSeconds   int            `json:"durationSeconds"`
	WaitForTestCase    bool          `json:"waitForTestCase"`
	FailFast          bool           `json:"failFast"`
	TolerableFailures []FailureKind  `json:"tolerableFailures,omitempty"`
	RefreshJVM        bool           `json:"refreshJvm"`
	VerifyEnabled     bool           `json:"verifyEnabled"`
	LastTestPhaseToSync TestPhase    `json:"lastTestPhaseToSync"`
	WaitForWorkerShutdownTimeoutSeconds int `json:"waitForWorkerShutdownTimeoutSeconds"`
}

// NewTestSuite builds a suite with a generated short id and sensible
// defaults for fields the caller did not set.
func NewTestSuite(tests []TestCase) *TestSuite {
	return &TestSuite{
		ID:                                  shortID(),
		Tests:                               tests,
		VerifyEnabled:                       true,
		LastTestPhaseToSync:                 GlobalWarmupPhase,
		WaitForWorkerShutdownTimeoutSeconds: 60,
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}

// TolerableSet returns the suite's tolerable failure kinds as a lookup set.
func (s *TestSuite) TolerableSet() map[FailureKind]bool {
	set := make(map[FailureKind]bool, len(s.TolerableFailures))
	for _, k := range s.TolerableFailures {
		set[k] = true
	}
	return set
}

// IsParallelEligible reports whether the suite has more than one test, the
// precondition for parallel scheduling per spec.
func (s *TestSuite) IsParallelEligible() bool {
	return len(s.Tests) > 1
}
