package coordinator

import "fmt"

// CoordinatorError wraps a failure raised by the test-suite engine itself
// (as opposed to a failure reported about a Worker). Op names the step that
// failed, e.g. "prerequisites", "initTestSuite", "phase SETUP".
type CoordinatorError struct {
	Op  string
	Err error
}

func (e *CoordinatorError) Error() string {
	return fmt.Sprintf("coordinator: %s: %v", e.Op, e.Err)
}

func (e *CoordinatorError) Unwrap() error {
	return e.Err
}
