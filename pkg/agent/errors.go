package agent

import "fmt"

// AgentError wraps a failure in Agent-side orchestration (launching a
// Worker, scanning for failures, relaying to the Coordinator) with enough
// context to log and report without the caller needing to inspect internal
// state.
type AgentError struct {
	Op  string
	Err error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent: %s: %v", e.Op, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

func newAgentError(op string, err error) *AgentError {
	return &AgentError{Op: op, Err: err}
}
