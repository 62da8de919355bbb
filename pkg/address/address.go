// Package address implements the hierarchical Simulator Address used to
// route operations between the Coordinator, Agents, Workers and Tests.
package address

import (
	"fmt"
	"strconv"
	"strings"
)

// All is the wildcard component, matching every index at its level.
const All = -1

// Simulator is an immutable, value-typed hierarchical address of the form
// (Coordinator | AgentIndex | WorkerIndex | TestIndex). Each populated
// component is either a positive integer or the wildcard All. A component
// that is not part of the address at all (as opposed to wildcarded) is
// represented by notSet and is omitted from string form.
type Simulator struct {
	agentIndex int
	workerIndex int
	testIndex   int
}

const notSet = 0

// Coordinator is the address of the Coordinator itself: no agent, worker or
// test component.
var Coordinator = Simulator{}

// NewAgentAddress returns the address of an Agent.
func NewAgentAddress(agentIndex int) Simulator {
	return Simulator{agentIndex: nonZero(agentIndex)}
}

// NewWorkerAddress returns the address of a Worker under an Agent.
func NewWorkerAddress(agentIndex, workerIndex int) Simulator {
	return Simulator{agentIndex: nonZero(agentIndex), workerIndex: nonZero(workerIndex)}
}

// NewTestAddress returns the address of a Test running on a Worker.
func NewTestAddress(agentIndex, workerIndex, testIndex int) Simulator {
	return Simulator{agentIndex: nonZero(agentIndex), workerIndex: nonZero(workerIndex), testIndex: nonZero(testIndex)}
}

func nonZero(i int) int {
	if i == 0 {
		return All
	}
	return i
}

// AgentIndex returns the agent component, or (0, false) if unset.
func (s Simulator) AgentIndex() (int, bool) {
	return s.agentIndex, s.agentIndex != notSet
}

// WorkerIndex returns the worker component, or (0, false) if unset.
func (s Simulator) WorkerIndex() (int, bool) {
	return s.workerIndex, s.workerIndex != notSet
}

// TestIndex returns the test component, or (0, false) if unset.
func (s Simulator) TestIndex() (int, bool) {
	return s.testIndex, s.testIndex != notSet
}

// IsCoordinator reports whether this address has no further components.
func (s Simulator) IsCoordinator() bool {
	return s.agentIndex == notSet
}

// IsAgent reports whether this address names an Agent (with or without a
// worker/test component).
func (s Simulator) IsAgent() bool {
	return s.agentIndex != notSet
}

// IsWorker reports whether this address names a Worker.
func (s Simulator) IsWorker() bool {
	return s.workerIndex != notSet
}

// IsTest reports whether this address names a Test.
func (s Simulator) IsTest() bool {
	return s.testIndex != notSet
}

// Parent returns the address one level up the hierarchy and true, or the
// zero value and false if this is already the Coordinator.
func (s Simulator) Parent() (Simulator, bool) {
	switch {
	case s.testIndex != notSet:
		return Simulator{agentIndex: s.agentIndex, workerIndex: s.workerIndex}, true
	case s.workerIndex != notSet:
		return Simulator{agentIndex: s.agentIndex}, true
	case s.agentIndex != notSet:
		return Simulator{}, true
	default:
		return Simulator{}, false
	}
}

// AgentAddress returns the address of the owning Agent, dropping any
// worker/test components.
func (s Simulator) AgentAddress() Simulator {
	return Simulator{agentIndex: s.agentIndex}
}

// WorkerAddress returns the address of the owning Worker, dropping any test
// component. It does not panic: for an address with no worker component the
// result has no worker component either (the same value as AgentAddress).
func (s Simulator) WorkerAddress() Simulator {
	return Simulator{agentIndex: s.agentIndex, workerIndex: s.workerIndex}
}

// BroadcastAtLevel rewrites the address so that every component at or below
// the given level (0=coordinator, 1=agent, 2=worker, 3=test) becomes the
// wildcard All, while components above the level are preserved.
func (s Simulator) BroadcastAtLevel(level int) Simulator {
	out := s
	if level <= 1 {
		out.agentIndex = All
	}
	if level <= 2 {
		out.workerIndex = All
	}
	if level <= 3 {
		out.testIndex = All
	}
	return out
}

// Level returns the deepest populated component: 0 for the Coordinator, 1
// for an Agent, 2 for a Worker, 3 for a Test.
func (s Simulator) Level() int {
	switch {
	case s.testIndex != notSet:
		return 3
	case s.workerIndex != notSet:
		return 2
	case s.agentIndex != notSet:
		return 1
	default:
		return 0
	}
}

// String renders the address as "C" for the Coordinator or dot-separated
// components, using "*" for the wildcard. It is the inverse of Parse.
func (s Simulator) String() string {
	if s.IsCoordinator() {
		return "C"
	}
	parts := []string{"A" + component(s.agentIndex)}
	if s.workerIndex != notSet {
		parts = append(parts, "W"+component(s.workerIndex))
	}
	if s.testIndex != notSet {
		parts = append(parts, "T"+component(s.testIndex))
	}
	return strings.Join(parts, ".")
}

func component(v int) string {
	if v == All {
		return "*"
	}
	return strconv.Itoa(v)
}

// Parse parses the string form produced by String.
func Parse(s string) (Simulator, error) {
	if s == "C" {
		return Simulator{}, nil
	}

	var addr Simulator
	for _, part := range strings.Split(s, ".") {
		if len(part) < 2 {
			return Simulator{}, fmt.Errorf("address: malformed component %q", part)
		}
		tag, rest := part[0], part[1:]
		val := All
		if rest != "*" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return Simulator{}, fmt.Errorf("address: malformed component %q: %w", part, err)
			}
			val = n
		}
		switch tag {
		case 'A':
			addr.agentIndex = val
		case 'W':
			addr.workerIndex = val
		case 'T':
			addr.testIndex = val
		default:
			return Simulator{}, fmt.Errorf("address: unknown component tag %q", part)
		}
	}
	return addr, nil
}

// Matches reports whether the concrete address (no wildcards) would be
// routed to by this address, treating All components in s as matching
// anything at that level in other.
func (s Simulator) Matches(other Simulator) bool {
	if s.agentIndex != notSet && s.agentIndex != All && s.agentIndex != other.agentIndex {
		return false
	}
	if s.workerIndex != notSet && s.workerIndex != All && s.workerIndex != other.workerIndex {
		return false
	}
	if s.testIndex != notSet && s.testIndex != All && s.testIndex != other.testIndex {
		return false
	}
	return true
}
