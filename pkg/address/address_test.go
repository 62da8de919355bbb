package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripsThroughString(t *testing.T) {
	cases := []Simulator{
		Coordinator,
		NewAgentAddress(3),
		NewWorkerAddress(3, 2),
		NewTestAddress(3, 2, 7),
		NewWorkerAddress(1, 1).BroadcastAtLevel(3),
	}

	for _, addr := range cases {
		parsed, err := Parse(addr.String())
		require.NoError(t, err)
		assert.Equal(t, addr, parsed, "round trip of %s", addr)
	}
}

func TestParentDerivation(t *testing.T) {
	test := NewTestAddress(1, 2, 5)

	worker, ok := test.Parent()
	require.True(t, ok)
	assert.Equal(t, NewWorkerAddress(1, 2), worker)

	agent, ok := worker.Parent()
	require.True(t, ok)
	assert.Equal(t, NewAgentAddress(1), agent)

	coord, ok := agent.Parent()
	require.True(t, ok)
	assert.Equal(t, Coordinator, coord)

	_, ok = coord.Parent()
	assert.False(t, ok, "coordinator has no parent")
}

func TestBroadcastAtLevel(t *testing.T) {
	test := NewTestAddress(4, 5, 6)

	allWorkersOnAgent := test.BroadcastAtLevel(2)
	worker, ok := allWorkersOnAgent.WorkerIndex()
	require.True(t, ok)
	assert.Equal(t, All, worker)
	testIdx, _ := allWorkersOnAgent.TestIndex()
	assert.Equal(t, All, testIdx)
	agentIdx, _ := allWorkersOnAgent.AgentIndex()
	assert.Equal(t, 4, agentIdx, "components above the level are preserved")
}

func TestMatchesWildcards(t *testing.T) {
	everyWorkerOnAgent1 := NewAgentAddress(1).BroadcastAtLevel(2)
	assert.True(t, everyWorkerOnAgent1.Matches(NewWorkerAddress(1, 9)))
	assert.False(t, everyWorkerOnAgent1.Matches(NewWorkerAddress(2, 9)))
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("A1.Xfoo")
	assert.Error(t, err)

	_, err = Parse("Anope")
	assert.Error(t, err)
}

func TestAgentAndWorkerAddressProjection(t *testing.T) {
	test := NewTestAddress(2, 3, 9)
	assert.Equal(t, NewAgentAddress(2), test.AgentAddress())
	assert.Equal(t, NewWorkerAddress(2, 3), test.WorkerAddress())
	assert.Equal(t, 3, test.Level())
}
