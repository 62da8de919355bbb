package phaselisteners

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
)

func TestRegisterAndDispatchPhaseComplete(t *testing.T) {
	r := New()

	var gotWorker string
	var gotPhase benchtypes.TestPhase
	r.Register(0, Handlers{
		OnPhaseComplete: func(workerAddress string, phase benchtypes.TestPhase) {
			gotWorker = workerAddress
			gotPhase = phase
		},
	})

	ok := r.DispatchPhaseComplete(0, "A1.W0", benchtypes.RunPhase)

	assert.True(t, ok)
	assert.Equal(t, "A1.W0", gotWorker)
	assert.Equal(t, benchtypes.RunPhase, gotPhase)
}

func TestDispatchPhaseCompleteOnUnknownIndexReturnsFalse(t *testing.T) {
	r := New()
	assert.False(t, r.DispatchPhaseComplete(7, "A1.W0", benchtypes.RunPhase))
}

func TestRegisterAndDispatchFailure(t *testing.T) {
	r := New()

	var got benchtypes.FailureOperation
	r.Register(1, Handlers{
		OnFailure: func(f benchtypes.FailureOperation) {
			got = f
		},
	})

	f := benchtypes.FailureOperation{Kind: benchtypes.WorkerException, WorkerAddress: "A1.W1"}
	ok := r.DispatchFailure(1, f)

	assert.True(t, ok)
	assert.Equal(t, f, got)
}

func TestDispatchFailureOnUnknownIndexReturnsFalse(t *testing.T) {
	r := New()
	f := benchtypes.FailureOperation{Kind: benchtypes.WorkerException, WorkerAddress: "A1.W1"}
	assert.False(t, r.DispatchFailure(9, f))
}

func TestUnregisterRemovesListener(t *testing.T) {
	r := New()
	r.Register(0, Handlers{OnPhaseComplete: func(string, benchtypes.TestPhase) {}})
	assert.Equal(t, 1, r.Len())

	r.Unregister(0)
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.DispatchPhaseComplete(0, "A1.W0", benchtypes.RunPhase))
}
