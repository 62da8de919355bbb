package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/registry"
)

func TestCollectorSnapshotsRegistryGauges(t *testing.T) {
	reg := registry.New()
	reg.AddAgent(benchtypes.AgentData{AddressIndex: 1})
	reg.AddWorker(benchtypes.WorkerData{AgentAddressIndex: 1, WorkerIndex: 0})
	reg.AddWorker(benchtypes.WorkerData{AgentAddressIndex: 1, WorkerIndex: 1})
	require.True(t, reg.MarkWorkerFinished(1, 0))

	c := NewCollector(reg)
	c.collect()

	assert.Equal(t, float64(1), testutil.ToFloat64(AgentsRegistered))
	assert.Equal(t, float64(2), testutil.ToFloat64(WorkersRegistered))
	assert.Equal(t, float64(1), testutil.ToFloat64(WorkersFinished))
}

func TestCollectorStartStop(t *testing.T) {
	reg := registry.New()
	c := NewCollector(reg)
	c.Start()
	time.Sleep(10 * time.Millisecond)
	assert.NotPanics(t, c.Stop)
}
