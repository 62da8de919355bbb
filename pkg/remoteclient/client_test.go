package remoteclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/address"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/failurecontainer"
	"github.com/cuemby/warrenbench/pkg/registry"
)

// recordingAgent stands in for a real Agent Connector: it answers every
// Dispatch with SUCCESS and records what it received.
type recordingAgent struct {
	received chan *bus.Envelope
}

func (a *recordingAgent) Dispatch(_ context.Context, in *bus.Envelope) (*bus.Envelope, error) {
	select {
	case a.received <- in:
	default:
	}
	resp := benchtypes.NewResponse()
	resp.Set(in.Destination, benchtypes.Success)
	return in.NewResponseEnvelope(resp), nil
}

func startAgent(t *testing.T) (addr string, agent *recordingAgent) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	agent = &recordingAgent{received: make(chan *bus.Envelope, 8)}
	srv := bus.NewServer(nil)
	bus.RegisterBusServer(srv, agent)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String(), agent
}

func newTestConnector(t *testing.T, agentAddresses ...string) (*Connector, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	for i, addr := range agentAddresses {
		reg.AddAgent(benchtypes.AgentData{AddressIndex: i + 1, PublicAddress: addr})
	}
	return NewConnector("C", reg, nil), reg
}

func TestBroadcastReturnsAllSuccess(t *testing.T) {
	addr1, _ := startAgent(t)
	addr2, _ := startAgent(t)
	conn, _ := newTestConnector(t, addr1, addr2)

	op := benchtypes.Operation{Kind: benchtypes.OpLog, Log: &benchtypes.LogPayload{Message: "hi"}}
	resp, err := conn.Broadcast(context.Background(), op, []address.Simulator{
		address.NewAgentAddress(1),
		address.NewAgentAddress(2),
	})

	require.NoError(t, err)
	assert.True(t, resp.AllSuccess())
	assert.Len(t, resp.PerTargetStatus, 2)
}

func TestSendToFirstWorkerDeliversEnvelope(t *testing.T) {
	addr, agent := startAgent(t)
	conn, _ := newTestConnector(t, addr)

	op := benchtypes.Operation{
		Kind:     benchtypes.OpRunPhase,
		RunPhase: &benchtypes.RunPhasePayload{TestID: "t1", Phase: benchtypes.SetupPhase},
	}
	resp, err := conn.SendToFirstWorker(context.Background(), address.NewWorkerAddress(1, 0), op)

	require.NoError(t, err)
	assert.True(t, resp.AllSuccess())

	select {
	case env := <-agent.received:
		assert.Equal(t, benchtypes.OpRunPhase, env.Kind)
		assert.Equal(t, "t1", env.Operation.RunPhase.TestID)
	case <-time.After(time.Second):
		t.Fatal("agent never received envelope")
	}
}

func TestInitTestSuiteBroadcastsToEveryAgent(t *testing.T) {
	addr1, agent1 := startAgent(t)
	addr2, agent2 := startAgent(t)
	conn, _ := newTestConnector(t, addr1, addr2)

	suite := *benchtypes.NewTestSuite([]benchtypes.TestCase{benchtypes.NewTestCase(map[string]string{"class": "noop"})})

	require.NoError(t, conn.InitTestSuite(context.Background(), suite))

	for _, agent := range []*recordingAgent{agent1, agent2} {
		select {
		case env := <-agent.received:
			assert.Equal(t, benchtypes.OpInitTestSuite, env.Kind)
		case <-time.After(time.Second):
			t.Fatal("agent never received InitTestSuite")
		}
	}
}

func TestTerminateWorkersWaitsForFailureContainer(t *testing.T) {
	addr, _ := startAgent(t)
	conn, _ := newTestConnector(t, addr)

	container := failurecontainer.New()
	defer container.Close()
	container.Add(benchtypes.FailureOperation{Kind: benchtypes.WorkerFinished, WorkerAddress: "A1.W0"})

	err := conn.TerminateWorkers(context.Background(), true, container, 1, time.Second)
	assert.NoError(t, err)
}

func TestTerminateWorkersTimesOutWhenWorkersNeverFinish(t *testing.T) {
	addr, _ := startAgent(t)
	conn, _ := newTestConnector(t, addr)

	container := failurecontainer.New()
	defer container.Close()

	err := conn.TerminateWorkers(context.Background(), true, container, 1, 150*time.Millisecond)
	assert.Error(t, err)
}

func TestLogOnAllAgentsIsBestEffort(t *testing.T) {
	conn, _ := newTestConnector(t, "127.0.0.1:1") // nothing listening there

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	assert.NotPanics(t, func() {
		conn.LogOnAllAgents(ctx, "best effort")
	})
}

func TestBroadcastSurfacesFirstErrorAlongsidePartialResults(t *testing.T) {
	addr, _ := startAgent(t)
	conn, reg := newTestConnector(t, addr)
	reg.AddAgent(benchtypes.AgentData{AddressIndex: 9, PublicAddress: "127.0.0.1:1"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	op := benchtypes.Operation{Kind: benchtypes.OpLog, Log: &benchtypes.LogPayload{Message: "hi"}}
	resp, err := conn.Broadcast(ctx, op, []address.Simulator{
		address.NewAgentAddress(1),
		address.NewAgentAddress(9),
	})

	assert.Error(t, err)
	assert.Len(t, resp.PerTargetStatus, 1, "the healthy target's response is still merged in")
}
