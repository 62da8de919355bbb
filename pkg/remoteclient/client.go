package remoteclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc/credentials"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/address"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/failurecontainer"
	"github.com/cuemby/warrenbench/pkg/log"
	"github.com/cuemby/warrenbench/pkg/registry"
)

// DefaultCallTimeout bounds a single Dispatch RPC when the caller's context
// carries no deadline of its own.
const DefaultCallTimeout = 10 * time.Second

// Connector is the Coordinator's single entry point onto the Bus. It caches
// one gRPC connection per Agent, dialed lazily from the Component
// Registry's recorded PublicAddress.
type Connector struct {
	source string
	reg    *registry.Registry
	creds  credentials.TransportCredentials

	mu    sync.Mutex
	conns map[int]bus.BusClient
}

// NewConnector creates a Connector addressed as source ("C" for the
// Coordinator) that resolves Agent endpoints through reg. creds may be nil
// for unencrypted loopback testing.
func NewConnector(source string, reg *registry.Registry, creds credentials.TransportCredentials) *Connector {
	return &Connector{
		source: source,
		reg:    reg,
		creds:  creds,
		conns:  make(map[int]bus.BusClient),
	}
}

// Broadcast sends op to every target concurrently and blocks until a
// Response has been received from each, merging their PerTargetStatus maps.
// It returns the first dial/RPC error encountered, if any, alongside
// whatever partial results were collected.
func (c *Connector) Broadcast(ctx context.Context, op benchtypes.Operation, targets []address.Simulator) (benchtypes.Response, error) {
	type outcome struct {
		resp benchtypes.Response
		err  error
	}

	results := make([]outcome, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target address.Simulator) {
			defer wg.Done()
			resp, err := c.send(ctx, target, op)
			results[i] = outcome{resp, err}
		}(i, target)
	}
	wg.Wait()

	merged := benchtypes.NewResponse()
	var firstErr error
	for i, r := range results {
		if r.err != nil {
			log.Logger.Warn().Err(r.err).Str("target", targets[i].String()).Msg("remoteclient: broadcast target failed")
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		for target, status := range r.resp.PerTargetStatus {
			merged.Set(target, status)
		}
	}
	return merged, firstErr
}

// SendToFirstWorker routes op to the designated first Worker for a test.
func (c *Connector) SendToFirstWorker(ctx context.Context, firstWorker address.Simulator, op benchtypes.Operation) (benchtypes.Response, error) {
	return c.send(ctx, firstWorker, op)
}

// InitTestSuite idempotently registers suite with every known Agent.
func (c *Connector) InitTestSuite(ctx context.Context, suite benchtypes.TestSuite) error {
	op := benchtypes.Operation{
		Kind:          benchtypes.OpInitTestSuite,
		InitTestSuite: &benchtypes.InitTestSuitePayload{Suite: suite},
	}
	resp, err := c.Broadcast(ctx, op, c.allAgentAddresses())
	if err != nil {
		return err
	}
	if !resp.AllSuccess() {
		return fmt.Errorf("remoteclient: InitTestSuite rejected by %s", resp.PerTargetStatus)
	}
	return nil
}

// TerminateWorkers asks every Agent to shut down its Worker processes. If
// wait is true it additionally blocks, up to shutdownTimeout, until
// container's finishedWorkers set reaches expectedWorkerCount.
func (c *Connector) TerminateWorkers(ctx context.Context, wait bool, container *failurecontainer.Container, expectedWorkerCount int, shutdownTimeout time.Duration) error {
	op := benchtypes.Operation{
		Kind:             benchtypes.OpTerminateWorkers,
		TerminateWorkers: &benchtypes.TerminateWorkersPayload{Wait: wait},
	}
	if _, err := c.Broadcast(ctx, op, c.allAgentAddresses()); err != nil {
		return err
	}
	if wait && container != nil {
		if !container.WaitForWorkerShutdown(expectedWorkerCount, shutdownTimeout) {
			return fmt.Errorf("remoteclient: timed out after %s waiting for %d workers to finish", shutdownTimeout, expectedWorkerCount)
		}
	}
	return nil
}

// LogOnAllAgents is a best-effort fan-out of message to every Agent;
// failures are logged and otherwise ignored.
func (c *Connector) LogOnAllAgents(ctx context.Context, message string) {
	op := benchtypes.Operation{Kind: benchtypes.OpLog, Log: &benchtypes.LogPayload{Message: message}}
	for _, target := range c.allAgentAddresses() {
		if _, err := c.send(ctx, target, op); err != nil {
			log.Logger.Debug().Err(err).Str("target", target.String()).Msg("remoteclient: logOnAllAgents best-effort send failed")
		}
	}
}

func (c *Connector) allAgentAddresses() []address.Simulator {
	agents := c.reg.Agents()
	out := make([]address.Simulator, len(agents))
	for i, a := range agents {
		out[i] = address.NewAgentAddress(a.AddressIndex)
	}
	return out
}

func (c *Connector) send(ctx context.Context, target address.Simulator, op benchtypes.Operation) (benchtypes.Response, error) {
	agentIdx, ok := target.AgentIndex()
	if !ok {
		return benchtypes.Response{}, fmt.Errorf("remoteclient: target %s has no agent component", target)
	}

	client, err := c.clientFor(agentIdx)
	if err != nil {
		return benchtypes.Response{}, err
	}

	callCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	env := bus.NewOperationEnvelope(c.source, target.String(), op)
	respEnv, err := client.Dispatch(callCtx, env)
	if err != nil {
		return benchtypes.Response{}, fmt.Errorf("remoteclient: dispatch to %s: %w", target, err)
	}
	if respEnv.Response == nil {
		return benchtypes.Response{}, fmt.Errorf("remoteclient: %s returned no response payload", target)
	}
	return *respEnv.Response, nil
}

func (c *Connector) clientFor(agentIdx int) (bus.BusClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.conns[agentIdx]; ok {
		return client, nil
	}

	agent, ok := c.reg.GetAgent(agentIdx)
	if !ok {
		return nil, fmt.Errorf("remoteclient: no registered agent at index %d", agentIdx)
	}

	conn, err := bus.Dial(agent.PublicAddress, c.creds)
	if err != nil {
		return nil, err
	}

	client := bus.NewBusClient(conn)
	c.conns[agentIdx] = client
	return client, nil
}
