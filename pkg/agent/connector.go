package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/address"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/log"
	"google.golang.org/grpc/credentials"
)

// DefaultTerminateWait is how long Shutdown waits for a Worker to exit
// before escalating to SIGKILL.
const DefaultTerminateWait = 10 * time.Second

// Connector is the Agent's single Bus endpoint: it serves Coordinator
// commands over bus.BusServer and, for anything that targets a specific
// Worker, dials that Worker's own loopback Bus server and forwards the
// command. It also owns the outbound leg used to deliver FailureOperations
// upstream, mirroring the teacher's pkg/client one-connection-per-peer
// style applied in the opposite direction.
type Connector struct {
	agentIndex    int
	publicAddress string
	pm            *ProcessManager
	workerPort    func(workerIndex int) string

	upstreamAddr string
	upstreamCred credentials.TransportCredentials

	mu          sync.Mutex
	workerConns map[int]bus.BusClient
	upstream    bus.BusClient
}

// NewConnector builds a Connector for the Agent at agentIndex. workerPort
// resolves a local Worker's loopback listen address from its worker index;
// upstreamAddr/upstreamCred identify the Coordinator this Agent reports to.
func NewConnector(agentIndex int, publicAddress string, pm *ProcessManager, workerPort func(int) string, upstreamAddr string, upstreamCred credentials.TransportCredentials) *Connector {
	return &Connector{
		agentIndex:    agentIndex,
		publicAddress: publicAddress,
		pm:            pm,
		workerPort:    workerPort,
		upstreamAddr:  upstreamAddr,
		upstreamCred:  upstreamCred,
		workerConns:   make(map[int]bus.BusClient),
	}
}

// Dispatch implements bus.BusServer for inbound Coordinator commands.
func (c *Connector) Dispatch(ctx context.Context, in *bus.Envelope) (*bus.Envelope, error) {
	if in.Operation == nil {
		resp := benchtypes.NewResponse()
		resp.Set(in.Destination, benchtypes.ExceptionDuringOperationExecution)
		return in.NewResponseEnvelope(resp), nil
	}

	if in.Operation.Kind == benchtypes.OpTerminateWorkers {
		return in.NewResponseEnvelope(c.terminateWorkers(in.Operation.TerminateWorkers)), nil
	}

	if in.Operation.Kind == benchtypes.OpReportPerfSample {
		return in.NewResponseEnvelope(c.relayPerfSample(ctx, *in.Operation)), nil
	}

	target, err := address.Parse(in.Destination)
	if err != nil {
		resp := benchtypes.NewResponse()
		resp.Set(in.Destination, benchtypes.ExceptionDuringOperationExecution)
		return in.NewResponseEnvelope(resp), nil
	}

	workerIndex, hasWorker := target.WorkerIndex()
	if target.Level() <= 1 || !hasWorker || workerIndex == address.All {
		return in.NewResponseEnvelope(c.broadcastToWorkers(ctx, *in.Operation)), nil
	}

	return in.NewResponseEnvelope(c.forwardToWorker(ctx, workerIndex, *in.Operation, in.Destination)), nil
}

func (c *Connector) terminateWorkers(payload *benchtypes.TerminateWorkersPayload) benchtypes.Response {
	resp := benchtypes.NewResponse()
	wait := payload != nil && payload.Wait
	timeout := time.Duration(0)
	if wait {
		timeout = DefaultTerminateWait
	}
	for _, w := range c.pm.GetWorkerProcesses() {
		workerAddr := address.NewWorkerAddress(c.agentIndex, w.Data.WorkerIndex).String()
		if err := c.pm.Shutdown(w.Data.WorkerIndex, timeout); err != nil {
			log.Logger.Warn().Err(err).Int("workerIndex", w.Data.WorkerIndex).Msg("agent: failed to shut down worker")
			resp.Set(workerAddr, benchtypes.ExceptionDuringOperationExecution)
			continue
		}
		resp.Set(workerAddr, benchtypes.Success)
	}
	return resp
}

func (c *Connector) broadcastToWorkers(ctx context.Context, op benchtypes.Operation) benchtypes.Response {
	resp := benchtypes.NewResponse()
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, w := range c.pm.GetWorkerProcesses() {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerAddr := address.NewWorkerAddress(c.agentIndex, w.Data.WorkerIndex).String()
			single := c.forwardToWorker(ctx, w.Data.WorkerIndex, op, workerAddr)
			mu.Lock()
			for target, status := range single.PerTargetStatus {
				resp.Set(target, status)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return resp
}

func (c *Connector) forwardToWorker(ctx context.Context, workerIndex int, op benchtypes.Operation, destination string) benchtypes.Response {
	resp := benchtypes.NewResponse()

	if _, ok := c.pm.Get(workerIndex); !ok {
		resp.Set(destination, benchtypes.FailureWorkerNotFound)
		return resp
	}

	client, err := c.workerClient(workerIndex)
	if err != nil {
		log.Logger.Warn().Err(err).Int("workerIndex", workerIndex).Msg("agent: failed to dial local worker")
		resp.Set(destination, benchtypes.ExceptionDuringOperationExecution)
		return resp
	}

	agentAddr := address.NewAgentAddress(c.agentIndex).String()
	envelope := bus.NewOperationEnvelope(agentAddr, destination, op)

	out, err := client.Dispatch(ctx, envelope)
	if err != nil {
		log.Logger.Warn().Err(err).Int("workerIndex", workerIndex).Msg("agent: worker dispatch failed")
		resp.Set(destination, benchtypes.ExceptionDuringOperationExecution)
		return resp
	}
	if out.Response == nil {
		resp.Set(destination, benchtypes.ExceptionDuringOperationExecution)
		return resp
	}
	return *out.Response
}

func (c *Connector) workerClient(workerIndex int) (bus.BusClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.workerConns[workerIndex]; ok {
		return client, nil
	}

	addr := c.workerPort(workerIndex)
	conn, err := bus.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("agent: dial worker %d at %s: %w", workerIndex, addr, err)
	}
	client := bus.NewBusClient(conn)
	c.workerConns[workerIndex] = client
	return client, nil
}

// relayPerfSample forwards a Worker's ReportPerfSample straight upstream to
// the Coordinator's Performance Stats Container; it is best-effort and makes
// a single attempt, like ReportFailure, but nothing retains a dropped sample
// since another one follows shortly on the next tick.
func (c *Connector) relayPerfSample(ctx context.Context, op benchtypes.Operation) benchtypes.Response {
	resp := benchtypes.NewResponse()

	client, err := c.upstreamClient()
	if err != nil {
		log.Logger.Debug().Err(err).Msg("agent: failed to dial coordinator for perf sample relay")
		resp.Set(c.publicAddress, benchtypes.ExceptionDuringOperationExecution)
		return resp
	}

	envelope := bus.NewOperationEnvelope(c.publicAddress, "coordinator", op)
	if _, err := client.Dispatch(ctx, envelope); err != nil {
		log.Logger.Debug().Err(err).Msg("agent: best-effort perf sample relay failed")
		resp.Set(c.publicAddress, benchtypes.ExceptionDuringOperationExecution)
		return resp
	}

	resp.Set(c.publicAddress, benchtypes.Success)
	return resp
}

// ReportFailure delivers a FailureOperation upstream to the Coordinator,
// dialing and caching the connection on first use. Returns false (without
// error) if delivery did not succeed, so the FailureMonitor can retain the
// triggering artifact.
func (c *Connector) ReportFailure(ctx context.Context, failure benchtypes.FailureOperation) bool {
	client, err := c.upstreamClient()
	if err != nil {
		log.Logger.Warn().Err(err).Msg("agent: failed to dial coordinator for failure report")
		return false
	}

	op := benchtypes.Operation{Kind: benchtypes.OpFailure, Failure: &failure}
	envelope := bus.NewOperationEnvelope(c.publicAddress, "coordinator", op)

	out, err := client.Dispatch(ctx, envelope)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("agent: failure report dispatch failed")
		return false
	}
	return out.Response != nil && out.Response.AllSuccess()
}

func (c *Connector) upstreamClient() (bus.BusClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.upstream != nil {
		return c.upstream, nil
	}

	conn, err := bus.Dial(c.upstreamAddr, c.upstreamCred)
	if err != nil {
		return nil, err
	}
	c.upstream = bus.NewBusClient(conn)
	return c.upstream, nil
}
