package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/log"
)

// entry is the Worker's bookkeeping for one InitTest'd TestCase.
type entry struct {
	workload Workload
	cancel   context.CancelFunc
	done     chan struct{}
}

// Worker drives a single registered Workload through whichever phases the
// Coordinator commands, via its own loopback Bus server. It never dials out
// except to stream performance samples to its owning Agent during RUN.
type Worker struct {
	address     string
	home        string
	artifacts   *ArtifactWriter
	registry    *Registry
	agentClient bus.BusClient

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a Worker identified by address (e.g. "A1.W0"), rooted at
// homeDir, resolving TestCase "class" properties against registry.
// agentClient may be nil if this Worker does not stream performance
// samples (e.g. in tests).
func New(address, homeDir string, registry *Registry, agentClient bus.BusClient) *Worker {
	return &Worker{
		address:     address,
		home:        homeDir,
		artifacts:   NewArtifactWriter(homeDir),
		registry:    registry,
		agentClient: agentClient,
		entries:     make(map[string]*entry),
	}
}

// Dispatch implements bus.BusServer. Every call refreshes the heartbeat
// file, per "Workers refresh lastSeen whenever they process an incoming
// operation."
func (w *Worker) Dispatch(ctx context.Context, in *bus.Envelope) (*bus.Envelope, error) {
	if err := w.artifacts.Touch(time.Now()); err != nil {
		log.Logger.Warn().Err(err).Str("worker", w.address).Msg("worker: failed to refresh heartbeat")
	}

	resp := benchtypes.NewResponse()
	status := w.handle(ctx, in)
	resp.Set(w.address, status)
	return in.NewResponseEnvelope(resp), nil
}

func (w *Worker) handle(ctx context.Context, in *bus.Envelope) benchtypes.ResponseType {
	op := in.Operation
	if op == nil {
		return benchtypes.ExceptionDuringOperationExecution
	}

	switch op.Kind {
	case benchtypes.OpInitTestSuite:
		return benchtypes.Success

	case benchtypes.OpInitTest:
		return w.initTest(op.InitTest.TestCase)

	case benchtypes.OpRunPhase:
		return w.runPhase(ctx, op.RunPhase.TestID, op.RunPhase.Phase)

	case benchtypes.OpStopRun:
		return w.stopRun(op.StopRun.TestID)

	case benchtypes.OpGetBenchmarkResults:
		return benchtypes.Success

	default:
		log.Logger.Warn().Str("kind", string(op.Kind)).Msg("worker: unsupported operation kind")
		return benchtypes.ExceptionDuringOperationExecution
	}
}

func (w *Worker) initTest(tc benchtypes.TestCase) benchtypes.ResponseType {
	workload, err := w.registry.Build(tc.WorkloadClass(), tc.Properties)
	if err != nil {
		w.reportException(tc.ID, err)
		return benchtypes.ExceptionDuringOperationExecution
	}

	w.mu.Lock()
	w.entries[tc.ID] = &entry{workload: workload}
	w.mu.Unlock()
	return benchtypes.Success
}

func (w *Worker) runPhase(ctx context.Context, testID string, phase benchtypes.TestPhase) benchtypes.ResponseType {
	e, ok := w.lookup(testID)
	if !ok {
		return benchtypes.FailureWorkerNotFound
	}

	if phase == benchtypes.RunPhase {
		return w.startRun(e, testID)
	}

	fn, ok := phaseMethod(e.workload, phase)
	if !ok {
		return benchtypes.ExceptionDuringOperationExecution
	}

	if err := fn(ctx); err != nil {
		w.reportException(testID, err)
		return benchtypes.ExceptionDuringOperationExecution
	}
	return benchtypes.Success
}

func phaseMethod(wl Workload, phase benchtypes.TestPhase) (func(context.Context) error, bool) {
	switch phase {
	case benchtypes.SetupPhase:
		return wl.Setup, true
	case benchtypes.LocalWarmupPhase:
		return wl.LocalWarmup, true
	case benchtypes.GlobalWarmupPhase:
		return wl.GlobalWarmup, true
	case benchtypes.GlobalVerifyPhase:
		return wl.GlobalVerify, true
	case benchtypes.LocalVerifyPhase:
		return wl.LocalVerify, true
	case benchtypes.GlobalTeardownPhase:
		return wl.GlobalTeardown, true
	case benchtypes.LocalTeardownPhase:
		return wl.LocalTeardown, true
	default:
		return nil, false
	}
}

// startRun launches the workload's Run method in the background and
// acknowledges immediately; RUN's actual completion is observed through the
// StopRun response, per the Coordinator's per-test algorithm.
func (w *Worker) startRun(e *entry, testID string) benchtypes.ResponseType {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.mu.Lock()
	e.cancel = cancel
	e.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		err := e.workload.Run(runCtx, func(opsPerSecond, p50Ms, p99Ms float64) {
			w.reportSample(testID, opsPerSecond, p50Ms, p99Ms)
		})
		if err != nil && runCtx.Err() == nil {
			// Run failed on its own, not because StopRun cancelled it.
			w.reportException(testID, err)
		}
	}()

	return benchtypes.Success
}

func (w *Worker) stopRun(testID string) benchtypes.ResponseType {
	e, ok := w.lookup(testID)
	if !ok {
		return benchtypes.FailureWorkerNotFound
	}

	w.mu.Lock()
	cancel := e.cancel
	done := e.done
	w.mu.Unlock()

	if cancel == nil || done == nil {
		// RUN was never started; treat StopRun as a no-op success per
		// "duration == 0 with no waitForTestCase: skip the Stop step."
		return benchtypes.Success
	}

	cancel()
	<-done
	return benchtypes.Success
}

func (w *Worker) lookup(testID string) (*entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[testID]
	return e, ok
}

func (w *Worker) reportException(testID string, err error) {
	if writeErr := w.artifacts.WriteException(testID, err.Error()); writeErr != nil {
		log.Logger.Error().Err(writeErr).Str("worker", w.address).Msg("worker: failed to write exception artifact")
	}
}

func (w *Worker) reportSample(testID string, opsPerSecond, p50Ms, p99Ms float64) {
	if w.agentClient == nil {
		return
	}
	op := benchtypes.Operation{
		Kind: benchtypes.OpReportPerfSample,
		ReportPerfSample: &benchtypes.PerfSample{
			TestID:              testID,
			OperationsPerSecond: opsPerSecond,
			P50LatencyMs:        p50Ms,
			P99LatencyMs:        p99Ms,
		},
	}
	env := bus.NewOperationEnvelope(w.address, "A", op)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.agentClient.Dispatch(ctx, env); err != nil {
		log.Logger.Debug().Err(err).Str("worker", w.address).Msg("worker: best-effort perf sample report failed")
	}
}

// Address returns this Worker's own SimulatorAddress string form.
func (w *Worker) Address() string {
	return w.address
}
