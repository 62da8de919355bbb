package testrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/warrenbench/pkg/address"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/log"
)

// Broadcaster is the subset of remoteclient.Connector a TestCaseRunner
// needs; declared as an interface here so tests can exercise the runner
// without a real Bus.
type Broadcaster interface {
	Broadcast(ctx context.Context, op benchtypes.Operation, targets []address.Simulator) (benchtypes.Response, error)
	SendToFirstWorker(ctx context.Context, firstWorker address.Simulator, op benchtypes.Operation) (benchtypes.Response, error)
}

// TestCaseRunner drives one TestCase's TestIdx through SetupPhase ..
// LocalTeardownPhase on the Workers assigned to host it.
type TestCaseRunner struct {
	conn    Broadcaster
	testIdx int
	test    benchtypes.TestCase
	suite   benchtypes.TestSuite

	workers     []address.Simulator
	firstWorker address.Simulator

	sleep func(context.Context, time.Duration) error
}

// New builds a TestCaseRunner for test, running on workers (the full set
// hosting it); firstWorker designates the Worker that executes GLOBAL_*
// phases, per spec "runs on the first Worker only".
func New(conn Broadcaster, testIdx int, test benchtypes.TestCase, suite benchtypes.TestSuite, workers []address.Simulator, firstWorker address.Simulator) *TestCaseRunner {
	return &TestCaseRunner{
		conn:        conn,
		testIdx:     testIdx,
		test:        test,
		suite:       suite,
		workers:     workers,
		firstWorker: firstWorker,
		sleep:       sleepWithContext,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InitTest sends InitTest to every Worker hosting this test.
func (r *TestCaseRunner) InitTest(ctx context.Context) error {
	op := benchtypes.Operation{Kind: benchtypes.OpInitTest, InitTest: &benchtypes.InitTestPayload{TestCase: r.test}}
	resp, err := r.conn.Broadcast(ctx, op, r.workers)
	if err != nil {
		return fmt.Errorf("testrunner: init test %s: %w", r.test.ID, err)
	}
	return firstErrorOrNil("init test "+r.test.ID, resp)
}

// RunPhase drives phase to completion. Non-RUN phases block on every
// targeted Worker's response; RUN acknowledges the phase started, sleeps
// for the suite's configured duration (or until unblocked early via ctx),
// then issues StopRun and blocks for its completion response — StopRun's
// response, not RunPhase(RUN)'s, is what observes RUN's actual end, so the
// "never issue phase P+1 before every P response is observed" ordering
// guarantee still holds across the RUN/StopRun pair.
func (r *TestCaseRunner) RunPhase(ctx context.Context, phase benchtypes.TestPhase) error {
	if phase == benchtypes.RunPhase {
		return r.runAndStop(ctx)
	}

	targets := r.workers
	if phase.IsGlobal() {
		targets = []address.Simulator{r.firstWorker}
	}

	op := benchtypes.Operation{Kind: benchtypes.OpRunPhase, RunPhase: &benchtypes.RunPhasePayload{TestID: r.test.ID, Phase: phase}}
	resp, err := r.conn.Broadcast(ctx, op, targets)
	if err != nil {
		return fmt.Errorf("testrunner: phase %s on test %s: %w", phase, r.test.ID, err)
	}
	return firstErrorOrNil(fmt.Sprintf("phase %s on test %s", phase, r.test.ID), resp)
}

func (r *TestCaseRunner) runAndStop(ctx context.Context) error {
	op := benchtypes.Operation{Kind: benchtypes.OpRunPhase, RunPhase: &benchtypes.RunPhasePayload{TestID: r.test.ID, Phase: benchtypes.RunPhase}}
	ackResp, err := r.conn.Broadcast(ctx, op, r.workers)
	if err != nil {
		return fmt.Errorf("testrunner: starting RUN on test %s: %w", r.test.ID, err)
	}
	if err := firstErrorOrNil("starting RUN on test "+r.test.ID, ackResp); err != nil {
		return err
	}

	if r.suite.DurationSeconds > 0 || r.suite.WaitForTestCase {
		if err := r.sleep(ctx, time.Duration(r.suite.DurationSeconds)*time.Second); err != nil {
			log.Logger.Debug().Err(err).Str("testId", r.test.ID).Msg("testrunner: RUN sleep interrupted")
		}
	} else {
		// duration == 0 with no waitForTestCase: skip the Stop step entirely.
		return nil
	}

	stopOp := benchtypes.Operation{Kind: benchtypes.OpStopRun, StopRun: &benchtypes.StopRunPayload{TestID: r.test.ID}}
	stopResp, err := r.conn.Broadcast(ctx, stopOp, r.workers)
	if err != nil {
		return fmt.Errorf("testrunner: stopping RUN on test %s: %w", r.test.ID, err)
	}
	return firstErrorOrNil("stopping RUN on test "+r.test.ID, stopResp)
}

// RunAllPhases drives the test through every phase in declared order,
// stopping at the first failing phase.
func (r *TestCaseRunner) RunAllPhases(ctx context.Context) error {
	if err := r.InitTest(ctx); err != nil {
		return err
	}
	for _, phase := range benchtypes.Phases {
		if err := r.RunPhase(ctx, phase); err != nil {
			return err
		}
	}
	return nil
}

// FetchResults requests aggregated benchmark results from the first Worker.
func (r *TestCaseRunner) FetchResults(ctx context.Context) (benchtypes.Response, error) {
	op := benchtypes.Operation{Kind: benchtypes.OpGetBenchmarkResults, GetBenchmarkResults: &benchtypes.GetBenchmarkResultsPayload{TestID: r.test.ID}}
	return r.conn.SendToFirstWorker(ctx, r.firstWorker, op)
}

// TestIdx returns this runner's position within its TestSuite.
func (r *TestCaseRunner) TestIdx() int {
	return r.testIdx
}

// firstErrorOrNil reports the first genuine failure in resp, or nil if
// every target either succeeded or reported FAILURE_WORKER_NOT_FOUND. A
// Worker that has already exited by the time a phase command reaches it is
// not a failure to report: the phase is considered complete for that
// Worker (absence = done), since there is nothing left to run it on.
func firstErrorOrNil(what string, resp benchtypes.Response) error {
	for target, status := range resp.PerTargetStatus {
		if status == benchtypes.Success || status == benchtypes.FailureWorkerNotFound {
			continue
		}
		return fmt.Errorf("testrunner: %s: %s reported %s", what, target, status)
	}
	return nil
}
