package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/warrenbench/pkg/address"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/failurecontainer"
	"github.com/cuemby/warrenbench/pkg/log"
	"github.com/cuemby/warrenbench/pkg/metrics"
	"github.com/cuemby/warrenbench/pkg/registry"
	"github.com/cuemby/warrenbench/pkg/testrunner"
)

// Broadcaster is the subset of remoteclient.Connector the Coordinator and
// the TestCaseRunners it owns need.
type Broadcaster interface {
	testrunner.Broadcaster
	InitTestSuite(ctx context.Context, suite benchtypes.TestSuite) error
	TerminateWorkers(ctx context.Context, wait bool, container *failurecontainer.Container, expectedWorkerCount int, shutdownTimeout time.Duration) error
}

// TestResult is the outcome of driving one TestCase through every phase.
type TestResult struct {
	TestID string
	Failed bool
	Err    error
}

// SuiteResult is the outcome of RunTestSuite.
type SuiteResult struct {
	Results []TestResult
	Aborted bool
}

// AnyFailed reports whether any test in the suite was marked failed.
func (r *SuiteResult) AnyFailed() bool {
	for _, res := range r.Results {
		if res.Failed {
			return true
		}
	}
	return false
}

// Coordinator is the top-level test-suite engine: it owns the Component
// Registry, the Remote Client, the Failure Container and builds one
// TestCaseRunner per TestCase, scheduling them sequentially or in parallel
// per spec.
type Coordinator struct {
	reg      *registry.Registry
	conn     Broadcaster
	failures *failurecontainer.Container
}

// New creates a Coordinator wired to its subsystems.
func New(reg *registry.Registry, conn Broadcaster, failures *failurecontainer.Container) *Coordinator {
	return &Coordinator{reg: reg, conn: conn, failures: failures}
}

// RunTestSuite drives every TestCase in suite through every phase and
// terminates Workers at the end. It fails fast with a CoordinatorError if
// prerequisites (at least one Agent, at least one Worker) are unmet.
func (c *Coordinator) RunTestSuite(ctx context.Context, suite benchtypes.TestSuite) (*SuiteResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TestSuiteDuration)

	if c.reg.AgentCount() == 0 {
		return nil, &CoordinatorError{Op: "prerequisites", Err: fmt.Errorf("no agents registered")}
	}
	workers := c.workerAddresses()
	if len(workers) == 0 {
		return nil, &CoordinatorError{Op: "prerequisites", Err: fmt.Errorf("no workers registered")}
	}

	if err := c.conn.InitTestSuite(ctx, suite); err != nil {
		return nil, &CoordinatorError{Op: "initTestSuite", Err: err}
	}

	firstWorker := workers[0]
	abort, runCtx := newAbortSignal(ctx)
	defer abort.cancel()

	var result *SuiteResult
	if suite.IsParallelEligible() {
		result = c.runParallel(runCtx, suite, workers, firstWorker, abort)
	} else {
		result = c.runSequential(runCtx, suite, workers, firstWorker, abort)
	}
	result.Aborted = abort.isTriggered()

	shutdownTimeout := time.Duration(suite.WaitForWorkerShutdownTimeoutSeconds) * time.Second
	if err := c.conn.TerminateWorkers(ctx, true, c.failures, len(workers), shutdownTimeout); err != nil {
		log.Logger.Warn().Err(err).Str("suiteId", suite.ID).Msg("coordinator: terminate workers at suite end did not fully complete")
	}

	return result, nil
}

// runSequential runs tests one at a time, in declared order, terminating
// Workers between tests after a failed test or when refreshJvm is set (see
// restartWorkers; replacement Workers are not launched).
func (c *Coordinator) runSequential(ctx context.Context, suite benchtypes.TestSuite, workers []address.Simulator, firstWorker address.Simulator, abort *abortSignal) *SuiteResult {
	results := make([]TestResult, 0, len(suite.Tests))
	barriers := map[benchtypes.TestPhase]*phaseBarrier{}

	for idx, tc := range suite.Tests {
		if abort.isTriggered() {
			log.Logger.Warn().Str("testId", tc.ID).Msg("coordinator: skipping test, failFast aborted the suite")
			continue
		}

		runner := testrunner.New(c.conn, idx, tc, suite, workers, firstWorker)
		res := c.runTest(ctx, runner, suite, barriers, abort)
		results = append(results, res)

		if res.Failed || suite.RefreshJVM {
			c.restartWorkers(ctx, suite, workers)
		}
	}

	return &SuiteResult{Results: results}
}

// runParallel runs every test concurrently, synchronizing early phases via
// a barrier shared across all tests. A test not yet launched when abort
// triggers is skipped rather than spawned; one already running observes
// ctx canceled (via abort.trigger's cancel) at its next barrier wait or
// Broadcast call and returns early instead of running to completion.
func (c *Coordinator) runParallel(ctx context.Context, suite benchtypes.TestSuite, workers []address.Simulator, firstWorker address.Simulator, abort *abortSignal) *SuiteResult {
	barriers := c.buildBarriers(suite, len(suite.Tests))

	results := make([]TestResult, len(suite.Tests))
	var wg sync.WaitGroup
	for idx, tc := range suite.Tests {
		if abort.isTriggered() {
			log.Logger.Warn().Str("testId", tc.ID).Msg("coordinator: skipping test, failFast aborted the suite")
			results[idx] = TestResult{TestID: tc.ID, Failed: true, Err: &CoordinatorError{Op: "parallel dispatch", Err: fmt.Errorf("skipped: failFast aborted the suite")}}
			continue
		}
		wg.Add(1)
		go func(idx int, tc benchtypes.TestCase) {
			defer wg.Done()
			runner := testrunner.New(c.conn, idx, tc, suite, workers, firstWorker)
			results[idx] = c.runTest(ctx, runner, suite, barriers, abort)
		}(idx, tc)
	}
	wg.Wait()

	return &SuiteResult{Results: results}
}

// buildBarriers installs one barrier per phase up to and including
// lastTestPhaseToSync, with an initial count of activeTests; phases after
// that point get a zero-count (pre-released) barrier.
func (c *Coordinator) buildBarriers(suite benchtypes.TestSuite, activeTests int) map[benchtypes.TestPhase]*phaseBarrier {
	barriers := make(map[benchtypes.TestPhase]*phaseBarrier, len(benchtypes.Phases))
	for _, phase := range benchtypes.Phases {
		if phase.Before(suite.LastTestPhaseToSync) || phase == suite.LastTestPhaseToSync {
			barriers[phase] = newPhaseBarrier(activeTests)
		} else {
			barriers[phase] = newPhaseBarrier(0)
		}
	}
	return barriers
}

// runTest drives a single TestCaseRunner through every phase, per spec
// §4.1's per-test algorithm.
func (c *Coordinator) runTest(ctx context.Context, runner *testrunner.TestCaseRunner, suite benchtypes.TestSuite, barriers map[benchtypes.TestPhase]*phaseBarrier, abort *abortSignal) TestResult {
	testID := suite.Tests[runner.TestIdx()].ID
	failed := false

	for _, phase := range benchtypes.Phases {
		if (phase == benchtypes.GlobalVerifyPhase || phase == benchtypes.LocalVerifyPhase) && !suite.VerifyEnabled {
			continue
		}

		if b, ok := barriers[phase]; ok {
			if err := b.ArriveAndWait(ctx); err != nil {
				return TestResult{TestID: testID, Failed: true, Err: &CoordinatorError{Op: "phase " + phase.String() + " barrier", Err: err}}
			}
		}

		if phase == benchtypes.RunPhase {
			if err := runner.InitTest(ctx); err != nil {
				log.Logger.Error().Err(err).Str("testId", testID).Msg("coordinator: initTest failed, aborting this test")
				cerr := &CoordinatorError{Op: "initTest", Err: err}
				if suite.FailFast {
					abort.trigger()
				}
				return TestResult{TestID: testID, Failed: true, Err: cerr}
			}
		}

		timer := metrics.NewTimer()
		metrics.PhasesStarted.WithLabelValues(phase.String()).Inc()
		err := runner.RunPhase(ctx, phase)
		timer.ObserveDurationVec(metrics.PhaseDuration, phase.String())

		if err != nil {
			log.Logger.Error().Err(err).Str("testId", testID).Str("phase", phase.String()).Msg("coordinator: phase step failed, aborting this test")
			cerr := &CoordinatorError{Op: "phase " + phase.String(), Err: err}
			if suite.FailFast {
				abort.trigger()
			}
			return TestResult{TestID: testID, Failed: true, Err: cerr}
		}
		metrics.PhasesCompleted.WithLabelValues(phase.String()).Inc()

		if phase == benchtypes.RunPhase {
			if _, ferr := runner.FetchResults(ctx); ferr != nil {
				log.Logger.Warn().Err(ferr).Str("testId", testID).Msg("coordinator: fetching benchmark results timed out, continuing best-effort")
			}
		}

		if c.failures.HasCriticalFailure(suite.TolerableSet()) {
			failed = true
			if suite.FailFast {
				abort.trigger()
			}
		}
	}

	return TestResult{TestID: testID, Failed: failed}
}

// restartWorkers terminates every Worker between sequential tests when a
// critical failure occurred or refreshJvm is set. Relaunching replacement
// Workers is an Agent-local, externally-provisioned concern (spec.md §1's
// "SSH provisioning of remote Agent hosts and binary distribution" is out
// of scope) — this only performs the terminate half.
func (c *Coordinator) restartWorkers(ctx context.Context, suite benchtypes.TestSuite, workers []address.Simulator) {
	shutdownTimeout := time.Duration(suite.WaitForWorkerShutdownTimeoutSeconds) * time.Second
	if err := c.conn.TerminateWorkers(ctx, true, c.failures, len(workers), shutdownTimeout); err != nil {
		log.Logger.Warn().Err(err).Str("suiteId", suite.ID).Msg("coordinator: worker restart between tests did not fully complete")
	}
}

// workerAddresses returns every registered Worker's address, ordered by
// (agentIndex, workerIndex) — the "first worker" tie-break is simply the
// first element of this slice.
func (c *Coordinator) workerAddresses() []address.Simulator {
	workers := c.reg.Workers()
	sort.Slice(workers, func(i, j int) bool {
		if workers[i].AgentAddressIndex != workers[j].AgentAddressIndex {
			return workers[i].AgentAddressIndex < workers[j].AgentAddressIndex
		}
		return workers[i].WorkerIndex < workers[j].WorkerIndex
	})
	out := make([]address.Simulator, len(workers))
	for i, w := range workers {
		out[i] = address.NewWorkerAddress(w.AgentAddressIndex, w.WorkerIndex)
	}
	return out
}
