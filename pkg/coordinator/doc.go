// Package coordinator is the Coordinator Test-Suite Engine: it partitions a
// TestSuite's TestCases across the Workers known to the Component Registry,
// drives one testrunner.TestCaseRunner per test (sequentially or in
// parallel), and synchronizes early phases across tests via a barrier up to
// the suite's configured LastTestPhaseToSync. Modeled on the teacher's
// pkg/manager.Manager (top-level lifecycle owner wiring its subsystems) and
// pkg/scheduler.Scheduler (periodic, best-effort per-unit-of-work loop).
package coordinator
