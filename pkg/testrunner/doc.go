// Package testrunner drives a single benchtypes.TestCase through its fixed
// eight-phase lifecycle across the Workers that host it, the per-test half
// of the Coordinator Test-Suite Engine. The Coordinator owns scheduling
// across multiple TestCaseRunners (sequential or parallel); a runner only
// ever knows about its own test, the way the teacher's scheduler.go drives
// one reconciliation pass without knowing about sibling services.
package testrunner
