// Package agent implements the per-host Agent: it launches and supervises
// local Worker child processes (ProcessManager), scans them for failure
// artifacts and unexpected exits (FailureMonitor), and exposes the single
// Bus endpoint (Connector) the Coordinator talks to. The supervision style
// — signal, timed wait, hard kill — and the ticker-driven scanner loop
// follow the teacher's test/framework.Process and its deleted
// pkg/worker/health_monitor.go respectively.
package agent
