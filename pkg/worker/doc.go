// Package worker implements the Worker child process: it executes a named
// workload's lifecycle methods as the Coordinator steps a TestCase through
// its phases, and reports status the way the teacher's pkg/worker composed
// a lifecycle owner out of small single-purpose handlers. Workers receive
// commands over a loopback Bus server (internal/bus) but report failures to
// their Agent purely through file artifacts dropped in their home
// directory — a Worker never dials out except to stream performance
// samples during RUN.
package worker
