// Package log provides the structured zerolog logger shared by the
// Coordinator, Agent and Worker binaries: a single global Logger configured
// once via Init, plus WithComponent/WithAgentID/WithWorkerID/WithTestID
// helpers for attaching routing context to a line without threading a
// logger through every call.
package log
