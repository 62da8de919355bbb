/*
Package benchtypes holds the domain data model shared by the Coordinator,
Agent and Worker: TestPhase, TestCase, TestSuite, FailureKind,
FailureOperation, the Command/Operation and Response envelopes, and the
Component Registry's row types (AgentData, WorkerData, TestData).

These are plain values with no transport concerns; internal/bus carries them
over the wire by marshaling to JSON, the same way the teacher keeps its
domain types (pkg/types) free of anything api/proto-specific.
*/
package benchtypes
