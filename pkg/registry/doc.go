// Package registry is the Coordinator's single in-memory store of cluster
// membership: which agents have connected, which workers they host, and
// which tests are currently assigned. It has no durable backing store —
// the Coordinator holds authoritative state only for the lifetime of one
// run — and guards everything behind one mutex, the way pkg/manager's FSM
// guarded cluster state behind one lock before every mutation went through
// a consensus log.
package registry
