// Package remoteclient is the Coordinator-side façade over the Bus: it
// turns "broadcast an operation to a set of Worker addresses and wait for a
// Response from each" into a single blocking call, the way the teacher's
// pkg/client wrapped one gRPC method per call behind context.WithTimeout.
// Callers never dial the Bus directly; they hold a *Connector instead.
package remoteclient
