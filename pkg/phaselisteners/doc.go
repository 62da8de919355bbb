// Package phaselisteners maps a running TestCase's index within its suite to
// the callbacks that should fire when a phase completes or a failure
// arrives for it, the way pkg/events keys a registration by an integer and
// invokes it on arrival. Dispatching to an index with no registration is
// logged and returns false rather than panicking. The Coordinator's inbound dispatch does
// not consult this registry: phase results come back as Broadcast responses,
// and no production code registers or looks up listeners here.
package phaselisteners
