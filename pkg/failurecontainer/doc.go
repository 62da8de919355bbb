// Package failurecontainer is the Coordinator's append-only log of
// benchtypes.FailureOperation reports. It tracks the derived set of
// finished worker addresses, answers whether any critical (non-tolerable)
// failure has been recorded, and fans failures out to listeners on a
// dedicated goroutine — built on pkg/events so a slow listener never holds
// the container's own lock.
package failurecontainer
