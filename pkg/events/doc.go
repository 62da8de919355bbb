// Package events implements a small in-memory publish/subscribe broker. The
// Failure Container (pkg/failurecontainer) uses it to dispatch its
// addListener callbacks off a dedicated goroutine so a slow listener never
// holds the container's lock while other components read it.
package events
