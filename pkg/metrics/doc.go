// Package metrics registers the Prometheus collectors shared by the
// Coordinator, Agent and Worker: counters for phase transitions and
// failures, gauges for registry population and the latest performance
// samples, plus an HTTP handler for scraping and a small health/readiness
// surface used by process supervisors.
package metrics
