// Package perfstats keeps a bounded history of the benchtypes.PerfSample
// values reported for each running TestCase and periodically republishes the
// newest one as
// pkg/metrics gauges, the way pkg/manager's MetricsCollector snapshots
// manager state into Prometheus on a ticker.
package perfstats
