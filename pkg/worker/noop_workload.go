package worker

import (
	"context"
	"time"
)

// NoopWorkload is a minimal built-in Workload: every fixed-duration phase
// succeeds instantly and Run reports one synthetic sample per tick until
// cancelled. It exists so a suite descriptor can exercise the full phase
// machinery without a real data-grid workload wired in.
type NoopWorkload struct {
	tickInterval time.Duration
}

// NewNoopWorkload is a Factory for NoopWorkload; it ignores properties.
func NewNoopWorkload(map[string]string) (Workload, error) {
	return &NoopWorkload{tickInterval: 200 * time.Millisecond}, nil
}

func (w *NoopWorkload) Setup(context.Context) error          { return nil }
func (w *NoopWorkload) LocalWarmup(context.Context) error    { return nil }
func (w *NoopWorkload) GlobalWarmup(context.Context) error   { return nil }
func (w *NoopWorkload) GlobalVerify(context.Context) error   { return nil }
func (w *NoopWorkload) LocalVerify(context.Context) error    { return nil }
func (w *NoopWorkload) GlobalTeardown(context.Context) error { return nil }
func (w *NoopWorkload) LocalTeardown(context.Context) error  { return nil }

// Run reports a constant synthetic sample on tickInterval until ctx is
// cancelled.
func (w *NoopWorkload) Run(ctx context.Context, report func(opsPerSecond, p50Ms, p99Ms float64)) error {
	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report(1000, 1, 5)
		}
	}
}
