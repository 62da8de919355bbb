package worker

import "context"

// Workload is the user-supplied test payload a TestCase names via its
// "class" property. Each method corresponds to one TestPhase; Run blocks
// until stopped (via context cancellation) reporting periodic samples
// through report, or returns on its own if it is a self-terminating
// workload.
type Workload interface {
	Setup(ctx context.Context) error
	LocalWarmup(ctx context.Context) error
	GlobalWarmup(ctx context.Context) error
	Run(ctx context.Context, report func(opsPerSecond, p50Ms, p99Ms float64)) error
	GlobalVerify(ctx context.Context) error
	LocalVerify(ctx context.Context) error
	GlobalTeardown(ctx context.Context) error
	LocalTeardown(ctx context.Context) error
}

// Factory constructs a fresh Workload instance for one TestCase, given its
// properties (at minimum "class", already used to select the Factory).
type Factory func(properties map[string]string) (Workload, error)

// Registry is the Worker process's lookup from a TestCase's "class"
// property to the Factory that builds it.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory under class, replacing any previous registration.
func (r *Registry) Register(class string, factory Factory) {
	r.factories[class] = factory
}

// Build constructs the Workload registered for class, or an error if no
// Factory is registered under that name.
func (r *Registry) Build(class string, properties map[string]string) (Workload, error) {
	factory, ok := r.factories[class]
	if !ok {
		return nil, &UnknownWorkloadError{Class: class}
	}
	return factory(properties)
}

// UnknownWorkloadError reports a TestCase naming a "class" with no
// registered Factory.
type UnknownWorkloadError struct {
	Class string
}

func (e *UnknownWorkloadError) Error() string {
	return "worker: no workload registered for class " + e.Class
}
