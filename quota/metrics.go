package quota

// Metrics exposes budget observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// Consumed reports units charged for one call of the given kind.
	Consumed(kind string, units int64)
	// Denied reports an admission refused for the given kind.
	Denied(kind string)
	// Remaining reports the budget left after a state change.
	Remaining(units int64)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Consumed(string, int64) {}
func (NoopMetrics) Denied(string)          {}
func (NoopMetrics) Remaining(int64)        {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
