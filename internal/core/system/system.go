package system

import "time"

// System represents one per-frame game logic processor.
type System interface {
	Name() string
	Priority() Priority
	Update(deltaTime float64) error
}

// Priority defines execution order. Higher priorities run first; systems of
// equal priority run in registration order.
type Priority uint16

// System priorities
const (
	PriorityLowest  Priority = 200
	PriorityLow     Priority = 500
	PriorityNormal  Priority = 600
	PriorityHigh    Priority = 1000
	PriorityHighest Priority = 1300
)

// Func adapts a plain function to the System interface.
type Func struct {
	name     string
	priority Priority
	fn       func(deltaTime float64) error
}

func NewFunc(name string, priority Priority, fn func(deltaTime float64) error) *Func {
	return &Func{name: name, priority: priority, fn: fn}
}

func (f *Func) Name() string                   { return f.name }
func (f *Func) Priority() Priority             { return f.priority }
func (f *Func) Update(deltaTime float64) error { return f.fn(deltaTime) }

// Recorder receives the outcome of each system update, e.g. for prometheus.
type Recorder interface {
	ObserveUpdate(name string, took time.Duration, err error)
}

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}
