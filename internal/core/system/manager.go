package system

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrNilSystem       = errors.New("system: nil system")
	ErrDuplicateSystem = errors.New("system: already registered")
	ErrSystemNotFound  = errors.New("system: not found")
)

type entry struct {
	system  System
	enabled bool
	seq     int
	metrics Metrics
}

// Manager orchestrates the systems of one simulation.
// It is not safe for concurrent use; the game loop goroutine owns it.
type Manager struct {
	entries  []*entry
	seq      int
	recorder Recorder
	onError  []func(string, error)
}

type Option func(*Manager)

// WithRecorder reports every update to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Register(s System) error {
	if s == nil {
		return ErrNilSystem
	}
	if m.find(s.Name()) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateSystem, s.Name())
	}
	m.seq++
	m.entries = append(m.entries, &entry{system: s, enabled: true, seq: m.seq})
	sort.SliceStable(m.entries, func(i, j int) bool {
		a, b := m.entries[i], m.entries[j]
		if a.system.Priority() != b.system.Priority() {
			return a.system.Priority() > b.system.Priority()
		}
		return a.seq < b.seq
	})
	return nil
}

func (m *Manager) Unregister(name string) error {
	for i, e := range m.entries {
		if e.system.Name() == name {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSystemNotFound, name)
}

func (m *Manager) Get(name string) (System, bool) {
	if e := m.find(name); e != nil {
		return e.system, true
	}
	return nil, false
}

func (m *Manager) Has(name string) bool { return m.find(name) != nil }

func (m *Manager) Enable(name string) error  { return m.setEnabled(name, true) }
func (m *Manager) Disable(name string) error { return m.setEnabled(name, false) }

// ExecutionOrder returns system names in the order Update runs them.
func (m *Manager) ExecutionOrder() []string {
	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		names = append(names, e.system.Name())
	}
	return names
}

func (m *Manager) SystemMetrics(name string) (Metrics, bool) {
	if e := m.find(name); e != nil {
		return e.metrics, true
	}
	return Metrics{}, false
}

// OnSystemError registers a callback invoked for every failed update.
func (m *Manager) OnSystemError(fn func(name string, err error)) {
	m.onError = append(m.onError, fn)
}

// Update runs every enabled system once. A failing system does not stop the
// frame; all errors are joined into the result.
func (m *Manager) Update(deltaTime float64) error {
	var all error
	// systems may be registered from inside an update; iterate a snapshot
	entries := append([]*entry(nil), m.entries...)
	for _, e := range entries {
		if !e.enabled {
			continue
		}
		start := time.Now()
		err := e.system.Update(deltaTime)
		took := time.Since(start)

		e.metrics.ExecutionCount++
		e.metrics.TotalExecutionTime += took
		e.metrics.AverageExecutionTime = e.metrics.TotalExecutionTime / time.Duration(e.metrics.ExecutionCount)
		if took > e.metrics.MaxExecutionTime {
			e.metrics.MaxExecutionTime = took
		}
		e.metrics.LastExecutionTime = start
		if m.recorder != nil {
			m.recorder.ObserveUpdate(e.system.Name(), took, err)
		}
		if err != nil {
			e.metrics.ErrorCount++
			e.metrics.LastError = err
			for _, fn := range m.onError {
				fn(e.system.Name(), err)
			}
			all = errors.Join(all, fmt.Errorf("%s: %w", e.system.Name(), err))
		}
	}
	return all
}

func (m *Manager) find(name string) *entry {
	for _, e := range m.entries {
		if e.system.Name() == name {
			return e
		}
	}
	return nil
}

func (m *Manager) setEnabled(name string, enabled bool) error {
	e := m.find(name)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrSystemNotFound, name)
	}
	e.enabled = enabled
	return nil
}
