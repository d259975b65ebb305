package race

import (
	"github.com/zeusync/racer/internal/core/physics"
	"github.com/zeusync/racer/internal/race/events"
)

type Kind uint8

const (
	KindCheckpoint Kind = iota
	KindFinish
)

func (k Kind) String() string {
	if k == KindFinish {
		return "finish"
	}
	return "checkpoint"
}

type CollectState uint8

const (
	Idle CollectState = iota
	Collected
	Destroyed
)

func (s CollectState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collected:
		return "collected"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Collectible is a trigger volume the car drives through: a gas checkpoint or
// the finish line. It fires at most once.
type Collectible struct {
	Kind  Kind
	Name  string
	Award float64

	body    *physics.Body
	chassis *physics.Body
	notify  *notifier
	state   CollectState

	delay     float64
	remaining float64
	pending   bool

	// finish only
	threshold int
	tally     int
	canFinish func() bool
	onFinish  func()

	onDestroyed func(*Collectible)
	unsubscribe func()
}

func (c *Collectible) ID() string { return c.body.ID.String() }

func (c *Collectible) Body() *physics.Body { return c.body }

func (c *Collectible) State() CollectState { return c.state }

// Tally is the number of checkpoints the finish has seen pass.
func (c *Collectible) Tally() int { return c.tally }

func (c *Collectible) attach(chassis *physics.Body) {
	c.chassis = chassis
	c.unsubscribe = c.body.OnCollide(c.onCollide)
}

func (c *Collectible) onCollide(e physics.CollideEvent) {
	if c.state != Idle || e.Body != c.chassis {
		return
	}
	switch c.Kind {
	case KindCheckpoint:
		c.state = Collected
		c.remaining = c.delay
		c.pending = true
		c.notify.publish(events.CheckpointPassed, c.payload())
	case KindFinish:
		if c.tally < c.threshold || (c.canFinish != nil && !c.canFinish()) {
			return
		}
		c.state = Collected
		if c.onFinish != nil {
			c.onFinish()
		}
	}
}

func (c *Collectible) countCheckpoint(events.Checkpoint) error {
	c.tally++
	return nil
}

// Tick advances the destroy countdown.
func (c *Collectible) Tick(dt float64) {
	if !c.pending {
		return
	}
	c.remaining -= dt
	if c.remaining > 0 {
		return
	}
	c.pending = false
	c.destroy()
}

func (c *Collectible) destroy() {
	if w := c.body.World(); w != nil {
		_ = w.RemoveBody(c.body)
	}
	c.state = Destroyed
	c.release()
	if c.onDestroyed != nil {
		c.onDestroyed(c)
	}
	c.notify.publish(events.CheckpointRemoved, c.payload())
}

// Cancel drops a pending destroy and stops listening for contacts.
func (c *Collectible) Cancel() {
	c.pending = false
	c.release()
}

func (c *Collectible) release() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Collectible) payload() events.Checkpoint {
	return events.Checkpoint{ID: c.ID(), Name: c.Name, FuelAward: c.Award}
}

// Collectibles owns the checkpoints still in play and the finish.
type Collectibles struct {
	items  []*Collectible
	finish *Collectible
}

func (s *Collectibles) add(c *Collectible) {
	c.onDestroyed = s.remove
	s.items = append(s.items, c)
}

func (s *Collectibles) remove(c *Collectible) {
	for i, cur := range s.items {
		if cur == c {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Checkpoints returns the checkpoints not yet destroyed.
func (s *Collectibles) Checkpoints() []*Collectible {
	return append([]*Collectible(nil), s.items...)
}

func (s *Collectibles) Finish() *Collectible { return s.finish }

func (s *Collectibles) Lookup(name string) (*Collectible, bool) {
	for _, c := range s.items {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (s *Collectibles) Tick(dt float64) {
	for _, c := range append([]*Collectible(nil), s.items...) {
		c.Tick(dt)
	}
}

func (s *Collectibles) Cancel() {
	for _, c := range s.items {
		c.Cancel()
	}
	if s.finish != nil {
		s.finish.Cancel()
	}
}
