package race

import (
	"github.com/zeusync/racer/internal/core/physics"
	"github.com/zeusync/racer/internal/level"
	"github.com/zeusync/racer/internal/race/events"
)

// SurfaceClassifier tracks which ground material the car is on. Contacts are
// gathered during a physics step and resolved once after it.
type SurfaceClassifier struct {
	notify  *notifier
	current string
	watched map[*physics.Body]struct{}
	touched []string
}

func NewSurfaceClassifier(initial string, n *notifier) *SurfaceClassifier {
	return &SurfaceClassifier{
		notify:  n,
		current: initial,
		watched: make(map[*physics.Body]struct{}),
	}
}

// Watch marks bodies whose contacts count: the chassis and its detector.
func (c *SurfaceClassifier) Watch(bodies ...*physics.Body) {
	for _, b := range bodies {
		c.watched[b] = struct{}{}
	}
}

// Observe is registered as the collide listener of ground colliders, so
// e.Target is the ground and e.Body the other party.
func (c *SurfaceClassifier) Observe(e physics.CollideEvent) {
	if _, ok := c.watched[e.Body]; !ok {
		return
	}
	if e.Target == nil || e.Target.Material == nil {
		return
	}
	name := e.Target.Material.Name
	for _, t := range c.touched {
		if t == name {
			return
		}
	}
	c.touched = append(c.touched, name)
}

// Resolve settles the contacts of the last step and reports whether the
// surface changed.
func (c *SurfaceClassifier) Resolve() bool {
	if len(c.touched) == 0 {
		return false
	}
	touched := c.touched
	c.touched = c.touched[:0]

	next := touched[0]
	for _, t := range touched {
		if t == c.current {
			return false
		}
		if t == level.RoadMaterial {
			next = t
		}
	}
	c.current = next
	c.notify.publish(events.SurfaceChanged, events.Surface{Material: next})
	return true
}

// Reset sets the surface without notifying and drops pending contacts.
func (c *SurfaceClassifier) Reset(material string) {
	c.current = material
	c.touched = c.touched[:0]
}

func (c *SurfaceClassifier) Current() string { return c.current }
