package race

import (
	"github.com/zeusync/racer/internal/core/physics"
	"github.com/zeusync/racer/internal/level"
	"github.com/zeusync/racer/internal/race/events"
)

// Pylon is a light traffic cone. A hit by the car arms a short window during
// which every contact it makes is reported as a bump.
type Pylon struct {
	Name string

	body        *physics.Body
	notify      *notifier
	window      float64
	kicked      float64
	unsubscribe func()
}

func (p *Pylon) Body() *physics.Body { return p.body }

func (p *Pylon) Kicked() bool { return p.kicked > 0 }

func (p *Pylon) onCollide(e physics.CollideEvent) {
	if e.MaterialName() == level.CarMaterial {
		p.kicked = p.window
	}
	if p.kicked > 0 {
		p.notify.publish(events.Bump, events.BumpHit{Pylon: p.Name})
	}
}

func (p *Pylon) Tick(dt float64) {
	if p.kicked <= 0 {
		return
	}
	p.kicked -= dt
	if p.kicked < 0 {
		p.kicked = 0
	}
}

func (p *Pylon) release() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}
