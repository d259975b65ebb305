package physics

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrBodyInWorld    = errors.New("physics: body already belongs to a world")
	ErrBodyNotInWorld = errors.New("physics: body not in this world")
	ErrNilBody        = errors.New("physics: nil body")
)

// DefaultGravity is earth gravity along -Y.
var DefaultGravity = mgl64.Vec3{0, -9.82, 0}

type stepListener struct {
	fn     func(dt float64)
	active bool
}

// World steps a set of bodies with a fixed timestep.
// It is not safe for concurrent use.
type World struct {
	Gravity mgl64.Vec3

	bodies      []*Body
	pending     []*Body
	stepping    bool
	accumulator float64
	time        float64
	steps       uint64

	preStep  []*stepListener
	postStep []*stepListener
	contacts []contact
}

func NewWorld() *World {
	return &World{Gravity: DefaultGravity}
}

func (w *World) AddBody(b *Body) error {
	if b == nil {
		return ErrNilBody
	}
	if b.world != nil {
		return ErrBodyInWorld
	}
	b.world = w
	w.bodies = append(w.bodies, b)
	return nil
}

// RemoveBody detaches b. Removals requested from inside a step take effect
// once the step has dispatched its contacts.
func (w *World) RemoveBody(b *Body) error {
	if b == nil {
		return ErrNilBody
	}
	if b.world != w {
		return ErrBodyNotInWorld
	}
	if w.stepping {
		for _, p := range w.pending {
			if p == b {
				return nil
			}
		}
		w.pending = append(w.pending, b)
		return nil
	}
	w.detach(b)
	return nil
}

func (w *World) detach(b *Body) {
	for i, cur := range w.bodies {
		if cur == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
	b.world = nil
}

// Bodies returns the bodies currently in the world.
func (w *World) Bodies() []*Body {
	return append([]*Body(nil), w.bodies...)
}

func (w *World) HasBody(b *Body) bool { return b != nil && b.world == w }

// Time is the simulated time in seconds.
func (w *World) Time() float64 { return w.time }

func (w *World) StepCount() uint64 { return w.steps }

// OnPreStep registers fn to run at the start of every internal step.
func (w *World) OnPreStep(fn func(dt float64)) func() {
	return addStepListener(&w.preStep, fn)
}

// OnPostStep registers fn to run at the end of every internal step.
func (w *World) OnPostStep(fn func(dt float64)) func() {
	return addStepListener(&w.postStep, fn)
}

func addStepListener(list *[]*stepListener, fn func(float64)) func() {
	l := &stepListener{fn: fn, active: true}
	*list = append(*list, l)
	return func() {
		l.active = false
		for i, cur := range *list {
			if cur == l {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func runStepListeners(list []*stepListener, dt float64) {
	for _, l := range append([]*stepListener(nil), list...) {
		if l.active {
			l.fn(dt)
		}
	}
}

// Step advances the world. With maxSubSteps <= 0 it runs exactly one step of
// dt. Otherwise timeSinceLastCalled is accumulated and consumed in steps of
// dt, at most maxSubSteps at a time; leftover time is kept below dt.
// It returns the number of internal steps run.
func (w *World) Step(dt, timeSinceLastCalled float64, maxSubSteps int) int {
	if dt <= 0 {
		return 0
	}
	if maxSubSteps <= 0 {
		w.internalStep(dt)
		return 1
	}
	w.accumulator += timeSinceLastCalled
	n := 0
	for w.accumulator >= dt && n < maxSubSteps {
		w.internalStep(dt)
		w.accumulator -= dt
		n++
	}
	w.accumulator = math.Mod(w.accumulator, dt)
	return n
}

func (w *World) internalStep(dt float64) {
	w.stepping = true

	runStepListeners(w.preStep, dt)

	for _, b := range w.bodies {
		if b.Type != Dynamic || b.InvMass() == 0 {
			continue
		}
		inv := b.InvMass()
		acc := w.Gravity.Add(b.Force.Mul(inv))
		b.Velocity = b.Velocity.Add(acc.Mul(dt))
		b.AngularVelocity = b.AngularVelocity.Add(b.InvInertiaWorld().Mul3x1(b.Torque).Mul(dt))
		b.Velocity = b.Velocity.Mul(math.Pow(1-b.LinearDamping, dt))
		b.AngularVelocity = b.AngularVelocity.Mul(math.Pow(1-b.AngularDamping, dt))
	}

	w.contacts = w.detect(w.contacts[:0])
	for i := range w.contacts {
		resolve(&w.contacts[i])
	}

	for _, b := range w.bodies {
		if b.Type == Static {
			continue
		}
		b.Position = b.Position.Add(b.Velocity.Mul(dt))
		if b.AngularVelocity.LenSqr() > 0 {
			half := mgl64.Quat{W: 0, V: b.AngularVelocity.Mul(0.5 * dt)}
			b.Quaternion = b.Quaternion.Add(half.Mul(b.Quaternion)).Normalize()
		}
		b.Force = mgl64.Vec3{}
		b.Torque = mgl64.Vec3{}
	}

	for _, c := range w.contacts {
		c.a.dispatch(CollideEvent{Target: c.a, Body: c.b, Normal: c.normal, Point: c.point, Depth: c.depth})
		c.b.dispatch(CollideEvent{Target: c.b, Body: c.a, Normal: c.normal.Mul(-1), Point: c.point, Depth: c.depth})
	}

	w.stepping = false
	for _, b := range w.pending {
		if b.world == w {
			w.detach(b)
		}
	}
	w.pending = w.pending[:0]

	w.time += dt
	w.steps++
	runStepListeners(w.postStep, dt)
}
