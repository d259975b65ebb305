package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// BodyType selects how a body takes part in the simulation.
type BodyType uint8

const (
	// Dynamic bodies are moved by forces, gravity and contacts.
	Dynamic BodyType = iota
	// Static bodies never move.
	Static
	// Kinematic bodies move by their velocity only and ignore forces.
	Kinematic
)

func (t BodyType) String() string {
	switch t {
	case Dynamic:
		return "dynamic"
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	default:
		return "unknown"
	}
}

// Material names a surface and carries its contact coefficients.
type Material struct {
	Name        string
	Friction    float64
	Restitution float64
}

const (
	defaultFriction    = 0.3
	defaultRestitution = 0.0
	defaultDamping     = 0.01
)

// Box is an oriented box shape given by its half extents.
type Box struct {
	HalfExtents mgl64.Vec3
}

// CollideEvent is delivered to a body's collide listeners once per step for
// every body it touches. Target is the listening body.
type CollideEvent struct {
	Target *Body
	Body   *Body
	// Normal points from Target towards Body.
	Normal mgl64.Vec3
	Point  mgl64.Vec3
	Depth  float64
}

// MaterialName returns the other body's material name or "".
func (e CollideEvent) MaterialName() string {
	if e.Body == nil || e.Body.Material == nil {
		return ""
	}
	return e.Body.Material.Name
}

type BodyOptions struct {
	Name        string
	Type        BodyType
	Mass        float64
	Material    *Material
	HalfExtents mgl64.Vec3
	Position    mgl64.Vec3
	Quaternion  *mgl64.Quat
	// NoResponse makes the body report contacts without being pushed.
	NoResponse           bool
	CollisionFilterGroup *int
	CollisionFilterMask  *int
}

type collideListener struct {
	fn     func(CollideEvent)
	active bool
}

// Body is a rigid box.
type Body struct {
	ID       uuid.UUID
	Name     string
	Type     BodyType
	Mass     float64
	Material *Material
	Shape    Box

	Position        mgl64.Vec3
	Quaternion      mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Force           mgl64.Vec3
	Torque          mgl64.Vec3

	CollisionResponse    bool
	CollisionFilterGroup int
	CollisionFilterMask  int
	LinearDamping        float64
	AngularDamping       float64

	world    *World
	listener []*collideListener
}

func NewBody(opts BodyOptions) *Body {
	b := &Body{
		ID:                   uuid.New(),
		Name:                 opts.Name,
		Type:                 opts.Type,
		Mass:                 opts.Mass,
		Material:             opts.Material,
		Shape:                Box{HalfExtents: opts.HalfExtents},
		Position:             opts.Position,
		Quaternion:           mgl64.QuatIdent(),
		CollisionResponse:    !opts.NoResponse,
		CollisionFilterGroup: 1,
		CollisionFilterMask:  -1,
		LinearDamping:        defaultDamping,
		AngularDamping:       defaultDamping,
	}
	if opts.Quaternion != nil {
		b.Quaternion = opts.Quaternion.Normalize()
	}
	if opts.CollisionFilterGroup != nil {
		b.CollisionFilterGroup = *opts.CollisionFilterGroup
	}
	if opts.CollisionFilterMask != nil {
		b.CollisionFilterMask = *opts.CollisionFilterMask
	}
	return b
}

// World returns the world the body was added to, or nil.
func (b *Body) World() *World { return b.world }

// InvMass is zero for anything that is not a dynamic body with positive mass.
func (b *Body) InvMass() float64 {
	if b.Type != Dynamic || b.Mass <= 0 {
		return 0
	}
	return 1 / b.Mass
}

func (b *Body) invInertiaLocal() mgl64.Vec3 {
	if b.InvMass() == 0 {
		return mgl64.Vec3{}
	}
	h := b.Shape.HalfExtents
	ix := b.Mass / 3 * (h.Y()*h.Y() + h.Z()*h.Z())
	iy := b.Mass / 3 * (h.X()*h.X() + h.Z()*h.Z())
	iz := b.Mass / 3 * (h.X()*h.X() + h.Y()*h.Y())
	return mgl64.Vec3{safeInv(ix), safeInv(iy), safeInv(iz)}
}

// InvInertiaWorld returns R * I^-1 * R^T for the current orientation.
func (b *Body) InvInertiaWorld() mgl64.Mat3 {
	r := b.rotation()
	return r.Mul3(mgl64.Diag3(b.invInertiaLocal())).Mul3(r.Transpose())
}

func (b *Body) rotation() mgl64.Mat3 {
	return b.Quaternion.Mat4().Mat3()
}

// ApplyImpulse changes velocity immediately. rel is the point of application
// relative to the body center, in world orientation.
func (b *Body) ApplyImpulse(impulse, rel mgl64.Vec3) {
	inv := b.InvMass()
	if inv == 0 {
		return
	}
	b.Velocity = b.Velocity.Add(impulse.Mul(inv))
	b.AngularVelocity = b.AngularVelocity.Add(b.InvInertiaWorld().Mul3x1(rel.Cross(impulse)))
}

// ApplyForce accumulates a force for the next step.
func (b *Body) ApplyForce(force, rel mgl64.Vec3) {
	if b.Type != Dynamic {
		return
	}
	b.Force = b.Force.Add(force)
	b.Torque = b.Torque.Add(rel.Cross(force))
}

func (b *Body) VelocityAtWorldPoint(p mgl64.Vec3) mgl64.Vec3 {
	return b.Velocity.Add(b.AngularVelocity.Cross(p.Sub(b.Position)))
}

func (b *Body) PointToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return b.Position.Add(b.Quaternion.Rotate(local))
}

func (b *Body) VectorToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return b.Quaternion.Rotate(local)
}

// OnCollide registers fn for contacts involving this body. The returned
// function removes it.
func (b *Body) OnCollide(fn func(CollideEvent)) func() {
	l := &collideListener{fn: fn, active: true}
	b.listener = append(b.listener, l)
	return func() {
		l.active = false
		for i, cur := range b.listener {
			if cur == l {
				b.listener = append(b.listener[:i:i], b.listener[i+1:]...)
				return
			}
		}
	}
}

func (b *Body) dispatch(e CollideEvent) {
	for _, l := range append([]*collideListener(nil), b.listener...) {
		if l.active {
			l.fn(e)
		}
	}
}

// aabb returns the world-space bounds of the oriented box.
func (b *Body) aabb() (lo, hi mgl64.Vec3) {
	r := b.rotation()
	h := b.Shape.HalfExtents
	var ext mgl64.Vec3
	for row := 0; row < 3; row++ {
		ext[row] = math.Abs(r.At(row, 0))*h[0] + math.Abs(r.At(row, 1))*h[1] + math.Abs(r.At(row, 2))*h[2]
	}
	return b.Position.Sub(ext), b.Position.Add(ext)
}

func (b *Body) friction() float64 {
	if b.Material == nil {
		return defaultFriction
	}
	return b.Material.Friction
}

func (b *Body) restitution() float64 {
	if b.Material == nil {
		return defaultRestitution
	}
	return b.Material.Restitution
}

func safeInv(v float64) float64 {
	if v == 0 {
		return 0
	}
	return 1 / v
}
