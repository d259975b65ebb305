package physics

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrWheelIndex = errors.New("physics: wheel index out of range")

const (
	sideFrictionStiffness = 1.0
	forwardFrictionFactor = 0.5
	sideFrictionFactor    = 1.0
	bilateralDamping      = 0.2
	wheelSpinDamping      = 0.99
)

// WheelOptions describe one raycast wheel in chassis space.
type WheelOptions struct {
	Radius                 float64
	DirectionLocal         mgl64.Vec3
	AxleLocal              mgl64.Vec3
	ChassisConnectionPoint mgl64.Vec3
	SuspensionStiffness    float64
	SuspensionRestLength   float64
	MaxSuspensionTravel    float64
	MaxSuspensionForce     float64
	DampingRelaxation      float64
	DampingCompression     float64
	FrictionSlip           float64
	RollInfluence          float64
}

// DefaultWheelOptions holds a generic, stiff wheel pointing down with the
// axle along +X.
func DefaultWheelOptions() WheelOptions {
	return WheelOptions{
		Radius:               0.3,
		DirectionLocal:       mgl64.Vec3{0, -1, 0},
		AxleLocal:            mgl64.Vec3{1, 0, 0},
		SuspensionStiffness:  30,
		SuspensionRestLength: 0.7,
		MaxSuspensionTravel:  0.6,
		MaxSuspensionForce:   100000,
		DampingRelaxation:    8,
		DampingCompression:   10,
		FrictionSlip:         2,
		RollInfluence:        0.01,
	}
}

// WheelTransform is a wheel pose in world space.
type WheelTransform struct {
	Position   mgl64.Vec3
	Quaternion mgl64.Quat
}

// WheelInfo is the live state of one wheel.
type WheelInfo struct {
	WheelOptions

	Steering      float64
	Brake         float64
	EngineForce   float64
	Rotation      float64
	DeltaRotation float64

	SuspensionLength               float64
	SuspensionForce                float64
	SuspensionRelativeVelocity     float64
	ClippedInvContactDotSuspension float64
	SideImpulse                    float64
	ForwardImpulse                 float64
	SkidInfo                       float64
	IsInContact                    bool
	Sliding                        bool
	Raycast                        RaycastResult

	ChassisConnectionPointWorld mgl64.Vec3
	DirectionWorld              mgl64.Vec3
	AxleWorld                   mgl64.Vec3
	WorldTransform              WheelTransform
}

// RaycastVehicle drives a chassis body on raycast suspension. Each wheel casts
// a ray down from its connection point every step; hits produce suspension,
// side friction and drive impulses on the chassis.
type RaycastVehicle struct {
	Chassis *Body
	Wheels  []*WheelInfo

	currentSpeedKmh float64
	world           *World
	unsubscribe     func()
}

func NewRaycastVehicle(chassis *Body) *RaycastVehicle {
	return &RaycastVehicle{Chassis: chassis}
}

// AddWheel appends a wheel and returns its index.
func (v *RaycastVehicle) AddWheel(opts WheelOptions) int {
	w := &WheelInfo{
		WheelOptions:     opts,
		SuspensionLength: opts.SuspensionRestLength,
		SkidInfo:         1,
	}
	w.DirectionLocal = opts.DirectionLocal.Normalize()
	w.AxleLocal = opts.AxleLocal.Normalize()
	v.Wheels = append(v.Wheels, w)
	v.updateWheelWorld(w)
	v.updateTransform(w)
	return len(v.Wheels) - 1
}

// AddToWorld adds the chassis (when needed) and updates the vehicle before
// every world step.
func (v *RaycastVehicle) AddToWorld(w *World) error {
	if v.Chassis.World() == nil {
		if err := w.AddBody(v.Chassis); err != nil {
			return err
		}
	} else if v.Chassis.World() != w {
		return ErrBodyInWorld
	}
	v.world = w
	v.unsubscribe = w.OnPreStep(v.UpdateVehicle)
	return nil
}

func (v *RaycastVehicle) RemoveFromWorld() error {
	if v.world == nil {
		return nil
	}
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
	err := v.world.RemoveBody(v.Chassis)
	v.world = nil
	return err
}

func (v *RaycastVehicle) wheel(i int) (*WheelInfo, error) {
	if i < 0 || i >= len(v.Wheels) {
		return nil, ErrWheelIndex
	}
	return v.Wheels[i], nil
}

func (v *RaycastVehicle) SetSteeringValue(value float64, i int) error {
	w, err := v.wheel(i)
	if err != nil {
		return err
	}
	w.Steering = value
	return nil
}

func (v *RaycastVehicle) ApplyEngineForce(value float64, i int) error {
	w, err := v.wheel(i)
	if err != nil {
		return err
	}
	w.EngineForce = value
	return nil
}

func (v *RaycastVehicle) SetBrake(value float64, i int) error {
	w, err := v.wheel(i)
	if err != nil {
		return err
	}
	w.Brake = value
	return nil
}

// CurrentSpeedKmHour is negative when the chassis moves backwards.
func (v *RaycastVehicle) CurrentSpeedKmHour() float64 { return v.currentSpeedKmh }

func (v *RaycastVehicle) forwardLocal() mgl64.Vec3 {
	if len(v.Wheels) == 0 {
		return mgl64.Vec3{0, 0, 1}
	}
	w := v.Wheels[0]
	return w.AxleLocal.Cross(w.DirectionLocal.Mul(-1)).Normalize()
}

// UpdateVehicle runs suspension and friction for one step of dt.
func (v *RaycastVehicle) UpdateVehicle(dt float64) {
	chassis := v.Chassis

	for _, w := range v.Wheels {
		v.updateWheelWorld(w)
	}

	v.currentSpeedKmh = 3.6 * chassis.Velocity.Len()
	forward := chassis.VectorToWorld(v.forwardLocal())
	if forward.Dot(chassis.Velocity) < 0 {
		v.currentSpeedKmh = -v.currentSpeedKmh
	}

	for _, w := range v.Wheels {
		v.castRay(w)
	}

	for _, w := range v.Wheels {
		v.updateSuspension(w)
		if w.IsInContact {
			impulse := w.Raycast.HitNormal.Mul(w.SuspensionForce * dt)
			chassis.ApplyImpulse(impulse, w.Raycast.HitPoint.Sub(chassis.Position))
		}
	}

	v.updateFriction(dt)

	for _, w := range v.Wheels {
		vel := chassis.VelocityAtWorldPoint(w.ChassisConnectionPointWorld)
		if w.IsInContact {
			fwd := chassis.VectorToWorld(v.forwardLocal())
			n := w.Raycast.HitNormal
			fwd = fwd.Sub(n.Mul(fwd.Dot(n)))
			w.DeltaRotation = fwd.Dot(vel) * dt / w.Radius
		}
		if math.Abs(w.Brake) > math.Abs(w.EngineForce) {
			w.DeltaRotation = 0
		}
		w.Rotation += w.DeltaRotation
		w.DeltaRotation *= wheelSpinDamping
	}

	for _, w := range v.Wheels {
		v.updateTransform(w)
	}
}

func (v *RaycastVehicle) updateWheelWorld(w *WheelInfo) {
	c := v.Chassis
	w.ChassisConnectionPointWorld = c.PointToWorld(w.ChassisConnectionPoint)
	w.DirectionWorld = c.VectorToWorld(w.DirectionLocal)
	w.AxleWorld = c.VectorToWorld(w.AxleLocal)
}

func (v *RaycastVehicle) castRay(w *WheelInfo) {
	rayLen := w.SuspensionRestLength + w.Radius
	source := w.ChassisConnectionPointWorld
	target := source.Add(w.DirectionWorld.Mul(rayLen))

	w.Raycast = RaycastResult{}
	w.IsInContact = false
	if v.world == nil {
		w.SuspensionLength = w.SuspensionRestLength
		return
	}

	opts := DefaultRayOptions()
	opts.Skip = v.Chassis
	hit := v.world.RaycastClosest(source, target, opts)
	if !hit.HasHit {
		w.SuspensionLength = w.SuspensionRestLength
		w.SuspensionRelativeVelocity = 0
		w.Raycast.HitNormal = w.DirectionWorld.Mul(-1)
		w.ClippedInvContactDotSuspension = 1
		return
	}

	w.Raycast = hit
	w.IsInContact = true
	w.SuspensionLength = mgl64.Clamp(hit.Distance-w.Radius,
		w.SuspensionRestLength-w.MaxSuspensionTravel,
		w.SuspensionRestLength+w.MaxSuspensionTravel)

	denominator := hit.HitNormal.Dot(w.DirectionWorld)
	projVel := hit.HitNormal.Dot(v.Chassis.VelocityAtWorldPoint(hit.HitPoint))
	if denominator >= -0.1 {
		w.SuspensionRelativeVelocity = 0
		w.ClippedInvContactDotSuspension = 1 / 0.1
	} else {
		inv := -1 / denominator
		w.SuspensionRelativeVelocity = projVel * inv
		w.ClippedInvContactDotSuspension = inv
	}
}

func (v *RaycastVehicle) updateSuspension(w *WheelInfo) {
	if !w.IsInContact {
		w.SuspensionForce = 0
		return
	}
	force := w.SuspensionStiffness * (w.SuspensionRestLength - w.SuspensionLength) * w.ClippedInvContactDotSuspension
	damping := w.DampingRelaxation
	if w.SuspensionRelativeVelocity < 0 {
		damping = w.DampingCompression
	}
	force -= damping * w.SuspensionRelativeVelocity
	w.SuspensionForce = mgl64.Clamp(force*v.Chassis.Mass, 0, w.MaxSuspensionForce)
}

func (v *RaycastVehicle) updateFriction(dt float64) {
	chassis := v.Chassis
	n := len(v.Wheels)
	axles := make([]mgl64.Vec3, n)
	forwards := make([]mgl64.Vec3, n)

	for i, w := range v.Wheels {
		w.SideImpulse = 0
		w.ForwardImpulse = 0
		ground := w.Raycast.Body
		if !w.IsInContact || ground == nil {
			continue
		}
		steer := mgl64.QuatRotate(w.Steering, w.DirectionLocal.Mul(-1))
		axle := chassis.Quaternion.Mul(steer).Rotate(w.AxleLocal)
		normal := w.Raycast.HitNormal
		axle = axle.Sub(normal.Mul(axle.Dot(normal))).Normalize()
		axles[i] = axle
		forwards[i] = axle.Cross(normal).Normalize()

		w.SideImpulse = resolveSingleBilateral(chassis, w.Raycast.HitPoint, ground, w.Raycast.HitPoint, axle) * sideFrictionStiffness
	}

	sliding := false
	for i, w := range v.Wheels {
		w.SkidInfo = 1
		w.Sliding = false
		ground := w.Raycast.Body
		if !w.IsInContact || ground == nil {
			continue
		}
		rolling := calcRollingFriction(chassis, ground, w.Raycast.HitPoint, forwards[i], w.Brake)
		rolling += w.EngineForce * dt
		w.ForwardImpulse = rolling

		maxImpulse := w.SuspensionForce * dt * w.FrictionSlip
		x := w.ForwardImpulse * forwardFrictionFactor
		y := w.SideImpulse * sideFrictionFactor
		squared := x*x + y*y
		if squared > maxImpulse*maxImpulse {
			sliding = true
			w.Sliding = true
			w.SkidInfo = maxImpulse / math.Sqrt(squared)
		}
	}

	if sliding {
		for _, w := range v.Wheels {
			if w.SideImpulse != 0 && w.SkidInfo < 1 {
				w.ForwardImpulse *= w.SkidInfo
				w.SideImpulse *= w.SkidInfo
			}
		}
	}

	up := chassis.VectorToWorld(v.upLocal())
	for i, w := range v.Wheels {
		if !w.IsInContact || w.Raycast.Body == nil {
			continue
		}
		rel := w.Raycast.HitPoint.Sub(chassis.Position)
		if w.ForwardImpulse != 0 {
			chassis.ApplyImpulse(forwards[i].Mul(w.ForwardImpulse), rel)
		}
		if w.SideImpulse != 0 {
			ground := w.Raycast.Body
			relGround := w.Raycast.HitPoint.Sub(ground.Position)
			side := axles[i].Mul(w.SideImpulse)
			// lower the application point towards the center of mass
			rel = rel.Sub(up.Mul(up.Dot(rel) * (1 - w.RollInfluence)))
			chassis.ApplyImpulse(side, rel)
			ground.ApplyImpulse(side.Mul(-1), relGround)
		}
	}
}

func (v *RaycastVehicle) upLocal() mgl64.Vec3 {
	if len(v.Wheels) == 0 {
		return mgl64.Vec3{0, 1, 0}
	}
	return v.Wheels[0].DirectionLocal.Mul(-1)
}

// UpdateWheelTransform recomputes the world pose of wheel i and returns it.
func (v *RaycastVehicle) UpdateWheelTransform(i int) (WheelTransform, error) {
	w, err := v.wheel(i)
	if err != nil {
		return WheelTransform{}, err
	}
	v.updateWheelWorld(w)
	v.updateTransform(w)
	return w.WorldTransform, nil
}

func (v *RaycastVehicle) updateTransform(w *WheelInfo) {
	up := w.DirectionLocal.Mul(-1)
	steer := mgl64.QuatRotate(w.Steering, up)
	spin := mgl64.QuatRotate(w.Rotation, w.AxleLocal)
	w.WorldTransform = WheelTransform{
		Position:   w.ChassisConnectionPointWorld.Add(w.DirectionWorld.Mul(w.SuspensionLength)),
		Quaternion: v.Chassis.Quaternion.Mul(steer).Mul(spin).Normalize(),
	}
}

func resolveSingleBilateral(b1 *Body, p1 mgl64.Vec3, b2 *Body, p2 mgl64.Vec3, normal mgl64.Vec3) float64 {
	if normal.LenSqr() > 1.1 {
		return 0
	}
	relVel := normal.Dot(b1.VelocityAtWorldPoint(p1).Sub(b2.VelocityAtWorldPoint(p2)))
	total := b1.InvMass() + b2.InvMass()
	if total == 0 {
		return 0
	}
	return -bilateralDamping * relVel / total
}

func calcRollingFriction(b0, b1 *Body, pos, dir mgl64.Vec3, maxImpulse float64) float64 {
	vrel := dir.Dot(b0.VelocityAtWorldPoint(pos).Sub(b1.VelocityAtWorldPoint(pos)))
	denom := impulseDenominator(b0, pos.Sub(b0.Position), dir) + impulseDenominator(b1, pos.Sub(b1.Position), dir)
	if denom == 0 {
		return 0
	}
	return mgl64.Clamp(-vrel/denom, -maxImpulse, maxImpulse)
}
