package race

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/zeusync/racer/internal/core/physics"
	"github.com/zeusync/racer/internal/level"
	"github.com/zeusync/racer/internal/race/events"
)

var ErrNoChassis = errors.New("vehicle is not attached to a world")

const (
	wheelCount   = 4
	drivenWheels = 2
)

var _ Driver = (*Vehicle)(nil)

// Vehicle is the drivable car: a chassis on four raycast wheels, a taller
// shadow body used for surface detection and kinematic bodies that mirror the
// wheel poses.
type Vehicle struct {
	cfg    Config
	state  *State
	notify *notifier

	chassis     *physics.Body
	detection   *physics.Body
	wheelBodies []*physics.Body
	wheelPoses  []physics.WheelTransform

	raycast      *physics.RaycastVehicle
	world        *physics.World
	forwardForce float64
	unsubscribe  func()
}

func newVehicle(cfg Config, mats materials, start Pose, state *State, n *notifier) *Vehicle {
	rot := start.Rotation
	v := &Vehicle{
		cfg:          cfg,
		state:        state,
		notify:       n,
		forwardForce: cfg.Vehicle.ForceForward,
		chassis: physics.NewBody(physics.BodyOptions{
			Name:        "chassis",
			Type:        physics.Dynamic,
			Mass:        cfg.Vehicle.Mass,
			Material:    mats.car,
			HalfExtents: mgl64.Vec3(cfg.Vehicle.HalfExtents),
			Position:    start.Position,
			Quaternion:  &rot,
		}),
		detection: physics.NewBody(physics.BodyOptions{
			Name:        "surface-detector",
			Type:        physics.Dynamic,
			Mass:        1,
			HalfExtents: mgl64.Vec3(cfg.Vehicle.DetectionHalfExtents),
			Position:    start.Position,
			Quaternion:  &rot,
			NoResponse:  true,
		}),
	}

	group := 0
	for i := 0; i < wheelCount; i++ {
		r := cfg.Wheels.Radius
		v.wheelBodies = append(v.wheelBodies, physics.NewBody(physics.BodyOptions{
			Name:                 "wheel",
			Type:                 physics.Kinematic,
			HalfExtents:          mgl64.Vec3{r / 2, r, r},
			Position:             start.Position,
			CollisionFilterGroup: &group,
		}))
	}
	v.wheelPoses = make([]physics.WheelTransform, wheelCount)
	return v
}

func (v *Vehicle) wheelOptions(i int) physics.WheelOptions {
	w := v.cfg.Wheels
	opts := physics.DefaultWheelOptions()
	opts.Radius = w.Radius
	opts.SuspensionStiffness = w.SuspensionStiffness
	opts.SuspensionRestLength = w.SuspensionRestLength
	opts.MaxSuspensionTravel = w.MaxSuspensionTravel
	opts.MaxSuspensionForce = w.MaxSuspensionForce
	opts.FrictionSlip = w.FrictionSlip
	opts.DampingRelaxation = w.DampingRelaxation
	opts.DampingCompression = w.DampingCompression
	opts.RollInfluence = w.RollInfluence
	opts.ChassisConnectionPoint = mgl64.Vec3(w.ConnectionPoints[i])
	return opts
}

// Attach adds every body of the car to the world.
func (v *Vehicle) Attach(w *physics.World) error {
	if v.raycast != nil {
		return errors.New("vehicle already attached")
	}
	rv := physics.NewRaycastVehicle(v.chassis)
	for i := 0; i < wheelCount; i++ {
		rv.AddWheel(v.wheelOptions(i))
	}
	if err := rv.AddToWorld(w); err != nil {
		return errors.Wrap(err, "attach chassis")
	}
	if err := w.AddBody(v.detection); err != nil {
		_ = rv.RemoveFromWorld()
		return errors.Wrap(err, "attach surface detector")
	}
	for _, wb := range v.wheelBodies {
		if err := w.AddBody(wb); err != nil {
			return errors.Wrap(err, "attach wheel body")
		}
	}
	v.raycast = rv
	v.world = w
	v.unsubscribe = w.OnPostStep(func(float64) { v.syncWheels() })
	v.syncWheels()
	return nil
}

// Detach removes the car from its world.
func (v *Vehicle) Detach() error {
	if v.raycast == nil {
		return nil
	}
	v.unsubscribe()
	err := v.raycast.RemoveFromWorld()
	for _, b := range append([]*physics.Body{v.detection}, v.wheelBodies...) {
		if v.world.HasBody(b) {
			_ = v.world.RemoveBody(b)
		}
	}
	v.raycast = nil
	v.world = nil
	return err
}

func (v *Vehicle) mustAttached() *physics.RaycastVehicle {
	if v.raycast == nil {
		panic(ErrNoChassis)
	}
	return v.raycast
}

// ApplyThrottle drives the front wheels. Non-zero commands need fuel and burn
// it; a zero magnitude releases the throttle.
func (v *Vehicle) ApplyThrottle(dir ThrottleDirection, magnitude float64) {
	rv := v.mustAttached()
	if magnitude == 0 {
		v.setEngineForce(rv, 0)
		v.notify.publish(events.Throttle, events.ThrottleState{Active: false})
		return
	}
	if v.state.Fuel() <= 0 {
		v.setEngineForce(rv, 0)
		return
	}

	force := magnitude * v.forwardForce
	if dir == ThrottleReverse {
		force = -magnitude * v.cfg.Vehicle.ForceBackward
	}
	v.setEngineForce(rv, force)
	v.state.burn(v.cfg.Fuel.BurnPerFrame)
	v.notify.publish(events.Throttle, events.ThrottleState{Active: true})
}

func (v *Vehicle) setEngineForce(rv *physics.RaycastVehicle, force float64) {
	for i := 0; i < drivenWheels; i++ {
		_ = rv.ApplyEngineForce(force, i)
	}
}

func (v *Vehicle) ApplySteer(dir SteerDirection) {
	rv := v.mustAttached()
	value := v.cfg.Vehicle.MaxSteer * float64(dir)
	for i := 0; i < drivenWheels; i++ {
		_ = rv.SetSteeringValue(value, i)
	}
}

func (v *Vehicle) ApplyBrake(intensity float64) {
	rv := v.mustAttached()
	intensity = clamp(intensity, 0, 1)
	for i := range rv.Wheels {
		_ = rv.SetBrake(intensity*v.cfg.Vehicle.BrakeForce, i)
	}
	v.notify.publish(events.Brake, events.BrakeState{Intensity: intensity})
}

// Stop zeroes the chassis motion.
func (v *Vehicle) Stop() {
	v.mustAttached()
	v.chassis.Velocity = mgl64.Vec3{}
	v.chassis.AngularVelocity = mgl64.Vec3{}
}

// SetSurface picks the forward force for later throttle commands.
func (v *Vehicle) SetSurface(material string) {
	if material == level.GrassMaterial {
		v.forwardForce = v.cfg.Vehicle.ForceForwardGrass
		return
	}
	v.forwardForce = v.cfg.Vehicle.ForceForward
}

func (v *Vehicle) ForwardForce() float64 { return v.forwardForce }

// MoveTo teleports the chassis and its shadow.
func (v *Vehicle) MoveTo(p Pose) {
	v.mustAttached()
	v.chassis.Position = p.Position
	v.chassis.Quaternion = p.Rotation.Normalize()
	v.syncDetection()
}

// Update runs once per frame before the physics step.
func (v *Vehicle) Update() {
	v.mustAttached()
	v.syncDetection()
}

func (v *Vehicle) syncDetection() {
	v.detection.Position = v.chassis.Position
	v.detection.Quaternion = v.chassis.Quaternion
	v.detection.Velocity = mgl64.Vec3{}
	v.detection.AngularVelocity = mgl64.Vec3{}
}

func (v *Vehicle) syncWheels() {
	for i := range v.raycast.Wheels {
		t, err := v.raycast.UpdateWheelTransform(i)
		if err != nil {
			continue
		}
		v.wheelPoses[i] = t
		v.wheelBodies[i].Position = t.Position
		v.wheelBodies[i].Quaternion = t.Quaternion
	}
}

// Speed is the forward speed in km/h.
func (v *Vehicle) Speed() float64 {
	return v.mustAttached().CurrentSpeedKmHour()
}

func (v *Vehicle) Transform() Pose {
	return Pose{Position: v.chassis.Position, Rotation: v.chassis.Quaternion}
}

// WheelTransforms returns the wheel poses of the last physics step.
func (v *Vehicle) WheelTransforms() []physics.WheelTransform {
	return append([]physics.WheelTransform(nil), v.wheelPoses...)
}

func (v *Vehicle) Chassis() *physics.Body       { return v.chassis }
func (v *Vehicle) DetectionBody() *physics.Body { return v.detection }
func (v *Vehicle) WheelBodies() []*physics.Body { return v.wheelBodies }

// Wheels exposes the raycast wheel state.
func (v *Vehicle) Wheels() []*physics.WheelInfo {
	return v.mustAttached().Wheels
}
