package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVehicle(t *testing.T, w *World, y float64) *RaycastVehicle {
	t.Helper()
	chassis := NewBody(BodyOptions{
		Name:        "chassis",
		Mass:        170,
		Material:    &Material{Name: "carMaterial"},
		HalfExtents: mgl64.Vec3{1.2, 0.5, 1.6},
		Position:    mgl64.Vec3{0, y, 0},
	})
	v := NewRaycastVehicle(chassis)
	for _, p := range []mgl64.Vec3{{-1.2, 0, 1.1}, {1.2, 0, 1.1}, {-1.2, 0, -1.2}, {1.2, 0, -1.2}} {
		opts := DefaultWheelOptions()
		opts.ChassisConnectionPoint = p
		v.AddWheel(opts)
	}
	if w != nil {
		require.NoError(t, v.AddToWorld(w))
	}
	return v
}

func settle(w *World, steps int) {
	for i := 0; i < steps; i++ {
		w.Step(dt, 0, 0)
	}
}

func TestVehicleSettlesOnSuspension(t *testing.T) {
	w := NewWorld()
	newGround(t, w, mgl64.Vec3{50, 0.5, 50})
	v := newTestVehicle(t, w, 1.4)

	settle(w, 120)

	y := v.Chassis.Position.Y()
	assert.Greater(t, y, 1.0)
	assert.Less(t, y, 1.8)
	assert.Less(t, math.Abs(v.Chassis.Velocity.Y()), 0.5)
	for i, wheel := range v.Wheels {
		assert.True(t, wheel.IsInContact, "wheel %d", i)
		assert.Greater(t, wheel.SuspensionForce, 0.0, "wheel %d", i)
		assert.LessOrEqual(t, wheel.SuspensionLength, wheel.SuspensionRestLength+wheel.MaxSuspensionTravel)
	}
}

func TestVehicleDrivesAndBrakes(t *testing.T) {
	w := NewWorld()
	newGround(t, w, mgl64.Vec3{200, 0.5, 200})
	v := newTestVehicle(t, w, 1.4)
	settle(w, 60)

	for i := 0; i < 2; i++ {
		require.NoError(t, v.ApplyEngineForce(1000, i))
	}
	settle(w, 60)
	assert.Greater(t, v.Chassis.Velocity.Z(), 1.0)
	moving := v.CurrentSpeedKmHour()
	assert.Greater(t, moving, 0.0)
	assert.NotZero(t, v.Wheels[0].Rotation)

	for i := range v.Wheels {
		require.NoError(t, v.ApplyEngineForce(0, i))
		require.NoError(t, v.SetBrake(5, i))
	}
	settle(w, 180)
	assert.Less(t, math.Abs(v.CurrentSpeedKmHour()), moving*0.5)
}

func TestVehicleReverseSpeedIsNegative(t *testing.T) {
	w := NewWorld()
	newGround(t, w, mgl64.Vec3{200, 0.5, 200})
	v := newTestVehicle(t, w, 1.4)
	settle(w, 60)
	for i := 0; i < 2; i++ {
		require.NoError(t, v.ApplyEngineForce(-500, i))
	}
	settle(w, 60)
	assert.Less(t, v.CurrentSpeedKmHour(), 0.0)
}

func TestWheelTransformFollowsSteering(t *testing.T) {
	v := newTestVehicle(t, nil, 2)
	require.NoError(t, v.SetSteeringValue(0.5, 1))

	tr, err := v.UpdateWheelTransform(1)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, tr.Position.X(), 1e-9)
	assert.InDelta(t, 2-0.7, tr.Position.Y(), 1e-9)
	assert.InDelta(t, 1.1, tr.Position.Z(), 1e-9)

	fwd := tr.Quaternion.Rotate(mgl64.Vec3{0, 0, 1})
	assert.InDelta(t, math.Sin(0.5), fwd.X(), 1e-9)
	assert.InDelta(t, math.Cos(0.5), fwd.Z(), 1e-9)

	_, err = v.UpdateWheelTransform(4)
	assert.ErrorIs(t, err, ErrWheelIndex)
	assert.ErrorIs(t, v.SetBrake(1, -1), ErrWheelIndex)
}

func TestVehicleRemoveFromWorld(t *testing.T) {
	w := NewWorld()
	v := newTestVehicle(t, w, 2)
	require.NoError(t, v.RemoveFromWorld())
	assert.False(t, w.HasBody(v.Chassis))
	require.NoError(t, v.RemoveFromWorld())
	// no vehicle update is attached any more
	w.Step(dt, 0, 0)
	assert.Zero(t, v.CurrentSpeedKmHour())
}
