package race

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/racer/internal/core/events/bus"
	"github.com/zeusync/racer/internal/core/observability/log"
	"github.com/zeusync/racer/internal/core/physics"
	"github.com/zeusync/racer/internal/level"
	"github.com/zeusync/racer/internal/race/events"
)

func testNotifier(t *testing.T) (*notifier, *recorder) {
	t.Helper()
	b := bus.New()
	return &notifier{bus: b, source: "test", log: log.Nop()}, record(t, b)
}

func groundBody(material string) *physics.Body {
	return physics.NewBody(physics.BodyOptions{
		Name:        material,
		Type:        physics.Static,
		Material:    &physics.Material{Name: material},
		HalfExtents: mgl64.Vec3{10, 0.5, 10},
	})
}

func TestSurfaceClassifierDebounces(t *testing.T) {
	n, rec := testNotifier(t)
	chassis := physics.NewBody(physics.BodyOptions{Name: "chassis", Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}})
	stranger := physics.NewBody(physics.BodyOptions{Name: "other", Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}})
	road, grass := groundBody(level.RoadMaterial), groundBody(level.GrassMaterial)

	c := NewSurfaceClassifier(level.RoadMaterial, n)
	c.Watch(chassis)
	touch := func(ground *physics.Body, body *physics.Body) {
		c.Observe(physics.CollideEvent{Target: ground, Body: body})
	}

	touch(road, chassis)
	touch(road, chassis)
	assert.False(t, c.Resolve())

	touch(grass, stranger)
	assert.False(t, c.Resolve(), "unwatched bodies do not count")

	touch(grass, chassis)
	assert.True(t, c.Resolve())
	assert.Equal(t, level.GrassMaterial, c.Current())

	for i := 0; i < 3; i++ {
		touch(grass, chassis)
		assert.False(t, c.Resolve())
	}

	touch(road, chassis)
	touch(grass, chassis)
	assert.False(t, c.Resolve(), "current surface still touched")

	touch(road, chassis)
	assert.True(t, c.Resolve())

	assert.False(t, c.Resolve(), "no contacts, no change")

	c.Reset(level.GrassMaterial)
	assert.Equal(t, level.GrassMaterial, c.Current())

	changes := rec.of(events.SurfaceChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, level.GrassMaterial, changes[0].Data().(events.Surface).Material)
	assert.Equal(t, level.RoadMaterial, changes[1].Data().(events.Surface).Material)
}

func TestSurfaceClassifierPrefersRoad(t *testing.T) {
	n, _ := testNotifier(t)
	chassis := physics.NewBody(physics.BodyOptions{Name: "chassis", Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}})
	c := NewSurfaceClassifier("mud", n)
	c.Watch(chassis)

	c.Observe(physics.CollideEvent{Target: groundBody(level.GrassMaterial), Body: chassis})
	c.Observe(physics.CollideEvent{Target: groundBody(level.RoadMaterial), Body: chassis})
	require.True(t, c.Resolve())
	assert.Equal(t, level.RoadMaterial, c.Current())
}

func newTestCheckpoint(t *testing.T, n *notifier, chassis *physics.Body) (*Collectible, *physics.World) {
	t.Helper()
	w := physics.NewWorld()
	body := physics.NewBody(physics.BodyOptions{
		Name:        "gas",
		Type:        physics.Static,
		HalfExtents: mgl64.Vec3{1, 1, 1},
		NoResponse:  true,
	})
	require.NoError(t, w.AddBody(body))
	c := &Collectible{Kind: KindCheckpoint, Name: "gas", Award: 15, body: body, notify: n, delay: 2}
	c.attach(chassis)
	return c, w
}

func TestCheckpointCollectsOnceFromChassis(t *testing.T) {
	n, rec := testNotifier(t)
	chassis := physics.NewBody(physics.BodyOptions{Name: "chassis", Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}})
	detector := physics.NewBody(physics.BodyOptions{Name: "detector", Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}})
	c, _ := newTestCheckpoint(t, n, chassis)

	c.onCollide(physics.CollideEvent{Target: c.Body(), Body: detector})
	assert.Equal(t, Idle, c.State())

	for i := 0; i < 5; i++ {
		c.onCollide(physics.CollideEvent{Target: c.Body(), Body: chassis})
	}
	assert.Equal(t, Collected, c.State())

	passed := rec.of(events.CheckpointPassed)
	require.Len(t, passed, 1)
	assert.Equal(t, events.Checkpoint{ID: c.ID(), Name: "gas", FuelAward: 15}, passed[0].Data())
}

func TestCheckpointDestroyCountdown(t *testing.T) {
	n, rec := testNotifier(t)
	chassis := physics.NewBody(physics.BodyOptions{Name: "chassis", Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}})
	c, w := newTestCheckpoint(t, n, chassis)
	owner := &Collectibles{}
	owner.add(c)

	c.onCollide(physics.CollideEvent{Target: c.Body(), Body: chassis})
	owner.Tick(1.5)
	assert.True(t, w.HasBody(c.Body()))
	owner.Tick(0.5)

	assert.False(t, w.HasBody(c.Body()))
	assert.Equal(t, Destroyed, c.State())
	assert.Empty(t, owner.Checkpoints())
	assert.Len(t, rec.of(events.CheckpointRemoved), 1)

	owner.Tick(5)
	assert.Len(t, rec.of(events.CheckpointRemoved), 1)
}

func TestCheckpointCancelStopsDestroy(t *testing.T) {
	n, rec := testNotifier(t)
	chassis := physics.NewBody(physics.BodyOptions{Name: "chassis", Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}})
	c, w := newTestCheckpoint(t, n, chassis)

	c.onCollide(physics.CollideEvent{Target: c.Body(), Body: chassis})
	c.Cancel()
	c.Tick(10)

	assert.True(t, w.HasBody(c.Body()))
	assert.Equal(t, Collected, c.State())
	assert.Empty(t, rec.of(events.CheckpointRemoved))
}

func TestFinishNeedsThreshold(t *testing.T) {
	chassis := physics.NewBody(physics.BodyOptions{Name: "chassis", Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}})
	finished := 0
	f := &Collectible{
		Kind:      KindFinish,
		body:      physics.NewBody(physics.BodyOptions{Type: physics.Static, HalfExtents: mgl64.Vec3{1, 1, 1}}),
		threshold: 2,
		onFinish:  func() { finished++ },
	}
	f.attach(chassis)
	hit := physics.CollideEvent{Target: f.Body(), Body: chassis}

	f.onCollide(hit)
	require.NoError(t, f.countCheckpoint(events.Checkpoint{}))
	f.onCollide(hit)
	assert.Zero(t, finished)

	require.NoError(t, f.countCheckpoint(events.Checkpoint{}))
	f.onCollide(hit)
	f.onCollide(hit)
	assert.Equal(t, 1, finished)
	assert.Equal(t, Collected, f.State())
}

func TestPylonKickedWindow(t *testing.T) {
	n, rec := testNotifier(t)
	car := physics.NewBody(physics.BodyOptions{Name: "car", Mass: 1, Material: &physics.Material{Name: level.CarMaterial}, HalfExtents: mgl64.Vec3{1, 1, 1}})
	ground := groundBody(level.RoadMaterial)
	p := &Pylon{
		Name:   "cone",
		body:   physics.NewBody(physics.BodyOptions{Mass: 0.01, HalfExtents: mgl64.Vec3{0.25, 0.5, 0.25}}),
		notify: n,
		window: 2,
	}

	p.onCollide(physics.CollideEvent{Target: p.Body(), Body: ground})
	assert.False(t, p.Kicked())
	assert.Empty(t, rec.of(events.Bump))

	p.onCollide(physics.CollideEvent{Target: p.Body(), Body: car})
	assert.True(t, p.Kicked())
	p.Tick(1)
	p.onCollide(physics.CollideEvent{Target: p.Body(), Body: ground})
	assert.Len(t, rec.of(events.Bump), 2)

	p.Tick(1.5)
	assert.False(t, p.Kicked())
	p.onCollide(physics.CollideEvent{Target: p.Body(), Body: ground})
	assert.Len(t, rec.of(events.Bump), 2)
	assert.Equal(t, "cone", rec.of(events.Bump)[0].Data().(events.BumpHit).Pylon)
}

func TestCountdownPublishesTicksThenStart(t *testing.T) {
	n, rec := testNotifier(t)
	c := NewCountdown(DefaultConfig().Countdown, n)

	c.Update(10)
	assert.Empty(t, rec.events, "not started")

	c.Start()
	c.Update(1.4)
	assert.Empty(t, rec.of(events.Countdown))
	c.Update(0.2)
	assert.Equal(t, "3", c.Label())
	c.Update(2)
	assert.Equal(t, "1", c.Label())
	assert.Empty(t, rec.of(events.RaceStart))
	c.Update(1)

	assert.False(t, c.Running())
	assert.Len(t, rec.of(events.Countdown), 3)
	assert.Len(t, rec.of(events.RaceStart), 1)

	c.Update(5)
	assert.Len(t, rec.of(events.RaceStart), 1)
}

func TestCountdownCancel(t *testing.T) {
	n, rec := testNotifier(t)
	c := NewCountdown(DefaultConfig().Countdown, n)
	c.Start()
	c.Update(2)
	c.Cancel()
	c.Update(10)

	assert.Len(t, rec.of(events.Countdown), 1)
	assert.Empty(t, rec.of(events.RaceStart))
}

func TestStateClampsFuelAndScore(t *testing.T) {
	n, rec := testNotifier(t)
	s := newState(FuelConfig{Start: 0.07, Max: 100}, 1, Pose{Rotation: mgl64.QuatIdent()}, n)

	assert.True(t, s.burn(0.05))
	assert.True(t, s.burn(0.05))
	assert.Zero(t, s.Fuel())
	assert.False(t, s.burn(0.05))
	assert.Len(t, rec.of(events.FuelUpdated), 2)

	s.checkpointPassed(150, Pose{Position: mgl64.Vec3{1, 2, 3}, Rotation: mgl64.QuatIdent()})
	s.checkpointPassed(15, Pose{Rotation: mgl64.QuatIdent()})
	assert.Equal(t, 100.0, s.Fuel())
	assert.Equal(t, 1, s.Score())

	last := rec.of(events.FuelUpdated)
	assert.Equal(t, 0.0, last[len(last)-1].Data().(events.Fuel).Delta)
}

func TestStateClockRunsOnlyWhileRacing(t *testing.T) {
	s := newState(FuelConfig{Start: 10, Max: 100}, 0, Pose{}, nil)
	s.tick(1)
	s.setPhase(PhaseRacing)
	s.tick(1)
	s.tick(0.5)
	s.setPhase(PhaseFinished)
	s.tick(1)
	assert.Equal(t, 1.5, s.Clock())
}

func TestVehicleCommandsNeedWorld(t *testing.T) {
	cfg := DefaultConfig()
	state := newState(cfg.Fuel, 0, Pose{Rotation: mgl64.QuatIdent()}, nil)
	v := newVehicle(cfg, newMaterials(), Pose{Rotation: mgl64.QuatIdent()}, state, nil)

	assert.PanicsWithError(t, ErrNoChassis.Error(), func() { v.ApplyThrottle(ThrottleForward, 1) })
	assert.PanicsWithError(t, ErrNoChassis.Error(), func() { v.ApplySteer(SteerLeftDir) })
	assert.PanicsWithError(t, ErrNoChassis.Error(), func() { v.Stop() })

	w := physics.NewWorld()
	require.NoError(t, v.Attach(w))
	assert.NotPanics(t, func() { v.ApplyBrake(1) })
	assert.Len(t, w.Bodies(), 6)

	require.NoError(t, v.Detach())
	assert.Empty(t, w.Bodies())
}

func TestVehicleReverseUsesBackwardForce(t *testing.T) {
	cfg := DefaultConfig()
	state := newState(cfg.Fuel, 0, Pose{Rotation: mgl64.QuatIdent()}, nil)
	v := newVehicle(cfg, newMaterials(), Pose{Rotation: mgl64.QuatIdent()}, state, nil)
	require.NoError(t, v.Attach(physics.NewWorld()))

	v.ApplyThrottle(ThrottleReverse, 1)
	assert.Equal(t, -cfg.Vehicle.ForceBackward, v.Wheels()[0].EngineForce)
	assert.Zero(t, v.Wheels()[2].EngineForce)
	assert.InDelta(t, cfg.Fuel.Start-cfg.Fuel.BurnPerFrame, state.Fuel(), 1e-9)

	v.ApplyThrottle(ThrottleReverse, 0)
	assert.Zero(t, v.Wheels()[1].EngineForce)
	assert.InDelta(t, cfg.Fuel.Start-cfg.Fuel.BurnPerFrame, state.Fuel(), 1e-9)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := map[string]func(*Config){
		"zero step":     func(c *Config) { c.Physics.FixedStep = 0 },
		"no mass":       func(c *Config) { c.Vehicle.Mass = 0 },
		"three wheels":  func(c *Config) { c.Wheels.ConnectionPoints = c.Wheels.ConnectionPoints[:3] },
		"overfull tank": func(c *Config) { c.Fuel.Start = c.Fuel.Max + 1 },
		"no labels":     func(c *Config) { c.Countdown.Labels = nil },
		"bad binding":   func(c *Config) { c.Keys["x"] = "fly" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
