// Package race runs one race session: the car, the checkpoints and finish,
// pylons, the start countdown and the race state, all stepped by a single
// goroutine that calls Update once per frame.
package race

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zeusync/racer/internal/core/events/bus"
	"github.com/zeusync/racer/internal/core/observability/log"
	"github.com/zeusync/racer/internal/core/physics"
	"github.com/zeusync/racer/internal/core/system"
	"github.com/zeusync/racer/internal/level"
	"github.com/zeusync/racer/internal/race/events"
)

var (
	ErrNilLevel      = errors.New("race: nil level")
	ErrNilBus        = errors.New("race: nil event bus")
	ErrSessionClosed = errors.New("race: session closed")
	ErrWrongPhase    = errors.New("race: operation not allowed in this phase")
)

// Frame systems, in execution order.
const (
	SystemControls     = "controls"
	SystemVehicle      = "vehicle"
	SystemPhysics      = "physics"
	SystemCollectibles = "collectibles"
	SystemPylons       = "pylons"
	SystemCountdown    = "countdown"
	SystemClock        = "clock"
)

type Option func(*Session)

// WithRecorder reports per-system frame timings.
func WithRecorder(r system.Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// Session is not safe for concurrent use.
type Session struct {
	ID string

	cfg      Config
	level    *level.Level
	bus      bus.EventBus
	log      log.Log
	recorder system.Recorder
	bindings Bindings
	notify   *notifier

	scope        *bus.Scope
	world        *physics.World
	state        *State
	vehicle      *Vehicle
	classifier   *SurfaceClassifier
	collectibles *Collectibles
	pylons       []*Pylon
	countdown    *Countdown
	controls     *Controls
	systems      *system.Manager
	release      []func()
	closed       bool
}

func NewSession(cfg Config, lvl *level.Level, b bus.EventBus, logger log.Log, opts ...Option) (*Session, error) {
	if lvl == nil {
		return nil, ErrNilLevel
	}
	if b == nil {
		return nil, ErrNilBus
	}
	if logger == nil {
		logger = log.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := lvl.Validate(); err != nil {
		return nil, errors.Wrapf(err, "level %s", lvl.Name)
	}
	bindings, err := cfg.Bindings()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		ID:       id,
		cfg:      cfg,
		level:    lvl,
		bus:      b,
		bindings: bindings,
		log:      logger.With(log.String("session", id), log.String("level", lvl.Name)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notify = &notifier{bus: b, source: "race/" + id, log: s.log}

	if err = s.build(); err != nil {
		s.teardown()
		return nil, err
	}
	s.state.announce()
	s.log.Info("session created",
		log.Int("checkpoints", lvl.MaxScore()),
		log.Int("pylons", len(lvl.Pylons)),
		log.String("digest", s.LevelDigest()),
	)
	return s, nil
}

func (s *Session) build() error {
	cfg, lvl := s.cfg, s.level
	mats := newMaterials()

	s.scope = bus.NewScope(s.bus)
	s.world = physics.NewWorld()
	s.world.Gravity = mgl64.Vec3{0, cfg.Physics.Gravity, 0}

	start := Pose{Position: lvl.Start.Position.Vec(), Rotation: lvl.Start.Quaternion()}
	s.state = newState(cfg.Fuel, lvl.MaxScore(), start, s.notify)

	s.vehicle = newVehicle(cfg, mats, start, s.state, s.notify)
	if err := s.vehicle.Attach(s.world); err != nil {
		return err
	}
	chassis := s.vehicle.Chassis()

	s.classifier = NewSurfaceClassifier(level.RoadMaterial, s.notify)
	s.classifier.Watch(chassis, s.vehicle.DetectionBody())
	for _, c := range lvl.Colliders {
		name, err := c.Surface.Material()
		if err != nil {
			return errors.Wrapf(err, "collider %s", c.Name)
		}
		body, err := s.addStatic(c.Name, mats.surface(name), c.Transform, c.HalfExtents, false)
		if err != nil {
			return err
		}
		s.release = append(s.release, body.OnCollide(s.classifier.Observe))
	}
	s.release = append(s.release, s.world.OnPostStep(func(float64) { s.classifier.Resolve() }))

	if err := s.subscribe(); err != nil {
		return err
	}

	s.collectibles = &Collectibles{}
	for _, cp := range lvl.Checkpoints {
		body, err := s.addStatic(cp.Name, mats.checkpoint, cp.Transform, cp.HalfExtents, true)
		if err != nil {
			return err
		}
		c := &Collectible{
			Kind:   KindCheckpoint,
			Name:   cp.Name,
			Award:  cp.FuelAward(cfg.Checkpoints.DefaultGas),
			body:   body,
			notify: s.notify,
			delay:  cfg.Checkpoints.DestroyDelay.Seconds(),
		}
		c.attach(chassis)
		s.collectibles.add(c)
	}

	body, err := s.addStatic("finish", mats.checkpoint, lvl.Finish.Transform, lvl.Finish.HalfExtents, true)
	if err != nil {
		return err
	}
	finish := &Collectible{
		Kind:      KindFinish,
		Name:      "finish",
		body:      body,
		notify:    s.notify,
		threshold: cfg.Checkpoints.FinishThreshold,
		canFinish: func() bool { return s.state.Phase() == PhaseRacing },
		onFinish:  s.finishRace,
	}
	if _, err = bus.SubscribeTyped(s.scope, events.CheckpointPassed, finish.countCheckpoint); err != nil {
		return err
	}
	finish.attach(chassis)
	s.collectibles.finish = finish

	s.pylons = s.pylons[:0]
	for _, p := range lvl.Pylons {
		// pylon extents are authored at model scale
		q := p.Quaternion()
		body := physics.NewBody(physics.BodyOptions{
			Name:        p.Name,
			Type:        physics.Dynamic,
			Mass:        cfg.Pylons.Mass,
			Material:    mats.bump,
			HalfExtents: p.HalfExtents.Vec().Mul(1 / cfg.Pylons.ExtentDivisor),
			Position:    p.Position.Vec().Add(mgl64.Vec3{0, cfg.Pylons.SpawnHeight, 0}),
			Quaternion:  &q,
		})
		if err := s.world.AddBody(body); err != nil {
			return errors.Wrapf(err, "pylon %s", p.Name)
		}
		pylon := &Pylon{Name: p.Name, body: body, notify: s.notify, window: cfg.Pylons.KickWindow.Seconds()}
		pylon.unsubscribe = body.OnCollide(pylon.onCollide)
		s.pylons = append(s.pylons, pylon)
	}

	s.countdown = NewCountdown(cfg.Countdown, s.notify)
	s.controls = NewControls(s.vehicle, s.Respawn)
	return s.registerSystems()
}

func (s *Session) addStatic(name string, mat *physics.Material, t level.Transform, half level.Vec3, sensor bool) (*physics.Body, error) {
	q := t.Quaternion()
	body := physics.NewBody(physics.BodyOptions{
		Name:        name,
		Type:        physics.Static,
		Material:    mat,
		HalfExtents: half.Vec(),
		Position:    t.Position.Vec(),
		Quaternion:  &q,
		NoResponse:  sensor,
	})
	if err := s.world.AddBody(body); err != nil {
		return nil, errors.Wrapf(err, "add %s", name)
	}
	return body, nil
}

// subscribe wires the session's own listeners. They go first so that state
// is updated before any later subscriber of the same topic runs.
func (s *Session) subscribe() error {
	if _, err := bus.SubscribeTyped(s.scope, events.CheckpointPassed, s.onCheckpointPassed); err != nil {
		return err
	}
	if _, err := s.scope.Subscribe(events.RaceStart, s.onRaceStart); err != nil {
		return err
	}
	_, err := bus.SubscribeTyped(s.scope, events.SurfaceChanged, func(p events.Surface) error {
		s.vehicle.SetSurface(p.Material)
		return nil
	})
	return err
}

func (s *Session) registerSystems() error {
	var opts []system.Option
	if s.recorder != nil {
		opts = append(opts, system.WithRecorder(s.recorder))
	}
	s.systems = system.NewManager(opts...)
	s.systems.OnSystemError(func(name string, err error) {
		s.log.Warn("system update failed", log.String("system", name), log.Error(err))
	})

	physicsCfg := s.cfg.Physics
	systems := []system.System{
		system.NewFunc(SystemControls, system.PriorityHighest, func(float64) error {
			s.controls.Apply()
			return nil
		}),
		system.NewFunc(SystemVehicle, system.PriorityHigh+100, func(float64) error {
			s.vehicle.Update()
			return nil
		}),
		system.NewFunc(SystemPhysics, system.PriorityHigh, func(dt float64) error {
			s.world.Step(physicsCfg.FixedStep, dt, physicsCfg.MaxSubSteps)
			return nil
		}),
		system.NewFunc(SystemCollectibles, system.PriorityNormal, func(dt float64) error {
			s.collectibles.Tick(dt)
			return nil
		}),
		system.NewFunc(SystemPylons, system.PriorityNormal, func(dt float64) error {
			for _, p := range s.pylons {
				p.Tick(dt)
			}
			return nil
		}),
		system.NewFunc(SystemCountdown, system.PriorityLow, func(dt float64) error {
			s.countdown.Update(dt)
			return nil
		}),
		system.NewFunc(SystemClock, system.PriorityLowest, func(dt float64) error {
			s.state.tick(dt)
			return nil
		}),
	}
	for _, sys := range systems {
		if err := s.systems.Register(sys); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) onCheckpointPassed(p events.Checkpoint) error {
	s.state.checkpointPassed(p.FuelAward, s.vehicle.Transform())
	s.log.Debug("checkpoint passed",
		log.String("checkpoint", p.Name),
		log.Float64("fuel", s.state.Fuel()),
		log.Int("score", s.state.Score()),
	)
	return nil
}

func (s *Session) onRaceStart(bus.Event) error {
	switch s.state.Phase() {
	case PhaseInit, PhaseCountdown:
		s.countdown.Cancel()
		s.state.setPhase(PhaseRacing)
		s.log.Info("race started")
	}
	return nil
}

func (s *Session) finishRace() {
	s.state.setPhase(PhaseFinished)
	s.controls.ReleaseAll()
	s.notify.publish(events.RaceFinish, events.Finish{
		Elapsed:  s.state.Clock(),
		Score:    s.state.Score(),
		MaxScore: s.state.MaxScore(),
	})
	s.log.Info("race finished",
		log.Float64("elapsed", s.state.Clock()),
		log.Int("score", s.state.Score()),
	)
}

// StartGame begins the start countdown.
func (s *Session) StartGame() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state.Phase() != PhaseInit {
		return errors.Wrapf(ErrWrongPhase, "start game in %s", s.state.Phase())
	}
	s.state.setPhase(PhaseCountdown)
	s.countdown.Start()
	return nil
}

// Update advances the session by one frame of dt seconds.
func (s *Session) Update(dt float64) error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.systems.Update(dt)
}

// OnControlPressed is ignored unless the race is running.
func (s *Session) OnControlPressed(c Control) {
	if s.closed || s.state.Phase() != PhaseRacing {
		return
	}
	s.controls.Press(c)
}

func (s *Session) OnControlReleased(c Control) {
	if s.closed || s.state.Phase() != PhaseRacing {
		return
	}
	s.controls.Release(c)
}

// PressKey maps a key name through the configured bindings.
func (s *Session) PressKey(key string) error {
	c, err := s.bindings.Lookup(key)
	if err != nil {
		return err
	}
	s.OnControlPressed(c)
	return nil
}

func (s *Session) ReleaseKey(key string) error {
	c, err := s.bindings.Lookup(key)
	if err != nil {
		return err
	}
	s.OnControlReleased(c)
	return nil
}

// Respawn puts the car back on the last checkpoint with the fuel it had there.
func (s *Session) Respawn() {
	if s.closed {
		return
	}
	last := s.state.LastCheckpoint()
	s.vehicle.MoveTo(last)
	s.state.restoreCheckpointFuel()
	s.vehicle.Stop()
	s.vehicle.SetSurface(level.RoadMaterial)
	s.classifier.Reset(level.RoadMaterial)

	rot := last.Rotation
	s.notify.publish(events.CheckpointLoad, events.Respawn{
		Position: [3]float64(last.Position),
		Rotation: [4]float64{rot.X(), rot.Y(), rot.Z(), rot.W},
		Fuel:     s.state.Fuel(),
	})
}

// Reset rebuilds the session from its level and returns to Init.
func (s *Session) Reset() error {
	if s.closed {
		return ErrSessionClosed
	}
	from := s.state.Phase()
	s.teardown()
	if err := s.build(); err != nil {
		return errors.Wrap(err, "reset session")
	}
	if from != PhaseInit {
		s.notify.publish(events.PhaseChanged, events.Phase{From: from.String(), To: PhaseInit.String()})
	}
	s.state.announce()
	s.log.Info("session reset")
	return nil
}

// Close releases every subscription and timer. It is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.teardown()
	s.log.Info("session closed")
	return nil
}

func (s *Session) teardown() {
	if s.countdown != nil {
		s.countdown.Cancel()
	}
	if s.collectibles != nil {
		s.collectibles.Cancel()
	}
	for _, p := range s.pylons {
		p.release()
	}
	for _, fn := range s.release {
		fn()
	}
	s.release = nil
	if s.vehicle != nil {
		if err := s.vehicle.Detach(); err != nil {
			s.log.Warn("detach vehicle", log.Error(err))
		}
	}
	if s.scope != nil {
		if err := s.scope.Close(); err != nil {
			s.log.Warn("close subscriptions", log.Error(err))
		}
	}
}

// LevelDigest is the hex xxhash of the level document, "" for levels built
// in code.
func (s *Session) LevelDigest() string {
	if d := s.level.Digest(); d != 0 {
		return fmt.Sprintf("%016x", d)
	}
	return ""
}

func (s *Session) Level() *level.Level         { return s.level }
func (s *Session) Config() Config              { return s.cfg }
func (s *Session) State() *State               { return s.state }
func (s *Session) Phase() Phase                { return s.state.Phase() }
func (s *Session) Vehicle() *Vehicle           { return s.vehicle }
func (s *Session) World() *physics.World       { return s.world }
func (s *Session) Collectibles() *Collectibles { return s.collectibles }
func (s *Session) Pylons() []*Pylon            { return s.pylons }
func (s *Session) Surface() string             { return s.classifier.Current() }
func (s *Session) Countdown() *Countdown       { return s.countdown }
func (s *Session) Systems() *system.Manager    { return s.systems }
func (s *Session) Controls() []Control         { return s.controls.Pressed() }
