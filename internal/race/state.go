package race

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/racer/internal/race/events"
)

// Phase is the race lifecycle position.
type Phase uint8

const (
	PhaseInit Phase = iota
	PhaseCountdown
	PhaseRacing
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseCountdown:
		return "countdown"
	case PhaseRacing:
		return "racing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Pose is a world position and orientation.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// State is the authoritative race state. Every mutation is applied before
// the matching notification goes out.
type State struct {
	notify *notifier

	phase    Phase
	fuel     float64
	maxFuel  float64
	score    int
	maxScore int
	clock    float64

	lastCheckpoint   Pose
	fuelAtCheckpoint float64
}

func newState(cfg FuelConfig, maxScore int, start Pose, n *notifier) *State {
	fuel := clamp(cfg.Start, 0, cfg.Max)
	return &State{
		notify:           n,
		fuel:             fuel,
		maxFuel:          cfg.Max,
		maxScore:         maxScore,
		lastCheckpoint:   start,
		fuelAtCheckpoint: fuel,
	}
}

func (s *State) Phase() Phase              { return s.phase }
func (s *State) Fuel() float64             { return s.fuel }
func (s *State) MaxFuel() float64          { return s.maxFuel }
func (s *State) Score() int                { return s.score }
func (s *State) MaxScore() int             { return s.maxScore }
func (s *State) LastCheckpoint() Pose      { return s.lastCheckpoint }
func (s *State) FuelAtCheckpoint() float64 { return s.fuelAtCheckpoint }

// Clock is the race time in seconds. It only runs while racing.
func (s *State) Clock() float64 { return s.clock }

func (s *State) setPhase(p Phase) {
	if s.phase == p {
		return
	}
	from := s.phase
	s.phase = p
	s.notify.publish(events.PhaseChanged, events.Phase{From: from.String(), To: p.String()})
}

func (s *State) tick(dt float64) {
	if s.phase == PhaseRacing {
		s.clock += dt
	}
}

// burn takes amount off the tank. It reports false and changes nothing when
// the tank is already empty.
func (s *State) burn(amount float64) bool {
	if s.fuel <= 0 {
		return false
	}
	s.changeFuel(-amount)
	return true
}

func (s *State) changeFuel(delta float64) {
	s.setFuel(s.fuel + delta)
}

func (s *State) setFuel(v float64) {
	before := s.fuel
	s.fuel = clamp(v, 0, s.maxFuel)
	s.notify.publish(events.FuelUpdated, events.Fuel{Fuel: s.fuel, Delta: s.fuel - before})
}

// checkpointPassed awards fuel and a point and records the respawn pose.
func (s *State) checkpointPassed(award float64, at Pose) {
	s.changeFuel(award)
	if s.score < s.maxScore {
		s.score++
	}
	s.lastCheckpoint = at
	s.fuelAtCheckpoint = s.fuel
	s.notify.publish(events.ScoreUpdated, events.Score{Score: s.score, MaxScore: s.maxScore})
}

// announce publishes the current fuel and score so subscribers start from
// the same values as the state.
func (s *State) announce() {
	s.notify.publish(events.FuelUpdated, events.Fuel{Fuel: s.fuel})
	s.notify.publish(events.ScoreUpdated, events.Score{Score: s.score, MaxScore: s.maxScore})
}

func (s *State) restoreCheckpointFuel() {
	s.setFuel(s.fuelAtCheckpoint)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
