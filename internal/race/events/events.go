// Package events names the notifications a race session publishes and the
// payload carried by each of them. Payloads are plain values so that any
// subscriber (metrics, the websocket bridge, tests) can use them without
// depending on the session.
package events

// Topics.
const (
	CheckpointPassed  = "checkpoint-passed"
	CheckpointRemoved = "checkpoint-removed"
	CheckpointLoad    = "checkpoint-load"
	RaceStart         = "race-start"
	RaceFinish        = "race-finish"
	SurfaceChanged    = "surface-changed"
	FuelUpdated       = "fuel-updated"
	ScoreUpdated      = "score-updated"
	Countdown         = "countdown"
	Throttle          = "throttle"
	Brake             = "brake"
	Bump              = "bump"
	PhaseChanged      = "phase-changed"
)

// All lists every topic, in the order above.
var All = []string{
	CheckpointPassed, CheckpointRemoved, CheckpointLoad,
	RaceStart, RaceFinish, SurfaceChanged,
	FuelUpdated, ScoreUpdated, Countdown,
	Throttle, Brake, Bump, PhaseChanged,
}

// Checkpoint is carried by checkpoint-passed and checkpoint-removed.
type Checkpoint struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	FuelAward float64 `json:"fuelAward"`
}

// Respawn is carried by checkpoint-load.
type Respawn struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"` // x, y, z, w
	Fuel     float64    `json:"fuel"`
}

// Start is carried by race-start.
type Start struct{}

// Finish is carried by race-finish. Elapsed is the race clock in seconds.
type Finish struct {
	Elapsed  float64 `json:"elapsed"`
	Score    int     `json:"score"`
	MaxScore int     `json:"maxScore"`
}

type Surface struct {
	Material string `json:"material"`
}

// Fuel is carried by fuel-updated. Delta is the applied change after clamping.
type Fuel struct {
	Fuel  float64 `json:"fuel"`
	Delta float64 `json:"delta"`
}

type Score struct {
	Score    int `json:"score"`
	MaxScore int `json:"maxScore"`
}

type Tick struct {
	Label string `json:"label"`
}

type ThrottleState struct {
	Active bool `json:"active"`
}

type BrakeState struct {
	Intensity float64 `json:"intensity"`
}

type BumpHit struct {
	Pylon string `json:"pylon"`
}

type Phase struct {
	From string `json:"from"`
	To   string `json:"to"`
}
