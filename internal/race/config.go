package race

import (
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidConfig = errors.New("invalid race config")

// Config holds every tunable of a race session.
type Config struct {
	Physics     PhysicsConfig     `yaml:"physics"`
	Vehicle     VehicleConfig     `yaml:"vehicle"`
	Wheels      WheelConfig       `yaml:"wheels"`
	Fuel        FuelConfig        `yaml:"fuel"`
	Checkpoints CheckpointConfig  `yaml:"checkpoints"`
	Pylons      PylonConfig       `yaml:"pylons"`
	Countdown   CountdownConfig   `yaml:"countdown"`
	Keys        map[string]string `yaml:"keys"`
}

type PhysicsConfig struct {
	FixedStep   float64 `yaml:"fixedStep"`
	MaxSubSteps int     `yaml:"maxSubSteps"`
	Gravity     float64 `yaml:"gravity"`
}

type VehicleConfig struct {
	Mass                 float64    `yaml:"mass"`
	HalfExtents          [3]float64 `yaml:"halfExtents"`
	DetectionHalfExtents [3]float64 `yaml:"detectionHalfExtents"`
	ForceForward         float64    `yaml:"forceForward"`
	ForceForwardGrass    float64    `yaml:"forceForwardGrass"`
	ForceBackward        float64    `yaml:"forceBackward"`
	BrakeForce           float64    `yaml:"brakeForce"`
	MaxSteer             float64    `yaml:"maxSteer"`
}

type WheelConfig struct {
	Radius               float64 `yaml:"radius"`
	SuspensionStiffness  float64 `yaml:"suspensionStiffness"`
	SuspensionRestLength float64 `yaml:"suspensionRestLength"`
	MaxSuspensionTravel  float64 `yaml:"maxSuspensionTravel"`
	MaxSuspensionForce   float64 `yaml:"maxSuspensionForce"`
	FrictionSlip         float64 `yaml:"frictionSlip"`
	DampingRelaxation    float64 `yaml:"dampingRelaxation"`
	DampingCompression   float64 `yaml:"dampingCompression"`
	RollInfluence        float64 `yaml:"rollInfluence"`
	// ConnectionPoints are chassis-local: front left, front right, rear left, rear right.
	// The first two wheels steer and drive.
	ConnectionPoints [][3]float64 `yaml:"connectionPoints"`
}

type FuelConfig struct {
	Start        float64 `yaml:"start"`
	Max          float64 `yaml:"max"`
	BurnPerFrame float64 `yaml:"burnPerFrame"`
}

type CheckpointConfig struct {
	DefaultGas      float64       `yaml:"defaultGas"`
	DestroyDelay    time.Duration `yaml:"destroyDelay"`
	FinishThreshold int           `yaml:"finishThreshold"`
}

type PylonConfig struct {
	Mass          float64       `yaml:"mass"`
	ExtentDivisor float64       `yaml:"extentDivisor"`
	SpawnHeight   float64       `yaml:"spawnHeight"`
	KickWindow    time.Duration `yaml:"kickWindow"`
}

type CountdownConfig struct {
	Delay  time.Duration `yaml:"delay"`
	Step   time.Duration `yaml:"step"`
	Labels []string      `yaml:"labels"`
}

// DefaultConfig returns the tuning of the stock car and track rules.
func DefaultConfig() Config {
	return Config{
		Physics: PhysicsConfig{
			FixedStep:   1.0 / 60,
			MaxSubSteps: 3,
			Gravity:     -9.82,
		},
		Vehicle: VehicleConfig{
			Mass:                 170,
			HalfExtents:          [3]float64{1.2, 0.5, 1.6},
			DetectionHalfExtents: [3]float64{1.2, 1.5, 1.6},
			ForceForward:         1000,
			ForceForwardGrass:    300,
			ForceBackward:        500,
			BrakeForce:           5,
			MaxSteer:             1,
		},
		Wheels: WheelConfig{
			Radius:               0.3,
			SuspensionStiffness:  30,
			SuspensionRestLength: 0.7,
			MaxSuspensionTravel:  0.6,
			MaxSuspensionForce:   100000,
			FrictionSlip:         2,
			DampingRelaxation:    8,
			DampingCompression:   10,
			RollInfluence:        0.01,
			ConnectionPoints: [][3]float64{
				{-1.2, 0, 1.1},
				{1.2, 0, 1.1},
				{-1.2, 0, -1.2},
				{1.2, 0, -1.2},
			},
		},
		Fuel: FuelConfig{
			Start:        100,
			Max:          100,
			BurnPerFrame: 0.05,
		},
		Checkpoints: CheckpointConfig{
			DefaultGas:      15,
			DestroyDelay:    2 * time.Second,
			FinishThreshold: 8,
		},
		Pylons: PylonConfig{
			Mass:          0.01,
			ExtentDivisor: 16,
			SpawnHeight:   5,
			KickWindow:    2 * time.Second,
		},
		Countdown: CountdownConfig{
			Delay:  1500 * time.Millisecond,
			Step:   time.Second,
			Labels: []string{"3", "2", "1", "GO!"},
		},
		Keys: map[string]string{
			"w":     "forward",
			"s":     "reverse",
			"a":     "steer-left",
			"d":     "steer-right",
			"space": "brake",
			"r":     "reset",
		},
	}
}

func (c Config) Validate() error {
	switch {
	case c.Physics.FixedStep <= 0:
		return errors.Wrap(ErrInvalidConfig, "physics.fixedStep must be positive")
	case c.Physics.MaxSubSteps < 0:
		return errors.Wrap(ErrInvalidConfig, "physics.maxSubSteps must not be negative")
	case c.Vehicle.Mass <= 0:
		return errors.Wrap(ErrInvalidConfig, "vehicle.mass must be positive")
	case !positive(c.Vehicle.HalfExtents) || !positive(c.Vehicle.DetectionHalfExtents):
		return errors.Wrap(ErrInvalidConfig, "vehicle extents must be positive")
	case c.Vehicle.ForceForward < 0 || c.Vehicle.ForceForwardGrass < 0 || c.Vehicle.ForceBackward < 0 || c.Vehicle.BrakeForce < 0:
		return errors.Wrap(ErrInvalidConfig, "vehicle forces must not be negative")
	case c.Wheels.Radius <= 0 || c.Wheels.SuspensionRestLength <= 0:
		return errors.Wrap(ErrInvalidConfig, "wheel radius and rest length must be positive")
	case len(c.Wheels.ConnectionPoints) != 4:
		return errors.Wrapf(ErrInvalidConfig, "need 4 wheel connection points, got %d", len(c.Wheels.ConnectionPoints))
	case c.Fuel.Max <= 0 || c.Fuel.Start < 0 || c.Fuel.Start > c.Fuel.Max:
		return errors.Wrap(ErrInvalidConfig, "fuel.start must lie in [0, fuel.max]")
	case c.Fuel.BurnPerFrame < 0:
		return errors.Wrap(ErrInvalidConfig, "fuel.burnPerFrame must not be negative")
	case c.Checkpoints.DefaultGas < 0 || c.Checkpoints.DestroyDelay < 0 || c.Checkpoints.FinishThreshold < 0:
		return errors.Wrap(ErrInvalidConfig, "checkpoint settings must not be negative")
	case c.Pylons.Mass <= 0 || c.Pylons.ExtentDivisor <= 0:
		return errors.Wrap(ErrInvalidConfig, "pylon mass and extent divisor must be positive")
	case len(c.Countdown.Labels) == 0:
		return errors.Wrap(ErrInvalidConfig, "countdown needs at least one label")
	}
	if _, err := c.Bindings(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

func positive(v [3]float64) bool {
	return v[0] > 0 && v[1] > 0 && v[2] > 0
}
