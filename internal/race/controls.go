package race

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownControl = errors.New("unknown control")

// Control is one driver intent delivered by the input layer.
type Control uint8

const (
	Forward Control = iota
	Reverse
	SteerLeft
	SteerRight
	Brake
	ResetToCheckpoint
)

var controlNames = map[Control]string{
	Forward:           "forward",
	Reverse:           "reverse",
	SteerLeft:         "steer-left",
	SteerRight:        "steer-right",
	Brake:             "brake",
	ResetToCheckpoint: "reset",
}

func (c Control) String() string {
	if name, ok := controlNames[c]; ok {
		return name
	}
	return "unknown"
}

func ParseControl(name string) (Control, error) {
	for c, n := range controlNames {
		if n == name {
			return c, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownControl, "%q", name)
}

// Bindings map key names onto controls.
type Bindings map[string]Control

// Bindings resolves the configured key map.
func (c Config) Bindings() (Bindings, error) {
	b := make(Bindings, len(c.Keys))
	for key, name := range c.Keys {
		ctrl, err := ParseControl(name)
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", key)
		}
		b[normalizeKey(key)] = ctrl
	}
	return b, nil
}

// Lookup accepts browser key names; " " is "space".
func (b Bindings) Lookup(key string) (Control, error) {
	ctrl, ok := b[normalizeKey(key)]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownControl, "key %q", key)
	}
	return ctrl, nil
}

func normalizeKey(key string) string {
	if key == " " {
		return "space"
	}
	return strings.ToLower(strings.TrimSpace(key))
}

// ThrottleDirection selects forward or reverse drive.
type ThrottleDirection uint8

const (
	ThrottleForward ThrottleDirection = iota
	ThrottleReverse
)

// SteerDirection values are the sign of the steering angle.
type SteerDirection int8

const (
	SteerRightDir  SteerDirection = -1
	SteerCenterDir SteerDirection = 0
	SteerLeftDir   SteerDirection = 1
)

// Driver is what controls act on.
type Driver interface {
	ApplyThrottle(dir ThrottleDirection, magnitude float64)
	ApplySteer(dir SteerDirection)
	ApplyBrake(intensity float64)
}

// Controls keeps the held controls in press order and replays them every frame.
type Controls struct {
	driver  Driver
	respawn func()
	pressed []Control
}

func NewControls(driver Driver, respawn func()) *Controls {
	return &Controls{driver: driver, respawn: respawn}
}

// Press records a held control. ResetToCheckpoint fires at once and is never held.
func (c *Controls) Press(ctrl Control) {
	if ctrl == ResetToCheckpoint {
		if c.respawn != nil {
			c.respawn()
		}
		return
	}
	if c.Held(ctrl) {
		return
	}
	c.pressed = append(c.pressed, ctrl)
}

// Release drops a held control and applies its release action. Controls that
// are not held are ignored.
func (c *Controls) Release(ctrl Control) {
	for i, cur := range c.pressed {
		if cur == ctrl {
			c.pressed = append(c.pressed[:i], c.pressed[i+1:]...)
			c.released(ctrl)
			return
		}
	}
}

// ReleaseAll releases every held control in press order.
func (c *Controls) ReleaseAll() {
	held := c.pressed
	c.pressed = nil
	for _, ctrl := range held {
		c.released(ctrl)
	}
}

func (c *Controls) Held(ctrl Control) bool {
	for _, cur := range c.pressed {
		if cur == ctrl {
			return true
		}
	}
	return false
}

func (c *Controls) Pressed() []Control {
	return append([]Control(nil), c.pressed...)
}

// Apply replays the held controls onto the driver.
func (c *Controls) Apply() {
	for _, ctrl := range c.pressed {
		switch ctrl {
		case Forward:
			c.driver.ApplyThrottle(ThrottleForward, 1)
		case Reverse:
			c.driver.ApplyThrottle(ThrottleReverse, 1)
		case SteerLeft:
			c.driver.ApplySteer(SteerLeftDir)
		case SteerRight:
			c.driver.ApplySteer(SteerRightDir)
		case Brake:
			c.driver.ApplyBrake(1)
		}
	}
}

func (c *Controls) released(ctrl Control) {
	switch ctrl {
	case Forward:
		c.driver.ApplyThrottle(ThrottleForward, 0)
	case Reverse:
		c.driver.ApplyThrottle(ThrottleReverse, 0)
	case SteerLeft, SteerRight:
		c.driver.ApplySteer(SteerCenterDir)
	case Brake:
		c.driver.ApplyBrake(0)
	}
}
