// Package level loads track descriptions: static colliders tagged with a
// surface, gas checkpoints, the finish volume, pylons and the start pose.
package level

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Material names shared by level geometry and the car.
const (
	RoadMaterial       = "roadMaterial"
	GrassMaterial      = "grassMaterial"
	CheckpointMaterial = "checkpointMaterial"
	CarMaterial        = "carMaterial"
	BumpMaterial       = "bumpMaterial"
)

var (
	ErrNoFinish       = errors.New("level has no finish")
	ErrNoColliders    = errors.New("level has no colliders")
	ErrBadExtents     = errors.New("half extents must be positive")
	ErrBadRotation    = errors.New("rotation must be a non-zero quaternion")
	ErrDuplicateName  = errors.New("duplicate name")
	ErrUnknownSurface = errors.New("unknown surface")
	ErrNegativeGas    = errors.New("gas award must not be negative")
)

type Vec3 [3]float64

func (v Vec3) Vec() mgl64.Vec3 { return mgl64.Vec3(v) }

// Quat is stored as x, y, z, w.
type Quat [4]float64

type Surface string

const (
	SurfaceRoad  Surface = "road"
	SurfaceGrass Surface = "grass"
)

// Material maps a surface onto the physics material name. An empty surface
// is road.
func (s Surface) Material() (string, error) {
	switch s {
	case "", SurfaceRoad:
		return RoadMaterial, nil
	case SurfaceGrass:
		return GrassMaterial, nil
	default:
		return "", errors.Wrapf(ErrUnknownSurface, "%q", string(s))
	}
}

type Transform struct {
	Position Vec3  `yaml:"position"`
	Rotation *Quat `yaml:"rotation,omitempty"`
}

// Quaternion returns the rotation, identity when none was authored.
func (t Transform) Quaternion() mgl64.Quat {
	if t.Rotation == nil {
		return mgl64.QuatIdent()
	}
	r := *t.Rotation
	return mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Normalize()
}

type Collider struct {
	Name        string  `yaml:"name"`
	Surface     Surface `yaml:"surface"`
	Transform   `yaml:",inline"`
	HalfExtents Vec3 `yaml:"halfExtents"`
}

type Checkpoint struct {
	Name        string `yaml:"name"`
	Transform   `yaml:",inline"`
	HalfExtents Vec3 `yaml:"halfExtents"`
	// Gas overrides the default fuel award.
	Gas *float64 `yaml:"gas,omitempty"`
}

// FuelAward returns the authored award or def.
func (c Checkpoint) FuelAward(def float64) float64 {
	if c.Gas == nil {
		return def
	}
	return *c.Gas
}

type Finish struct {
	Transform   `yaml:",inline"`
	HalfExtents Vec3 `yaml:"halfExtents"`
}

type Pylon struct {
	Name        string `yaml:"name"`
	Transform   `yaml:",inline"`
	HalfExtents Vec3 `yaml:"halfExtents"`
}

type Level struct {
	Name        string       `yaml:"name"`
	Start       Transform    `yaml:"start"`
	Colliders   []Collider   `yaml:"colliders"`
	Checkpoints []Checkpoint `yaml:"checkpoints"`
	Finish      *Finish      `yaml:"finish"`
	Pylons      []Pylon      `yaml:"pylons"`

	digest uint64
}

// Load reads and validates a level file.
func Load(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read level %s", path)
	}
	lvl, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "level %s", path)
	}
	return lvl, nil
}

// Parse decodes and validates a level document. Unknown keys are rejected.
func Parse(data []byte) (*Level, error) {
	var lvl Level
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&lvl); err != nil {
		return nil, errors.Wrap(err, "decode level")
	}
	if err := lvl.Validate(); err != nil {
		return nil, err
	}
	lvl.digest = xxhash.Sum64(data)
	return &lvl, nil
}

// Validate checks that every referenced piece of geometry is usable.
func (l *Level) Validate() error {
	if len(l.Colliders) == 0 {
		return ErrNoColliders
	}
	if l.Finish == nil {
		return ErrNoFinish
	}
	if err := checkRotation(l.Start.Rotation); err != nil {
		return errors.Wrap(err, "start")
	}

	names := make(map[string]struct{})
	unique := func(kind, name string) error {
		if name == "" {
			return nil
		}
		key := kind + "/" + name
		if _, ok := names[key]; ok {
			return errors.Wrapf(ErrDuplicateName, "%s %q", kind, name)
		}
		names[key] = struct{}{}
		return nil
	}

	for i, c := range l.Colliders {
		where := label("collider", c.Name, i)
		if err := unique("collider", c.Name); err != nil {
			return err
		}
		if _, err := c.Surface.Material(); err != nil {
			return errors.Wrap(err, where)
		}
		if err := checkShape(c.HalfExtents, c.Rotation); err != nil {
			return errors.Wrap(err, where)
		}
	}
	for i, c := range l.Checkpoints {
		where := label("checkpoint", c.Name, i)
		if err := unique("checkpoint", c.Name); err != nil {
			return err
		}
		if err := checkShape(c.HalfExtents, c.Rotation); err != nil {
			return errors.Wrap(err, where)
		}
		if c.Gas != nil && *c.Gas < 0 {
			return errors.Wrap(ErrNegativeGas, where)
		}
	}
	if err := checkShape(l.Finish.HalfExtents, l.Finish.Rotation); err != nil {
		return errors.Wrap(err, "finish")
	}
	for i, p := range l.Pylons {
		where := label("pylon", p.Name, i)
		if err := unique("pylon", p.Name); err != nil {
			return err
		}
		if err := checkShape(p.HalfExtents, p.Rotation); err != nil {
			return errors.Wrap(err, where)
		}
	}
	return nil
}

// MaxScore is the number of gas checkpoints, fixed at load time.
func (l *Level) MaxScore() int { return len(l.Checkpoints) }

// Digest identifies the source document. Zero for levels built in code.
func (l *Level) Digest() uint64 { return l.digest }

func checkShape(half Vec3, rot *Quat) error {
	if half[0] <= 0 || half[1] <= 0 || half[2] <= 0 {
		return errors.Wrapf(ErrBadExtents, "%v", half)
	}
	return checkRotation(rot)
}

func checkRotation(rot *Quat) error {
	if rot == nil {
		return nil
	}
	r := *rot
	if r[0] == 0 && r[1] == 0 && r[2] == 0 && r[3] == 0 {
		return ErrBadRotation
	}
	return nil
}

func label(kind, name string, i int) string {
	if name == "" {
		return fmt.Sprintf("%s #%d", kind, i)
	}
	return fmt.Sprintf("%s %q", kind, name)
}
