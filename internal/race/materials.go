package race

import (
	"github.com/zeusync/racer/internal/core/physics"
	"github.com/zeusync/racer/internal/level"
)

// materials are the contact materials of one session's world.
type materials struct {
	road, grass, checkpoint, car, bump *physics.Material
}

func newMaterials() materials {
	return materials{
		road:       &physics.Material{Name: level.RoadMaterial, Friction: 0.3},
		grass:      &physics.Material{Name: level.GrassMaterial, Friction: 0.3},
		checkpoint: &physics.Material{Name: level.CheckpointMaterial},
		car:        &physics.Material{Name: level.CarMaterial, Friction: 0.3},
		bump:       &physics.Material{Name: level.BumpMaterial, Friction: 0.3, Restitution: 0.2},
	}
}

func (m materials) surface(name string) *physics.Material {
	if name == level.GrassMaterial {
		return m.grass
	}
	return m.road
}
