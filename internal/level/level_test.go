package level

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	lvl, err := Load("testdata/loop.yaml")
	require.NoError(t, err)

	assert.Equal(t, "test-loop", lvl.Name)
	assert.Len(t, lvl.Colliders, 2)
	assert.Equal(t, 2, lvl.MaxScore())
	require.NotNil(t, lvl.Finish)
	assert.Len(t, lvl.Pylons, 1)

	mat, err := lvl.Colliders[1].Surface.Material()
	require.NoError(t, err)
	assert.Equal(t, GrassMaterial, mat)

	assert.Equal(t, 15.0, lvl.Checkpoints[0].FuelAward(15))
	assert.Equal(t, 25.0, lvl.Checkpoints[1].FuelAward(15))
	assert.Equal(t, Vec3{0, 1.5, 30}, lvl.Checkpoints[1].Position)
	assert.NotZero(t, lvl.Digest())

	q := lvl.Start.Quaternion()
	assert.InDelta(t, 1, q.W, 1e-12)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read level")
}

func TestLoadNoFinish(t *testing.T) {
	_, err := Load("testdata/no_finish.yaml")
	assert.ErrorIs(t, err, ErrNoFinish)
}

func TestParseDigest(t *testing.T) {
	doc := []byte(`
colliders:
  - {name: road, position: [0, 0, 0], halfExtents: [5, 0.5, 5]}
finish: {position: [0, 1, 4], halfExtents: [2, 1, 0.5]}
`)
	lvl, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, xxhash.Sum64(doc), lvl.Digest())
	assert.Zero(t, lvl.MaxScore())

	mat, err := lvl.Colliders[0].Surface.Material()
	require.NoError(t, err)
	assert.Equal(t, RoadMaterial, mat)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		err  error
	}{
		{
			name: "no colliders",
			doc:  `finish: {position: [0, 0, 0], halfExtents: [1, 1, 1]}`,
			err:  ErrNoColliders,
		},
		{
			name: "unknown surface",
			doc: `
colliders: [{name: c, surface: ice, position: [0, 0, 0], halfExtents: [1, 1, 1]}]
finish: {position: [0, 0, 0], halfExtents: [1, 1, 1]}`,
			err: ErrUnknownSurface,
		},
		{
			name: "flat collider",
			doc: `
colliders: [{name: c, position: [0, 0, 0], halfExtents: [1, 0, 1]}]
finish: {position: [0, 0, 0], halfExtents: [1, 1, 1]}`,
			err: ErrBadExtents,
		},
		{
			name: "duplicate checkpoint",
			doc: `
colliders: [{name: c, position: [0, 0, 0], halfExtents: [1, 1, 1]}]
checkpoints:
  - {name: gas, position: [0, 0, 0], halfExtents: [1, 1, 1]}
  - {name: gas, position: [0, 0, 5], halfExtents: [1, 1, 1]}
finish: {position: [0, 0, 0], halfExtents: [1, 1, 1]}`,
			err: ErrDuplicateName,
		},
		{
			name: "negative gas",
			doc: `
colliders: [{name: c, position: [0, 0, 0], halfExtents: [1, 1, 1]}]
checkpoints: [{name: gas, gas: -3, position: [0, 0, 0], halfExtents: [1, 1, 1]}]
finish: {position: [0, 0, 0], halfExtents: [1, 1, 1]}`,
			err: ErrNegativeGas,
		},
		{
			name: "zero rotation",
			doc: `
colliders: [{name: c, position: [0, 0, 0], rotation: [0, 0, 0, 0], halfExtents: [1, 1, 1]}]
finish: {position: [0, 0, 0], halfExtents: [1, 1, 1]}`,
			err: ErrBadRotation,
		},
		{
			name: "bad finish",
			doc: `
colliders: [{name: c, position: [0, 0, 0], halfExtents: [1, 1, 1]}]
finish: {position: [0, 0, 0], halfExtents: [1, -1, 1]}`,
			err: ErrBadExtents,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseUnknownKey(t *testing.T) {
	_, err := Parse([]byte(`
colliders: [{name: c, position: [0, 0, 0], halfExtents: [1, 1, 1], colour: red}]
finish: {position: [0, 0, 0], halfExtents: [1, 1, 1]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode level")
}
