package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaycastClosest(t *testing.T) {
	w := NewWorld()
	ground := newGround(t, w, mgl64.Vec3{10, 0.5, 10})
	sensor := NewBody(BodyOptions{Type: Static, HalfExtents: mgl64.Vec3{1, 1, 1}, Position: mgl64.Vec3{0, 3, 0}, NoResponse: true})
	require.NoError(t, w.AddBody(sensor))

	from, to := mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -5, 0}

	tests := []struct {
		name    string
		from    mgl64.Vec3
		opts    func() RayOptions
		hit     bool
		body    *Body
		point   mgl64.Vec3
		normal  mgl64.Vec3
		distant float64
	}{
		{
			name:    "hits top face",
			from:    from,
			opts:    DefaultRayOptions,
			hit:     true,
			body:    ground,
			point:   mgl64.Vec3{0, 0.5, 0},
			normal:  mgl64.Vec3{0, 1, 0},
			distant: 4.5,
		},
		{
			name: "skips body",
			from: from,
			opts: func() RayOptions {
				o := DefaultRayOptions()
				o.Skip = ground
				return o
			},
		},
		{
			name: "filter mismatch",
			from: from,
			opts: func() RayOptions {
				o := DefaultRayOptions()
				o.CollisionFilterMask = 2
				return o
			},
		},
		{
			name: "sensor when response not checked",
			from: from,
			opts: func() RayOptions {
				o := DefaultRayOptions()
				o.CheckCollisionResponse = false
				return o
			},
			hit:     true,
			body:    sensor,
			point:   mgl64.Vec3{0, 4, 0},
			normal:  mgl64.Vec3{0, 1, 0},
			distant: 1,
		},
		{
			name: "starts inside",
			from: mgl64.Vec3{0, 0, 0},
			opts: DefaultRayOptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := w.RaycastClosest(tt.from, to, tt.opts())
			require.Equal(t, tt.hit, res.HasHit)
			if !tt.hit {
				return
			}
			assert.Same(t, tt.body, res.Body)
			assert.InDelta(t, tt.distant, res.Distance, 1e-9)
			for k := 0; k < 3; k++ {
				assert.InDelta(t, tt.point[k], res.HitPoint[k], 1e-9)
				assert.InDelta(t, tt.normal[k], res.HitNormal[k], 1e-9)
			}
		})
	}
}

func TestRaycastTooShort(t *testing.T) {
	w := NewWorld()
	newGround(t, w, mgl64.Vec3{10, 0.5, 10})
	res := w.RaycastClosest(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, 2, 0}, DefaultRayOptions())
	assert.False(t, res.HasHit)
	assert.False(t, w.RaycastClosest(mgl64.Vec3{}, mgl64.Vec3{}, DefaultRayOptions()).HasHit)
}

func TestRaycastRotatedBox(t *testing.T) {
	w := NewWorld()
	q := mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 0, 1})
	box := NewBody(BodyOptions{Type: Static, HalfExtents: mgl64.Vec3{2, 0.5, 1}, Quaternion: &q})
	require.NoError(t, w.AddBody(box))

	// rotated so that the long x extent now spans y
	res := w.RaycastClosest(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -5, 0}, DefaultRayOptions())
	require.True(t, res.HasHit)
	assert.InDelta(t, 3, res.Distance, 1e-9)
	assert.InDelta(t, 1, res.HitNormal.Y(), 1e-9)
}
