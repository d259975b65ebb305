package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RayOptions filter the bodies a ray may hit.
type RayOptions struct {
	CollisionFilterGroup int
	CollisionFilterMask  int
	// Skip is never hit, typically the body casting the ray.
	Skip *Body
	// CheckCollisionResponse ignores bodies without collision response.
	CheckCollisionResponse bool
}

// DefaultRayOptions hits every responsive body.
func DefaultRayOptions() RayOptions {
	return RayOptions{CollisionFilterGroup: -1, CollisionFilterMask: -1, CheckCollisionResponse: true}
}

type RaycastResult struct {
	HasHit    bool
	Body      *Body
	HitPoint  mgl64.Vec3
	HitNormal mgl64.Vec3
	Distance  float64
}

// RaycastClosest returns the nearest box face hit by the segment from-to.
// Rays starting inside a box do not hit that box.
func (w *World) RaycastClosest(from, to mgl64.Vec3, opts RayOptions) RaycastResult {
	dir := to.Sub(from)
	length := dir.Len()
	if length == 0 {
		return RaycastResult{}
	}
	dir = dir.Mul(1 / length)

	best := RaycastResult{Distance: math.Inf(1)}
	for _, b := range w.bodies {
		if b == opts.Skip {
			continue
		}
		if opts.CheckCollisionResponse && !b.CollisionResponse {
			continue
		}
		if b.CollisionFilterGroup&opts.CollisionFilterMask == 0 || opts.CollisionFilterGroup&b.CollisionFilterMask == 0 {
			continue
		}
		t, n, ok := rayBox(from, dir, b)
		if !ok || t > length || t >= best.Distance {
			continue
		}
		best = RaycastResult{
			HasHit:    true,
			Body:      b,
			HitPoint:  from.Add(dir.Mul(t)),
			HitNormal: n,
			Distance:  t,
		}
	}
	if !best.HasHit {
		return RaycastResult{}
	}
	return best
}

// rayBox is a slab test in the box frame. dir must be normalized.
func rayBox(from, dir mgl64.Vec3, b *Body) (float64, mgl64.Vec3, bool) {
	inv := b.Quaternion.Conjugate()
	o := inv.Rotate(from.Sub(b.Position))
	d := inv.Rotate(dir)
	h := b.Shape.HalfExtents

	tmin, tmax := math.Inf(-1), math.Inf(1)
	axis, sign := -1, 0.0
	for k := 0; k < 3; k++ {
		if math.Abs(d[k]) < 1e-12 {
			if o[k] < -h[k] || o[k] > h[k] {
				return 0, mgl64.Vec3{}, false
			}
			continue
		}
		t1 := (-h[k] - o[k]) / d[k]
		t2 := (h[k] - o[k]) / d[k]
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1
		}
		if t1 > tmin {
			tmin = t1
			axis, sign = k, s
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, mgl64.Vec3{}, false
		}
	}
	if axis < 0 || tmin < 0 {
		return 0, mgl64.Vec3{}, false
	}
	var local mgl64.Vec3
	local[axis] = sign
	return tmin, b.Quaternion.Rotate(local), true
}
