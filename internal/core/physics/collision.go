package physics

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	penetrationSlop    = 0.01
	positionCorrection = 0.8
	restitutionSpeed   = 1.0
	cornerTolerance    = 0.01
)

type contact struct {
	a, b   *Body
	normal mgl64.Vec3 // from a to b
	point  mgl64.Vec3
	depth  float64
}

type bounds struct {
	body   *Body
	lo, hi mgl64.Vec3
}

// canCollide mirrors the usual broadphase rules: static pairs never collide and
// both filter masks have to accept the other group.
func canCollide(a, b *Body) bool {
	if a.Type == Static && b.Type == Static {
		return false
	}
	if a.CollisionFilterGroup&b.CollisionFilterMask == 0 || b.CollisionFilterGroup&a.CollisionFilterMask == 0 {
		return false
	}
	return true
}

// detect runs a sort-and-sweep on x followed by the box test on each overlap.
func (w *World) detect(out []contact) []contact {
	boxes := make([]bounds, 0, len(w.bodies))
	for _, b := range w.bodies {
		lo, hi := b.aabb()
		boxes = append(boxes, bounds{body: b, lo: lo, hi: hi})
	}
	sort.SliceStable(boxes, func(i, j int) bool { return boxes[i].lo.X() < boxes[j].lo.X() })

	for i := range boxes {
		bi := boxes[i]
		for j := i + 1; j < len(boxes); j++ {
			bj := boxes[j]
			if bj.lo.X() > bi.hi.X() {
				break
			}
			if bj.lo.Y() > bi.hi.Y() || bj.hi.Y() < bi.lo.Y() || bj.lo.Z() > bi.hi.Z() || bj.hi.Z() < bi.lo.Z() {
				continue
			}
			if !canCollide(bi.body, bj.body) {
				continue
			}
			if c, ok := boxBox(bi.body, bj.body); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func axesOf(b *Body) [3]mgl64.Vec3 {
	r := b.rotation()
	return [3]mgl64.Vec3{r.Col(0), r.Col(1), r.Col(2)}
}

// boxBox is a separating-axis test between two oriented boxes.
func boxBox(a, b *Body) (contact, bool) {
	axesA, axesB := axesOf(a), axesOf(b)
	l := b.Position.Sub(a.Position)

	test := make([]mgl64.Vec3, 0, 15)
	test = append(test, axesA[:]...)
	test = append(test, axesB[:]...)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c := axesA[i].Cross(axesB[j])
			if c.LenSqr() > 1e-8 {
				test = append(test, c.Normalize())
			}
		}
	}

	minOverlap := math.MaxFloat64
	var normal mgl64.Vec3
	for _, axis := range test {
		overlap := projectedRadius(axesA, a.Shape.HalfExtents, axis) +
			projectedRadius(axesB, b.Shape.HalfExtents, axis) -
			math.Abs(l.Dot(axis))
		if overlap <= 0 {
			return contact{}, false
		}
		if overlap < minOverlap {
			minOverlap = overlap
			normal = axis
		}
	}
	if l.Dot(normal) < 0 {
		normal = normal.Mul(-1)
	}

	return contact{
		a:      a,
		b:      b,
		normal: normal,
		depth:  minOverlap,
		point:  contactPoint(a, b, axesA, axesB),
	}, true
}

func projectedRadius(axes [3]mgl64.Vec3, half mgl64.Vec3, axis mgl64.Vec3) float64 {
	return math.Abs(axes[0].Dot(axis))*half[0] +
		math.Abs(axes[1].Dot(axis))*half[1] +
		math.Abs(axes[2].Dot(axis))*half[2]
}

// contactPoint averages the corners of each box lying inside the other.
func contactPoint(a, b *Body, axesA, axesB [3]mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	n := 0
	for _, p := range corners(a.Position, axesA, a.Shape.HalfExtents) {
		if inside(p, b.Position, axesB, b.Shape.HalfExtents) {
			sum = sum.Add(p)
			n++
		}
	}
	for _, p := range corners(b.Position, axesB, b.Shape.HalfExtents) {
		if inside(p, a.Position, axesA, a.Shape.HalfExtents) {
			sum = sum.Add(p)
			n++
		}
	}
	if n == 0 {
		return a.Position.Add(b.Position).Mul(0.5)
	}
	return sum.Mul(1 / float64(n))
}

func corners(pos mgl64.Vec3, axes [3]mgl64.Vec3, half mgl64.Vec3) [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	for i := 0; i < 8; i++ {
		p := pos
		for k := 0; k < 3; k++ {
			s := -1.0
			if i&(1<<k) != 0 {
				s = 1
			}
			p = p.Add(axes[k].Mul(s * half[k]))
		}
		out[i] = p
	}
	return out
}

func inside(p, pos mgl64.Vec3, axes [3]mgl64.Vec3, half mgl64.Vec3) bool {
	d := p.Sub(pos)
	for k := 0; k < 3; k++ {
		if math.Abs(d.Dot(axes[k])) > half[k]+cornerTolerance {
			return false
		}
	}
	return true
}

// impulseDenominator is the effective inverse mass of b along dir at rel.
func impulseDenominator(b *Body, rel, dir mgl64.Vec3) float64 {
	inv := b.InvMass()
	if inv == 0 {
		return 0
	}
	rc := rel.Cross(dir)
	return inv + dir.Dot(b.InvInertiaWorld().Mul3x1(rc).Cross(rel))
}

func applyPair(a, b *Body, ra, rb, impulse mgl64.Vec3) {
	a.ApplyImpulse(impulse.Mul(-1), ra)
	b.ApplyImpulse(impulse, rb)
}

// resolve pushes the pair apart and applies restitution and friction
// impulses. Pairs where either side has no collision response only report.
func resolve(c *contact) {
	a, b := c.a, c.b
	if !a.CollisionResponse || !b.CollisionResponse {
		return
	}
	invA, invB := a.InvMass(), b.InvMass()
	total := invA + invB
	if total == 0 {
		return
	}

	if excess := c.depth - penetrationSlop; excess > 0 {
		corr := c.normal.Mul(excess * positionCorrection / total)
		a.Position = a.Position.Sub(corr.Mul(invA))
		b.Position = b.Position.Add(corr.Mul(invB))
	}

	ra := c.point.Sub(a.Position)
	rb := c.point.Sub(b.Position)
	rel := b.VelocityAtWorldPoint(c.point).Sub(a.VelocityAtWorldPoint(c.point))
	vn := rel.Dot(c.normal)
	if vn >= 0 {
		return
	}

	e := 0.0
	if -vn > restitutionSpeed {
		e = (a.restitution() + b.restitution()) / 2
	}
	denom := impulseDenominator(a, ra, c.normal) + impulseDenominator(b, rb, c.normal)
	if denom == 0 {
		return
	}
	jn := -(1 + e) * vn / denom
	applyPair(a, b, ra, rb, c.normal.Mul(jn))

	rel = b.VelocityAtWorldPoint(c.point).Sub(a.VelocityAtWorldPoint(c.point))
	tangent := rel.Sub(c.normal.Mul(rel.Dot(c.normal)))
	if tangent.LenSqr() < 1e-12 {
		return
	}
	tangent = tangent.Normalize()
	denomT := impulseDenominator(a, ra, tangent) + impulseDenominator(b, rb, tangent)
	if denomT == 0 {
		return
	}
	mu := math.Sqrt(a.friction() * b.friction())
	jt := mgl64.Clamp(-rel.Dot(tangent)/denomT, -mu*jn, mu*jn)
	applyPair(a, b, ra, rb, tangent.Mul(jt))
}
