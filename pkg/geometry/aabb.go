package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an incremental min/max tracker over vertex positions. A fresh
// accumulator carries +Inf/-Inf sentinels per axis; they are never
// cleared, so an import that yields no geometry leaves the box invalid
// and callers must check Valid before using it.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewAABB returns an empty accumulator with sentinel corners.
func NewAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Extend grows the box to include p.
func (b *AABB) Extend(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Valid reports whether at least one point was accumulated.
func (b *AABB) Valid() bool {
	for i := 0; i < 3; i++ {
		if b.Min[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Contains reports whether p lies within the box, inclusive.
func (b *AABB) Contains(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Center returns the box midpoint.
func (b *AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the per-axis extents.
func (b *AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}
