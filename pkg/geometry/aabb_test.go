package geometry

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestAABB_EmptyIsInvalid(t *testing.T) {
	b := NewAABB()
	if b.Valid() {
		t.Error("empty AABB reported valid")
	}
}

func TestAABB_SentinelOrdering(t *testing.T) {
	// The sentinel corners are inverted so the first Extend always wins.
	b := NewAABB()
	for i := 0; i < 3; i++ {
		if b.Min[i] <= b.Max[i] {
			t.Errorf("axis %d: sentinel min %f <= max %f", i, b.Min[i], b.Max[i])
		}
	}
}

func TestAABB_Extend(t *testing.T) {
	points := []mgl32.Vec3{
		{1, 2, 3},
		{-4, 0, 10},
		{0, 5, -2},
	}

	b := NewAABB()
	for _, p := range points {
		b.Extend(p)
	}

	if !b.Valid() {
		t.Fatal("AABB invalid after extending")
	}

	wantMin := mgl32.Vec3{-4, 0, -2}
	wantMax := mgl32.Vec3{1, 5, 10}
	if b.Min != wantMin {
		t.Errorf("Min = %v, want %v", b.Min, wantMin)
	}
	if b.Max != wantMax {
		t.Errorf("Max = %v, want %v", b.Max, wantMax)
	}

	for _, p := range points {
		if !b.Contains(p) {
			t.Errorf("box does not contain accumulated point %v", p)
		}
	}
}

func TestAABB_SinglePoint(t *testing.T) {
	b := NewAABB()
	p := mgl32.Vec3{7, -3, 0.5}
	b.Extend(p)

	if !b.Valid() {
		t.Fatal("AABB invalid after one point")
	}
	if b.Min != p || b.Max != p {
		t.Errorf("single-point box = [%v, %v], want both %v", b.Min, b.Max, p)
	}
	if got := b.Size(); got != (mgl32.Vec3{}) {
		t.Errorf("Size() = %v, want zero", got)
	}
	if got := b.Center(); got != p {
		t.Errorf("Center() = %v, want %v", got, p)
	}
}

func TestAABB_CenterSize(t *testing.T) {
	b := NewAABB()
	b.Extend(mgl32.Vec3{-2, -2, -2})
	b.Extend(mgl32.Vec3{4, 6, 2})

	if got, want := b.Center(), (mgl32.Vec3{1, 2, 0}); got != want {
		t.Errorf("Center() = %v, want %v", got, want)
	}
	if got, want := b.Size(), (mgl32.Vec3{6, 8, 4}); got != want {
		t.Errorf("Size() = %v, want %v", got, want)
	}
}
