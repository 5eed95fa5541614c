package formats

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshview/pkg/geometry"
)

func parseOBJString(t *testing.T, src string) *geometry.Object {
	t.Helper()
	obj, err := ParseOBJ(strings.NewReader(src), "", nil)
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	return obj
}

func TestParseOBJ_SingleTriangle(t *testing.T) {
	obj := parseOBJString(t, `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`)

	if len(obj.Meshes) != 1 {
		t.Fatalf("mesh count = %d, want 1", len(obj.Meshes))
	}
	mesh := &obj.Meshes[0]

	if mesh.Name != "default_mesh" {
		t.Errorf("mesh name = %q, want %q", mesh.Name, "default_mesh")
	}
	if len(mesh.Vertices) != 3 {
		t.Fatalf("vertex count = %d, want 3", len(mesh.Vertices))
	}
	wantIndices := []uint32{0, 1, 2}
	for i, idx := range wantIndices {
		if mesh.Indices[i] != idx {
			t.Fatalf("indices = %v, want %v", mesh.Indices, wantIndices)
		}
	}

	// No vn directives: all corners share the computed face normal
	// cross((1,0,0), (0,1,0)) = (0,0,1).
	want := mgl32.Vec3{0, 0, 1}
	for i, v := range mesh.Vertices {
		if v.Normal != want {
			t.Errorf("vertex %d normal = %v, want %v", i, v.Normal, want)
		}
	}
}

func TestParseOBJ_QuadFanTriangulation(t *testing.T) {
	obj := parseOBJString(t, `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`)

	mesh := &obj.Meshes[0]
	want := []uint32{0, 1, 2, 0, 2, 3}
	if len(mesh.Indices) != len(want) {
		t.Fatalf("index count = %d, want %d", len(mesh.Indices), len(want))
	}
	for i := range want {
		if mesh.Indices[i] != want[i] {
			t.Fatalf("indices = %v, want %v", mesh.Indices, want)
		}
	}
	if got := mesh.TriangleCount(); got != 2 {
		t.Errorf("triangle count = %d, want 2", got)
	}
}

func TestParseOBJ_NgonTriangleCount(t *testing.T) {
	// n corners must always yield n-2 fan triangles.
	for _, n := range []int{3, 4, 5, 8} {
		var sb strings.Builder
		refs := make([]string, 0, n)
		for i := 0; i < n; i++ {
			angle := 2 * math.Pi * float64(i) / float64(n)
			sb.WriteString("v ")
			sb.WriteString(strconv.FormatFloat(math.Cos(angle), 'f', 6, 32))
			sb.WriteString(" ")
			sb.WriteString(strconv.FormatFloat(math.Sin(angle), 'f', 6, 32))
			sb.WriteString(" 0\n")
			refs = append(refs, strconv.Itoa(i+1))
		}
		sb.WriteString("f " + strings.Join(refs, " ") + "\n")

		obj := parseOBJString(t, sb.String())
		if got := obj.Meshes[0].TriangleCount(); got != n-2 {
			t.Errorf("%d-gon: triangle count = %d, want %d", n, got, n-2)
		}
	}
}

func TestParseOBJ_NegativeIndices(t *testing.T) {
	positive := parseOBJString(t, `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`)
	negative := parseOBJString(t, `
v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`)

	pm, nm := positive.Meshes[0], negative.Meshes[0]
	if len(pm.Vertices) != len(nm.Vertices) {
		t.Fatalf("vertex counts differ: %d vs %d", len(pm.Vertices), len(nm.Vertices))
	}
	for i := range pm.Vertices {
		if pm.Vertices[i].Position != nm.Vertices[i].Position {
			t.Errorf("vertex %d: positive %v != negative %v",
				i, pm.Vertices[i].Position, nm.Vertices[i].Position)
		}
	}
}

func TestParseOBJ_TexCoordVFlip(t *testing.T) {
	obj := parseOBJString(t, `
v 0 0 0
v 1 0 0
v 0 1 0
vt 0.25 0.75
vt 0.5 0.5
vt 1 0
f 1/1 2/2 3/3
`)

	mesh := &obj.Meshes[0]
	wants := []mgl32.Vec2{{0.25, 0.25}, {0.5, 0.5}, {1, 1}}
	for i, want := range wants {
		if got := mesh.Vertices[i].TexCoord; got != want {
			t.Errorf("vertex %d texcoord = %v, want %v (V must be 1-v)", i, got, want)
		}
	}
}

func TestParseOBJ_ReferenceSyntaxes(t *testing.T) {
	obj := parseOBJString(t, `
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3//1
`)

	mesh := &obj.Meshes[0]
	if len(mesh.Vertices) != 3 {
		t.Fatalf("vertex count = %d, want 3", len(mesh.Vertices))
	}
	want := mgl32.Vec3{0, 0, 1}
	for i := range mesh.Vertices {
		if mesh.Vertices[i].Normal != want {
			t.Errorf("vertex %d normal = %v, want %v", i, mesh.Vertices[i].Normal, want)
		}
	}
	// Corner 3 used v//vn: no texcoord, zero-filled.
	if got := mesh.Vertices[2].TexCoord; got != (mgl32.Vec2{}) {
		t.Errorf("v//vn corner texcoord = %v, want zero", got)
	}
}

func TestParseOBJ_GroupsAndObjects(t *testing.T) {
	obj := parseOBJString(t, `
o body
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
g wheel
f 1 2 3
`)

	if obj.Name != "body" {
		t.Errorf("object name = %q, want %q", obj.Name, "body")
	}
	if len(obj.Meshes) != 2 {
		t.Fatalf("mesh count = %d, want 2", len(obj.Meshes))
	}
	// The mesh flushed by g is named from the state active while its
	// faces were collected.
	if obj.Meshes[0].Name != "body" {
		t.Errorf("first mesh name = %q, want %q", obj.Meshes[0].Name, "body")
	}
	if obj.Meshes[1].Name != "wheel" {
		t.Errorf("second mesh name = %q, want %q", obj.Meshes[1].Name, "wheel")
	}
}

func TestParseOBJ_TangentAccumulation(t *testing.T) {
	obj := parseOBJString(t, `
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 1
vt 1 1
vt 0 0
vn 0 0 1
f 1/1/1 2/2/1 3/3/1
`)

	mesh := &obj.Meshes[0]
	for i, v := range mesh.Vertices {
		if v.Tangent == (mgl32.Vec3{}) {
			t.Errorf("vertex %d tangent is zero, want accumulated basis", i)
		}
		// The tangent is orthogonalized against the first corner's
		// normal (0,0,1) before accumulation.
		if dot := v.Tangent.Dot(mgl32.Vec3{0, 0, 1}); math.Abs(float64(dot)) > 1e-5 {
			t.Errorf("vertex %d tangent not orthogonal to normal (dot = %f)", i, dot)
		}
		if v.Bitangent == (mgl32.Vec3{}) {
			t.Errorf("vertex %d bitangent is zero", i)
		}
	}
}

func TestParseOBJ_SharedVertexAccumulatesTangents(t *testing.T) {
	// A quad fans into two triangles; corners 0 and 2 participate in
	// both, so their tangents receive two contributions.
	obj := parseOBJString(t, `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 1
vt 1 1
vt 1 0
vt 0 0
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`)

	mesh := &obj.Meshes[0]
	// With this planar layout each triangle contributes tangent
	// (1,0,0); shared corners accumulate twice the magnitude.
	shared := mesh.Vertices[0].Tangent
	single := mesh.Vertices[1].Tangent
	if shared.Len() <= single.Len() {
		t.Errorf("shared corner tangent %v not accumulated beyond single corner %v", shared, single)
	}
}

func TestParseOBJ_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "vertex with too few floats",
			src:     "v 1 2\n",
			wantErr: ErrIncompleteData,
		},
		{
			name:    "normal with too few floats",
			src:     "vn 1\n",
			wantErr: ErrIncompleteData,
		},
		{
			name:    "face with too few corners",
			src:     "v 0 0 0\nv 1 0 0\nf 1 2\n",
			wantErr: ErrIncompleteData,
		},
		{
			name:    "face index out of range",
			src:     "v 0 0 0\nf 1 2 3\n",
			wantErr: ErrMalformedDocument,
		},
		{
			name:    "malformed float",
			src:     "v a b c\n",
			wantErr: ErrMalformedDocument,
		},
		{
			name:    "malformed face index",
			src:     "v 0 0 0\nv 1 0 0\nv 0 1 0\nf x 2 3\n",
			wantErr: ErrMalformedDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(tt.src), "", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseOBJ_UnknownDirectivesIgnored(t *testing.T) {
	obj := parseOBJString(t, `
s 1
p 1
l 1 2
weirddirective foo
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`)
	if got := obj.Meshes[0].TriangleCount(); got != 1 {
		t.Errorf("triangle count = %d, want 1", got)
	}
}

func TestParseOBJ_BoundsEncloseVertices(t *testing.T) {
	obj := parseOBJString(t, `
v -1 -2 -3
v 4 5 6
v 0 0 0
f 1 2 3
`)

	if !obj.Bounds.Valid() {
		t.Fatal("bounds invalid")
	}
	if obj.Bounds.Min != (mgl32.Vec3{-1, -2, -3}) {
		t.Errorf("bounds min = %v", obj.Bounds.Min)
	}
	if obj.Bounds.Max != (mgl32.Vec3{4, 5, 6}) {
		t.Errorf("bounds max = %v", obj.Bounds.Max)
	}
	for i := range obj.Meshes[0].Vertices {
		if !obj.Bounds.Contains(obj.Meshes[0].Vertices[i].Position) {
			t.Errorf("vertex %d outside bounds", i)
		}
	}
}
