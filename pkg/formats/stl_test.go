package formats

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const asciiSTLCube = `solid cube
facet normal 0 0 -1
 outer loop
  vertex 0 0 0
  vertex 1 1 0
  vertex 1 0 0
 endloop
endfacet
facet normal 0 0 -1
 outer loop
  vertex 0 0 0
  vertex 0 1 0
  vertex 1 1 0
 endloop
endfacet
endsolid cube
`

// buildBinarySTL assembles an 80+4+50*N byte fixture. Each facet is a
// normal followed by three vertices; the trailing attribute count is
// zeroed.
func buildBinarySTL(count uint32, facets [][4]mgl32.Vec3) []byte {
	buf := make([]byte, stlHeaderLen+4)
	binary.LittleEndian.PutUint32(buf[stlHeaderLen:], count)

	putVec3 := func(v mgl32.Vec3) {
		for _, f := range v {
			var w [4]byte
			binary.LittleEndian.PutUint32(w[:], math.Float32bits(f))
			buf = append(buf, w[:]...)
		}
	}
	for _, facet := range facets {
		for _, v := range facet {
			putVec3(v)
		}
		buf = append(buf, 0, 0)
	}
	return buf
}

func TestIsASCIISTL(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"plain text", []byte("solid cube\nfacet normal 0 0 1\n"), true},
		{"tabs and CRLF allowed", []byte("solid\tcube\r\n"), true},
		{"null byte", []byte("solid\x00cube"), false},
		{"high byte", []byte{'s', 'o', 0xff}, false},
		{"empty", nil, true},
		{"binary beyond sniff window ignored", append(make([]byte, 0, stlSniffLen+1),
			append(bytesOf(' ', stlSniffLen), 0x00)...), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isASCIISTL(tt.data); got != tt.want {
				t.Errorf("isASCIISTL = %v, want %v", got, tt.want)
			}
		})
	}
}

func bytesOf(b byte, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = b
	}
	return s
}

func TestParseSTL_ASCII(t *testing.T) {
	obj, err := ParseSTL([]byte(asciiSTLCube))
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}

	if obj.Name != "cube" {
		t.Errorf("name = %q, want %q", obj.Name, "cube")
	}
	if len(obj.Meshes) != 1 {
		t.Fatalf("mesh count = %d, want 1", len(obj.Meshes))
	}
	mesh := &obj.Meshes[0]
	if got := mesh.TriangleCount(); got != 2 {
		t.Fatalf("triangle count = %d, want 2", got)
	}
	if len(mesh.Vertices) != 6 {
		t.Fatalf("vertex count = %d, want 6 (3 per facet, unshared)", len(mesh.Vertices))
	}

	// All corners of a facet share its declared normal.
	want := mgl32.Vec3{0, 0, -1}
	for i, v := range mesh.Vertices {
		if v.Normal != want {
			t.Errorf("vertex %d normal = %v, want %v", i, v.Normal, want)
		}
	}
	for i, idx := range []uint32{0, 1, 2, 3, 4, 5} {
		if mesh.Indices[i] != idx {
			t.Fatalf("indices = %v, want sequential", mesh.Indices)
		}
	}
	if mesh.Material == nil {
		t.Error("STL mesh must carry the default material")
	}
}

func TestParseSTL_ASCIIFacetVertexCount(t *testing.T) {
	bad := `solid broken
facet normal 0 0 1
 outer loop
  vertex 0 0 0
  vertex 1 0 0
 endloop
endfacet
endsolid broken
`
	_, err := ParseSTL([]byte(bad))
	if !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("error = %v, want ErrMalformedDocument", err)
	}
}

func TestParseSTL_Binary(t *testing.T) {
	facets := [][4]mgl32.Vec3{
		{{0, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		{{0, 0, 1}, {0, 0, 0}, {0, 1, 0}, {-1, 0, 0}},
	}
	obj, err := ParseSTL(buildBinarySTL(2, facets))
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}

	mesh := &obj.Meshes[0]
	if got := mesh.TriangleCount(); got != 2 {
		t.Fatalf("triangle count = %d, want 2", got)
	}
	if mesh.Vertices[0].Position != (mgl32.Vec3{0, 0, 0}) {
		t.Errorf("vertex 0 position = %v", mesh.Vertices[0].Position)
	}
	if mesh.Vertices[2].Position != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("vertex 2 position = %v", mesh.Vertices[2].Position)
	}
	if mesh.Vertices[0].Normal != (mgl32.Vec3{0, 0, 1}) {
		t.Errorf("vertex 0 normal = %v", mesh.Vertices[0].Normal)
	}
	if obj.Bounds.Min != (mgl32.Vec3{-1, 0, 0}) {
		t.Errorf("bounds min = %v", obj.Bounds.Min)
	}
}

func TestParseSTL_BinaryTruncatedRecordStopsSilently(t *testing.T) {
	facets := [][4]mgl32.Vec3{
		{{0, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	}
	// Declares 3 triangles but carries one full record plus a fragment.
	data := buildBinarySTL(3, facets)
	data = append(data, 0xde, 0xad)

	obj, err := ParseSTL(data)
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}
	if got := obj.Meshes[0].TriangleCount(); got != 1 {
		t.Errorf("triangle count = %d, want 1 (short record dropped)", got)
	}
}

func TestParseSTL_BinaryShorterThanHeader(t *testing.T) {
	_, err := ParseSTL([]byte{0x00, 0x01, 0x02})
	if !errors.Is(err, ErrIncompleteData) {
		t.Errorf("error = %v, want ErrIncompleteData", err)
	}
}

func TestParseSTL_BinaryHugeDeclaredCount(t *testing.T) {
	// Declares 2^28 triangles with no record data; the buffers must be
	// sized by the input, not by the declared count.
	data := make([]byte, stlHeaderLen+4)
	binary.LittleEndian.PutUint32(data[stlHeaderLen:], 1<<28)

	obj, err := ParseSTL(data)
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}
	mesh := &obj.Meshes[0]
	if got := mesh.TriangleCount(); got != 0 {
		t.Errorf("triangle count = %d, want 0", got)
	}
	if cap(mesh.Vertices) != 0 {
		t.Errorf("vertex capacity = %d, want 0", cap(mesh.Vertices))
	}
}

func TestParseSTL_BinaryZeroTriangles(t *testing.T) {
	obj, err := ParseSTL(buildBinarySTL(0, nil))
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}
	if got := obj.Meshes[0].TriangleCount(); got != 0 {
		t.Errorf("triangle count = %d, want 0", got)
	}
	if obj.Bounds.Valid() {
		t.Error("empty model must keep the invalid sentinel bounds")
	}
}
