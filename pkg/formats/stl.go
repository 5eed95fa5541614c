package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshview/pkg/geometry"
)

const (
	// stlSniffLen is how many leading bytes are inspected to tell ASCII
	// from binary STL. Binary files may carry arbitrary 8-bit bytes in
	// their 80-byte header, so any non-printable byte in the prefix
	// marks the file as binary.
	stlSniffLen = 512

	// stlHeaderLen and stlRecordLen are the fixed binary layout sizes:
	// an 80-byte header, a uint32 triangle count, then 50-byte records.
	stlHeaderLen = 80
	stlRecordLen = 50
)

// LoadSTL parses an STL file from disk, sniffing the ASCII/binary
// variant from the file content.
func LoadSTL(path string) (*geometry.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading STL file: %w", err)
	}
	return ParseSTL(data)
}

// ParseSTL parses STL data, dispatching on a content sniff.
func ParseSTL(data []byte) (*geometry.Object, error) {
	if isASCIISTL(data) {
		return parseASCIISTL(data)
	}
	return parseBinarySTL(data)
}

// isASCIISTL scans a fixed-size prefix for bytes outside the printable
// ASCII range. ASCII STL is line-oriented text, so one raw byte is
// enough to rule it out.
func isASCIISTL(data []byte) bool {
	prefix := data
	if len(prefix) > stlSniffLen {
		prefix = prefix[:stlSniffLen]
	}
	for _, b := range prefix {
		if b != '\t' && b != '\r' && b != '\n' && (b < 0x20 || b > 0x7e) {
			return false
		}
	}
	return true
}

// parseASCIISTL iterates "facet" records with a line scanner: a normal
// line, three vertex lines, and an endfacet line per facet. Every facet
// emits 3 vertices sharing the facet normal and 3 sequential indices.
func parseASCIISTL(data []byte) (*geometry.Object, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, objBufferSize), objBufferSize)

	// First line is "solid <name>".
	name := ""
	if scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 1 {
			name = fields[1]
		}
	}

	var (
		vertices   []geometry.Vertex
		indices    []uint32
		bounds     = geometry.NewAABB()
		normal     mgl32.Vec3
		facetVerts []mgl32.Vec3
	)

	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)

		switch {
		case strings.Contains(line, "normal"):
			// facet normal nx ny nz
			v, err := parseVec3(skipFields(fields, 2))
			if err != nil {
				return nil, fmt.Errorf("STL line %d: facet normal: %w", lineNo, err)
			}
			normal = v
		case strings.Contains(line, "vertex"):
			// vertex x y z
			v, err := parseVec3(skipFields(fields, 1))
			if err != nil {
				return nil, fmt.Errorf("STL line %d: vertex: %w", lineNo, err)
			}
			facetVerts = append(facetVerts, v)
		case strings.Contains(line, "endfacet"):
			if len(facetVerts) != 3 {
				return nil, fmt.Errorf("%w: STL line %d: facet has %d vertices, want 3",
					ErrMalformedDocument, lineNo, len(facetVerts))
			}
			base := uint32(len(vertices))
			for _, pos := range facetVerts {
				bounds.Extend(pos)
				vertices = append(vertices, geometry.Vertex{Position: pos, Normal: normal})
			}
			indices = append(indices, base, base+1, base+2)
			facetVerts = facetVerts[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading STL data: %w", err)
	}

	return stlObject(name, vertices, indices, bounds), nil
}

// parseBinarySTL reads the fixed 80+4+50*N byte layout: per record 12
// bytes of normal, 36 bytes of vertices, and a 2-byte attribute count
// that is read but unused. Running out of input before the declared
// triangle count silently stops iteration.
func parseBinarySTL(data []byte) (*geometry.Object, error) {
	if len(data) < stlHeaderLen+4 {
		return nil, fmt.Errorf("%w: binary STL shorter than its header", ErrIncompleteData)
	}

	count := binary.LittleEndian.Uint32(data[stlHeaderLen:])
	records := data[stlHeaderLen+4:]

	// The declared count is untrusted; size buffers by the records the
	// input can actually hold.
	capacity := len(records) / stlRecordLen
	if int(count) < capacity {
		capacity = int(count)
	}
	vertices := make([]geometry.Vertex, 0, capacity*3)
	indices := make([]uint32, 0, capacity*3)
	bounds := geometry.NewAABB()

	for i := uint32(0); i < count; i++ {
		off := int(i) * stlRecordLen
		if off+stlRecordLen > len(records) {
			break
		}
		rec := records[off:]

		normal := readVec3LE(rec)
		base := uint32(len(vertices))
		for j := 0; j < 3; j++ {
			pos := readVec3LE(rec[12+j*12:])
			bounds.Extend(pos)
			vertices = append(vertices, geometry.Vertex{Position: pos, Normal: normal})
		}
		indices = append(indices, base, base+1, base+2)
		// 2 attribute bytes follow, intentionally ignored.
	}

	return stlObject("", vertices, indices, bounds), nil
}

// stlObject wraps the accumulated buffers into the single-sub-mesh
// object both STL paths produce.
func stlObject(name string, vertices []geometry.Vertex, indices []uint32, bounds geometry.AABB) *geometry.Object {
	return &geometry.Object{
		Name: name,
		Meshes: []geometry.SubMesh{{
			Name:     name,
			Vertices: vertices,
			Indices:  indices,
			Material: geometry.DefaultMaterial(),
		}},
		Bounds: bounds,
	}
}

func readVec3LE(b []byte) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(b)),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func skipFields(fields []string, n int) []string {
	if len(fields) <= n {
		return nil
	}
	return fields[n:]
}
