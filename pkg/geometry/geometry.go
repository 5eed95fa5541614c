// Package geometry defines the canonical in-memory model every format
// parser produces: named sub-meshes with corner-indexed vertex buffers,
// triangle index buffers, optional materials, and an object-level
// axis-aligned bounding box.
package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TextureHandle is an opaque GPU texture identifier produced by an
// external texture loader. This package never dereferences it.
type TextureHandle uint32

// TextureRole describes how a texture participates in shading.
type TextureRole int

const (
	TextureAmbient TextureRole = iota
	TextureDiffuse
	TextureSpecular
	TextureSpecularHighlight
	TextureBump
	TextureDisplacement
	TextureDecal
	TextureReflection
	TextureEmissive
)

// String returns a human-readable role name.
func (r TextureRole) String() string {
	switch r {
	case TextureAmbient:
		return "Ambient"
	case TextureDiffuse:
		return "Diffuse"
	case TextureSpecular:
		return "Specular"
	case TextureSpecularHighlight:
		return "SpecularHighlight"
	case TextureBump:
		return "Bump"
	case TextureDisplacement:
		return "Displacement"
	case TextureDecal:
		return "Decal"
	case TextureReflection:
		return "Reflection"
	case TextureEmissive:
		return "Emissive"
	default:
		return "Unknown"
	}
}

// Texture pairs an opaque handle with its shading role. The same handle
// may appear more than once in a material under different roles.
type Texture struct {
	Handle TextureHandle
	Role   TextureRole
}

// Vertex is a single mesh corner. Every field is always populated;
// formats lacking an attribute leave it zero-filled. Tangent and
// Bitangent are accumulated across all triangles sharing the corner and
// are intentionally not renormalized here - consumers needing a unit
// basis must normalize at use time.
type Vertex struct {
	Position  mgl32.Vec3
	Normal    mgl32.Vec3
	TexCoord  mgl32.Vec2
	Tangent   mgl32.Vec3
	Bitangent mgl32.Vec3
}

// Material holds shading parameters plus an ordered texture list.
// Identity is by name; libraries merge by overwriting on name collision.
type Material struct {
	Name             string
	Ambient          mgl32.Vec3
	Diffuse          mgl32.Vec3
	Specular         mgl32.Vec3
	SpecularExponent float32
	Opacity          float32 // 0 transparent .. 1 opaque
	Textures         []Texture
}

// DefaultMaterial returns a plain opaque material.
func DefaultMaterial() *Material {
	return &Material{
		Ambient:          mgl32.Vec3{1, 1, 1},
		Diffuse:          mgl32.Vec3{1, 1, 1},
		Specular:         mgl32.Vec3{0, 0, 0},
		SpecularExponent: 1,
		Opacity:          1,
	}
}

// SubMesh is one draw batch: corner-indexed vertices (shared vertices are
// duplicated per corner, never deduplicated) and a triangle index list.
type SubMesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Material *Material // nil when the source assigned none
}

// TriangleCount returns the number of triangles in the sub-mesh.
func (m *SubMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Validate checks the structural invariants every parser must uphold:
// the index count is a multiple of 3 and every index is in range.
func (m *SubMesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return &InvariantError{Mesh: m.Name, Reason: "index count is not a multiple of 3"}
	}
	for _, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return &InvariantError{Mesh: m.Name, Reason: "index out of vertex range"}
		}
	}
	return nil
}

// InvariantError reports a sub-mesh that violates the canonical model
// contract.
type InvariantError struct {
	Mesh   string
	Reason string
}

func (e *InvariantError) Error() string {
	return "sub-mesh " + e.Mesh + ": " + e.Reason
}

// Object is the result of one import: sub-meshes in first-seen order and
// a bounding box over the union of all vertex positions.
type Object struct {
	Name   string
	Meshes []SubMesh
	Bounds AABB
}

// TotalVertexCount returns the vertex count across all sub-meshes.
func (o *Object) TotalVertexCount() int {
	total := 0
	for i := range o.Meshes {
		total += len(o.Meshes[i].Vertices)
	}
	return total
}

// TotalTriangleCount returns the triangle count across all sub-meshes.
func (o *Object) TotalTriangleCount() int {
	total := 0
	for i := range o.Meshes {
		total += o.Meshes[i].TriangleCount()
	}
	return total
}

// Validate checks every sub-mesh invariant and, when at least one vertex
// exists, that the bounding box encloses all vertex positions.
func (o *Object) Validate() error {
	for i := range o.Meshes {
		if err := o.Meshes[i].Validate(); err != nil {
			return err
		}
	}
	if o.TotalVertexCount() > 0 && !o.Bounds.Valid() {
		return &InvariantError{Mesh: o.Name, Reason: "bounding box never accumulated"}
	}
	return nil
}
