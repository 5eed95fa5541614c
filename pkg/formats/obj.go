package formats

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/pkg/geometry"
)

// objBufferSize is the buffered-reader window for line scanning. Model
// files run into hundreds of megabytes, so the window is generous to
// amortize syscall overhead.
const objBufferSize = 128 * 1024

// LoadOBJ parses a Wavefront OBJ file from disk. Referenced .mtl
// libraries and texture files are resolved relative to the OBJ's
// directory. The loader may be nil to skip texture loading.
func LoadOBJ(path string, loader TextureLoader) (*geometry.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()

	return ParseOBJ(f, filepath.Dir(path), loader)
}

// ParseOBJ parses OBJ data from a reader. dir is the directory used to
// resolve mtllib references; an empty dir resolves them relative to the
// working directory.
func ParseOBJ(r io.Reader, dir string, loader TextureLoader) (*geometry.Object, error) {
	p := &objParser{
		dir:       dir,
		textures:  newTextureCache(loader),
		bounds:    geometry.NewAABB(),
		materials: make(map[string]*geometry.Material),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, objBufferSize), objBufferSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := p.directive(line); err != nil {
			return nil, fmt.Errorf("OBJ line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ data: %w", err)
	}

	p.flush(p.finalMeshName())

	return &geometry.Object{
		Name:   p.objectName,
		Meshes: p.meshes,
		Bounds: p.bounds,
	}, nil
}

// objParser is the line state machine. Vertex attribute pools are shared
// across the whole file; the vertex/index buffers belong to the sub-mesh
// in progress and are flushed on o/g/usemtl boundaries.
type objParser struct {
	dir      string
	textures *textureCache

	objectName string
	meshName   string

	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	texCoords []mgl32.Vec2

	vertices  []geometry.Vertex
	indices   []uint32
	indexBase uint32

	meshes    []geometry.SubMesh
	bounds    geometry.AABB
	materials map[string]*geometry.Material
	active    *geometry.Material
}

func (p *objParser) directive(line string) error {
	fields := strings.Fields(line)
	args := fields[1:]

	switch fields[0] {
	case "o":
		p.flush(p.pendingMeshName())
		p.objectName = firstOr(args, "")
	case "g":
		p.flush(p.pendingMeshName())
		p.meshName = firstOr(args, "default_mesh")
	case "v":
		v, err := parseVec3(args)
		if err != nil {
			return fmt.Errorf("vertex: %w", err)
		}
		p.positions = append(p.positions, v)
		p.bounds.Extend(v)
	case "vn":
		v, err := parseVec3(args)
		if err != nil {
			return fmt.Errorf("normal: %w", err)
		}
		p.normals = append(p.normals, v)
	case "vt":
		v, err := parseVec2(args)
		if err != nil {
			return fmt.Errorf("texcoord: %w", err)
		}
		// Flip V to the Y-down texture convention.
		p.texCoords = append(p.texCoords, mgl32.Vec2{v[0], 1 - v[1]})
	case "f":
		if err := p.face(args); err != nil {
			return err
		}
	case "mtllib":
		for _, name := range args {
			libs, err := ParseMTLFile(filepath.Join(p.dir, name), p.textures)
			if err != nil {
				return err
			}
			// Later libraries overwrite same-named materials.
			for name, mat := range libs {
				p.materials[name] = mat
			}
		}
	case "usemtl":
		p.flush(p.pendingMeshName())
		name := firstOr(args, "")
		p.active = p.materials[name]
		if p.active == nil {
			log.Warn("OBJ references unknown material", zap.String("material", name))
		}
	case "p", "l", "s":
		// Points, lines, and smoothing groups are out of scope.
	default:
		log.Warn("skipping unrecognized OBJ directive", zap.String("directive", fields[0]))
	}
	return nil
}

// cornerRef is one parsed face corner reference, indices already
// resolved to 0-based positions in their pools (-1 when absent).
type cornerRef struct {
	v, vt, vn int
}

// face parses one f directive: 3 or more corner references in one of the
// four reference syntaxes, fan-triangulated from corner 0.
func (p *objParser) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("%w: face needs at least 3 corners, got %d", ErrIncompleteData, len(refs))
	}

	corners := make([]cornerRef, len(refs))
	for i, ref := range refs {
		c, err := p.parseCorner(ref)
		if err != nil {
			return err
		}
		corners[i] = c
	}

	// Without a normal pool the whole face shares one computed normal.
	var faceNormal mgl32.Vec3
	if len(p.normals) == 0 {
		a := p.positions[corners[0].v]
		b := p.positions[corners[1].v]
		c := p.positions[corners[2].v]
		faceNormal = b.Sub(a).Cross(c.Sub(a)).Normalize()
	}

	for _, c := range corners {
		vert := geometry.Vertex{Position: p.positions[c.v], Normal: faceNormal}
		if c.vn >= 0 {
			vert.Normal = p.normals[c.vn]
		}
		if c.vt >= 0 {
			vert.TexCoord = p.texCoords[c.vt]
		}
		p.vertices = append(p.vertices, vert)
	}

	// Fan triangulation: n corners yield n-2 triangles rooted at corner 0.
	for i := 0; i < len(corners)-2; i++ {
		i0 := p.indexBase
		i1 := p.indexBase + uint32(i) + 1
		i2 := p.indexBase + uint32(i) + 2
		p.indices = append(p.indices, i0, i1, i2)
		accumulateTangents(&p.vertices[i0], &p.vertices[i1], &p.vertices[i2])
	}
	p.indexBase += uint32(len(corners))

	return nil
}

// parseCorner parses one face corner reference: v, v/vt, v/vt/vn, or
// v//vn. Indices are 1-based in the source; negative indices address
// from the end of their pool.
func (p *objParser) parseCorner(ref string) (cornerRef, error) {
	c := cornerRef{v: -1, vt: -1, vn: -1}
	parts := strings.Split(ref, "/")
	if len(parts) > 3 {
		return c, fmt.Errorf("%w: face corner %q", ErrMalformedDocument, ref)
	}

	var err error
	if c.v, err = resolveIndex(parts[0], len(p.positions)); err != nil {
		return c, fmt.Errorf("face vertex reference %q: %w", ref, err)
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.vt, err = resolveIndex(parts[1], len(p.texCoords)); err != nil {
			return c, fmt.Errorf("face texcoord reference %q: %w", ref, err)
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.vn, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return c, fmt.Errorf("face normal reference %q: %w", ref, err)
		}
	}
	return c, nil
}

// flush completes the in-progress sub-mesh, if any, and resets the
// vertex/index buffers. A buffer without vertices is dropped rather
// than emitted as an empty sub-mesh, so a face-less file yields zero
// meshes and o/g/usemtl runs never produce placeholder entries.
func (p *objParser) flush(name string) {
	if len(p.vertices) == 0 {
		return
	}
	p.meshes = append(p.meshes, geometry.SubMesh{
		Name:     name,
		Vertices: p.vertices,
		Indices:  p.indices,
		Material: p.active,
	})
	p.vertices = nil
	p.indices = nil
	p.indexBase = 0
}

// pendingMeshName names the sub-mesh being flushed mid-file: the most
// specific active name wins.
func (p *objParser) pendingMeshName() string {
	if p.meshName != "" {
		return p.meshName
	}
	return p.objectName
}

// finalMeshName names the end-of-file flush, defaulting when the file
// never declared an object or group.
func (p *objParser) finalMeshName() string {
	if p.meshName != "" {
		return p.meshName
	}
	if p.objectName != "" {
		return p.objectName
	}
	return "default_mesh"
}

// accumulateTangents derives the tangent-space basis of one triangle
// from its edge vectors and UV deltas and adds it into all three corner
// vertices. Contributions are summed, never renormalized; consumers
// normalize at use time.
func accumulateTangents(v0, v1, v2 *geometry.Vertex) {
	e1 := v1.Position.Sub(v0.Position)
	e2 := v2.Position.Sub(v0.Position)
	duv1 := v1.TexCoord.Sub(v0.TexCoord)
	duv2 := v2.TexCoord.Sub(v0.TexCoord)

	det := duv1[0]*duv2[1] - duv2[0]*duv1[1]
	if det == 0 {
		// Degenerate UV mapping, no basis to derive.
		return
	}
	r := 1 / det

	tangent := e1.Mul(duv2[1]).Sub(e2.Mul(duv1[1])).Mul(r)
	bitangent := e2.Mul(duv1[0]).Sub(e1.Mul(duv2[0])).Mul(r)

	// Orthogonalize the tangent against the first vertex's normal.
	n := v0.Normal
	tangent = tangent.Sub(n.Mul(n.Dot(tangent)))

	for _, v := range []*geometry.Vertex{v0, v1, v2} {
		v.Tangent = v.Tangent.Add(tangent)
		v.Bitangent = v.Bitangent.Add(bitangent)
	}
}

// resolveIndex converts a 1-based or negative (relative-from-end) source
// index into a bounds-checked 0-based pool index.
func resolveIndex(tok string, poolLen int) (int, error) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid index %q", ErrMalformedDocument, tok)
	}
	if n < 0 {
		n = poolLen + n
	} else {
		n--
	}
	if n < 0 || n >= poolLen {
		return 0, fmt.Errorf("%w: index %s out of range (pool size %d)", ErrMalformedDocument, tok, poolLen)
	}
	return n, nil
}

func parseVec3(fields []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	if len(fields) < 3 {
		return v, fmt.Errorf("%w: want 3 components, got %d", ErrIncompleteData, len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, fmt.Errorf("%w: invalid float %q", ErrMalformedDocument, fields[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}

func parseVec2(fields []string) (mgl32.Vec2, error) {
	var v mgl32.Vec2
	if len(fields) < 2 {
		return v, fmt.Errorf("%w: want 2 components, got %d", ErrIncompleteData, len(fields))
	}
	for i := 0; i < 2; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, fmt.Errorf("%w: invalid float %q", ErrMalformedDocument, fields[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}

func firstOr(fields []string, def string) string {
	if len(fields) > 0 {
		return fields[0]
	}
	return def
}
