package formats

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/pkg/geometry"
)

// LoadDAE parses a COLLADA document from disk.
func LoadDAE(path string) (*geometry.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading COLLADA file: %w", err)
	}
	return ParseDAE(data)
}

// ParseDAE parses COLLADA XML data in two phases: the whole document is
// unmarshaled into the typed schema tree, then library identifiers are
// resolved into geometry.
func ParseDAE(data []byte) (*geometry.Object, error) {
	var doc DAEDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return resolveDAE(&doc)
}

// resolveDAE flattens the document's libraries into id-keyed maps and
// assembles triangle lists for every geometry instanced by a top-level
// NODE of the referenced visual scene.
func resolveDAE(doc *DAEDocument) (*geometry.Object, error) {
	scenes := make(map[string]*DAEVisualScene, len(doc.VisualScenes))
	for i := range doc.VisualScenes {
		vs := &doc.VisualScenes[i]
		if vs.ID == "" {
			return nil, fmt.Errorf("%w: <visual_scene> missing id attribute", ErrMalformedDocument)
		}
		scenes[vs.ID] = vs
	}

	geometries := make(map[string]*DAEGeometry, len(doc.Geometries))
	for i := range doc.Geometries {
		g := &doc.Geometries[i]
		if g.ID == "" {
			return nil, fmt.Errorf("%w: <geometry> missing id attribute", ErrMalformedDocument)
		}
		geometries[g.ID] = g
	}

	materials := make(map[string]*DAEMaterial, len(doc.Materials))
	for i := range doc.Materials {
		m := &doc.Materials[i]
		if m.ID == "" {
			return nil, fmt.Errorf("%w: <material> missing id attribute", ErrMalformedDocument)
		}
		materials[m.ID] = m
	}

	effects := make(map[string]*DAEEffect, len(doc.Effects))
	for i := range doc.Effects {
		e := &doc.Effects[i]
		if e.ID == "" {
			return nil, fmt.Errorf("%w: <effect> missing id attribute", ErrMalformedDocument)
		}
		effects[e.ID] = e
	}

	// Materials and effects are resolved into maps but not yet mapped
	// onto emitted sub-meshes; the binding layer is still missing.
	log.Debug("resolved COLLADA libraries",
		zap.Int("visual_scenes", len(scenes)),
		zap.Int("geometries", len(geometries)),
		zap.Int("materials", len(materials)),
		zap.Int("effects", len(effects)))

	if doc.Scene == nil || doc.Scene.InstanceVisualScene == nil {
		return nil, fmt.Errorf("%w: document instantiates no visual scene", ErrMalformedDocument)
	}
	sceneID := strings.TrimPrefix(doc.Scene.InstanceVisualScene.URL, "#")
	scene, ok := scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("%w: visual scene %q not found", ErrMalformedDocument, sceneID)
	}

	hasPlainNode := false
	hasGeometryInstance := false
	for i := range scene.Nodes {
		if scene.Nodes[i].IsNode() {
			hasPlainNode = true
		}
		if len(scene.Nodes[i].InstanceGeometries) > 0 {
			hasGeometryInstance = true
		}
	}
	if !hasPlainNode {
		return nil, fmt.Errorf("%w: visual scene contains no NODE-typed nodes (JOINT nodes are unsupported)", ErrMalformedDocument)
	}
	if !hasGeometryInstance {
		return nil, fmt.Errorf("%w: no top-level node instances a geometry (controller instances are unsupported)", ErrMalformedDocument)
	}

	var meshes []geometry.SubMesh
	bounds := geometry.NewAABB()

	for i := range scene.Nodes {
		node := &scene.Nodes[i]
		if !node.IsNode() {
			continue
		}
		nodeName := node.Name
		if nodeName == "" {
			nodeName = "default_mesh"
		}

		for _, inst := range node.InstanceGeometries {
			geomID := strings.TrimPrefix(inst.URL, "#")
			geom, ok := geometries[geomID]
			if !ok {
				return nil, fmt.Errorf("%w: geometry %q not found", ErrMalformedDocument, geomID)
			}
			if geom.Mesh == nil {
				// Only mesh geometric elements carry triangles.
				continue
			}
			nodeMeshes, err := resolveMesh(nodeName, geom.Mesh, &bounds)
			if err != nil {
				return nil, fmt.Errorf("geometry %q: %w", geomID, err)
			}
			meshes = append(meshes, nodeMeshes...)
		}
	}

	obj := &geometry.Object{
		Name:   "default_obj",
		Meshes: meshes,
		Bounds: bounds,
	}
	if scene.Name != "" {
		obj.Name = scene.Name
	}
	return obj, nil
}

// meshAttributes is the per-mesh attribute state: flat pools plus the
// stride offsets at which each semantic's index appears in <p>. An
// offset of -1 means the semantic is absent.
type meshAttributes struct {
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	texCoords []mgl32.Vec2

	normalOffset   int
	texCoordOffset int
}

// resolveMesh assembles one sub-mesh per consumable primitive element.
func resolveMesh(nodeName string, mesh *DAEMesh, bounds *geometry.AABB) ([]geometry.SubMesh, error) {
	sources := make(map[string]*DAESource, len(mesh.Sources))
	for i := range mesh.Sources {
		src := &mesh.Sources[i]
		if src.FloatArray == nil {
			continue
		}
		sources[src.ID] = src
	}

	attrs, err := resolveVertexInputs(mesh.Vertices.Inputs, sources, bounds)
	if err != nil {
		return nil, err
	}

	var meshes []geometry.SubMesh
	for i := range mesh.Triangles {
		tri := &mesh.Triangles[i]
		if strings.TrimSpace(tri.P) == "" {
			continue
		}
		sub, err := resolveTriangles(nodeName, tri, attrs, sources)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, *sub)
	}
	for i := range mesh.Polylists {
		poly := &mesh.Polylists[i]
		if strings.TrimSpace(poly.P) == "" {
			continue
		}
		sub, err := resolvePolylist(nodeName, poly, attrs, sources)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, *sub)
	}
	return meshes, nil
}

// resolveVertexInputs consumes the <vertices> element's unshared inputs.
// POSITION is mandatory geometry; NORMAL and TEXCOORD may also be bound
// here, in which case they share the position index (offset 0).
func resolveVertexInputs(inputs []DAEInput, sources map[string]*DAESource, bounds *geometry.AABB) (*meshAttributes, error) {
	attrs := &meshAttributes{normalOffset: -1, texCoordOffset: -1}

	for _, input := range inputs {
		switch input.Semantic {
		case "POSITION":
			floats, err := sourceFloats(input.Source, sources)
			if err != nil {
				return nil, err
			}
			attrs.positions = chunkVec3(floats)
			for _, p := range attrs.positions {
				bounds.Extend(p)
			}
		case "NORMAL":
			floats, err := sourceFloats(input.Source, sources)
			if err != nil {
				return nil, err
			}
			attrs.normals = chunkVec3(floats)
			attrs.normalOffset = 0
		case "TEXCOORD":
			floats, err := sourceFloats(input.Source, sources)
			if err != nil {
				return nil, err
			}
			attrs.texCoords = chunkVec2(floats)
			attrs.texCoordOffset = 0
		}
	}

	if attrs.positions == nil {
		return nil, fmt.Errorf("%w: <vertices> has no POSITION input", ErrMalformedDocument)
	}
	return attrs, nil
}

// applySharedInputs folds a primitive element's shared inputs into a
// copy of the mesh attributes and returns it together with the stride
// width (largest offset + 1).
func applySharedInputs(inputs []DAEInput, attrs *meshAttributes, sources map[string]*DAESource) (*meshAttributes, int, error) {
	local := *attrs
	maxOffset := 1

	for _, input := range inputs {
		if input.Offset+1 > maxOffset {
			maxOffset = input.Offset + 1
		}
		switch input.Semantic {
		case "NORMAL":
			floats, err := sourceFloats(input.Source, sources)
			if err != nil {
				return nil, 0, err
			}
			local.normals = chunkVec3(floats)
			local.normalOffset = input.Offset
		case "TEXCOORD":
			floats, err := sourceFloats(input.Source, sources)
			if err != nil {
				return nil, 0, err
			}
			local.texCoords = chunkVec2(floats)
			local.texCoordOffset = input.Offset
		}
	}
	return &local, maxOffset, nil
}

// corner reads one corner's worth of attribute indices from the shared
// index stream and resolves them into a vertex. The position index is
// always assumed to live at offset 0. faceNormal is the fallback when no
// NORMAL input exists.
func (a *meshAttributes) corner(stream []int, faceNormal mgl32.Vec3) (geometry.Vertex, error) {
	posIdx, err := resolvePoolIndex(stream[0], len(a.positions))
	if err != nil {
		return geometry.Vertex{}, fmt.Errorf("position %w", err)
	}
	v := geometry.Vertex{Position: a.positions[posIdx], Normal: faceNormal}

	if a.normalOffset >= 0 {
		idx, err := resolvePoolIndex(stream[a.normalOffset], len(a.normals))
		if err != nil {
			return geometry.Vertex{}, fmt.Errorf("normal %w", err)
		}
		v.Normal = a.normals[idx]
	}
	if a.texCoordOffset >= 0 {
		idx, err := resolvePoolIndex(stream[a.texCoordOffset], len(a.texCoords))
		if err != nil {
			return geometry.Vertex{}, fmt.Errorf("texcoord %w", err)
		}
		v.TexCoord = a.texCoords[idx]
	}
	return v, nil
}

// faceNormal computes the fallback normal of one face from its first
// three resolved corner positions, matching the OBJ fallback.
func (a *meshAttributes) faceNormal(stream []int, maxOffset int) (mgl32.Vec3, error) {
	var pts [3]mgl32.Vec3
	for i := 0; i < 3; i++ {
		idx, err := resolvePoolIndex(stream[i*maxOffset], len(a.positions))
		if err != nil {
			return mgl32.Vec3{}, fmt.Errorf("position %w", err)
		}
		pts[i] = a.positions[idx]
	}
	return pts[1].Sub(pts[0]).Cross(pts[2].Sub(pts[0])).Normalize(), nil
}

// resolveTriangles decodes a <triangles> primitive: each group of
// maxOffset*3 integers in <p> is one triangle.
func resolveTriangles(name string, tri *DAETriangles, attrs *meshAttributes, sources map[string]*DAESource) (*geometry.SubMesh, error) {
	local, maxOffset, err := applySharedInputs(tri.Inputs, attrs, sources)
	if err != nil {
		return nil, err
	}
	stream, err := parseInts(tri.P)
	if err != nil {
		return nil, err
	}

	// Size by the index stream, not the untrusted count attribute.
	stride := maxOffset * 3
	capacity := len(stream) / stride * 3
	sub := &geometry.SubMesh{
		Name:     name,
		Vertices: make([]geometry.Vertex, 0, capacity),
		Indices:  make([]uint32, 0, capacity),
	}

	for len(stream) >= stride {
		face := stream[:stride]
		stream = stream[stride:]

		normal := mgl32.Vec3{}
		if local.normalOffset < 0 {
			if normal, err = local.faceNormal(face, maxOffset); err != nil {
				return nil, err
			}
		}

		base := uint32(len(sub.Vertices))
		for c := 0; c < 3; c++ {
			v, err := local.corner(face[c*maxOffset:], normal)
			if err != nil {
				return nil, err
			}
			sub.Vertices = append(sub.Vertices, v)
		}
		sub.Indices = append(sub.Indices, base, base+1, base+2)
		accumulateTangents(&sub.Vertices[base], &sub.Vertices[base+1], &sub.Vertices[base+2])
	}
	return sub, nil
}

// resolvePolylist decodes a <polylist> primitive: faces are consumed
// sequentially from <p> by cumulative width and fan-triangulated exactly
// like the OBJ path.
func resolvePolylist(name string, poly *DAEPolylist, attrs *meshAttributes, sources map[string]*DAESource) (*geometry.SubMesh, error) {
	local, maxOffset, err := applySharedInputs(poly.Inputs, attrs, sources)
	if err != nil {
		return nil, err
	}
	stream, err := parseInts(poly.P)
	if err != nil {
		return nil, err
	}
	vcounts, err := parseInts(poly.VCount)
	if err != nil {
		return nil, err
	}
	if poly.Count != len(vcounts) {
		return nil, fmt.Errorf("%w: polylist count %d does not match %d vcount entries",
			ErrMalformedDocument, poly.Count, len(vcounts))
	}

	sub := &geometry.SubMesh{Name: name}
	indexBase := uint32(0)

	for _, vcount := range vcounts {
		if vcount < 3 {
			return nil, fmt.Errorf("%w: polylist face with %d corners", ErrMalformedDocument, vcount)
		}
		width := vcount * maxOffset
		if len(stream) < width {
			return nil, fmt.Errorf("%w: polylist index stream exhausted", ErrIncompleteData)
		}
		face := stream[:width]
		stream = stream[width:]

		normal := mgl32.Vec3{}
		if local.normalOffset < 0 {
			if normal, err = local.faceNormal(face, maxOffset); err != nil {
				return nil, err
			}
		}

		for c := 0; c < vcount; c++ {
			v, err := local.corner(face[c*maxOffset:], normal)
			if err != nil {
				return nil, err
			}
			sub.Vertices = append(sub.Vertices, v)
		}

		for i := 0; i < vcount-2; i++ {
			i0 := indexBase
			i1 := indexBase + uint32(i) + 1
			i2 := indexBase + uint32(i) + 2
			sub.Indices = append(sub.Indices, i0, i1, i2)
			accumulateTangents(&sub.Vertices[i0], &sub.Vertices[i1], &sub.Vertices[i2])
		}
		indexBase += uint32(vcount)
	}
	return sub, nil
}

// sourceFloats resolves a #-prefixed source URL into its float data.
func sourceFloats(url string, sources map[string]*DAESource) ([]float32, error) {
	id := strings.TrimPrefix(url, "#")
	src, ok := sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: source %q not found or carries no float_array", ErrMalformedDocument, id)
	}
	return src.FloatArray.Floats()
}

// resolvePoolIndex bounds-checks a possibly negative index stream entry,
// negative values addressing from the end of the pool as in OBJ.
func resolvePoolIndex(idx, poolLen int) (int, error) {
	if idx < 0 {
		idx = poolLen + idx
	}
	if idx < 0 || idx >= poolLen {
		return 0, fmt.Errorf("%w: index %d out of range (pool size %d)", ErrMalformedDocument, idx, poolLen)
	}
	return idx, nil
}

func chunkVec3(floats []float32) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, 0, len(floats)/3)
	for i := 0; i+2 < len(floats); i += 3 {
		out = append(out, mgl32.Vec3{floats[i], floats[i+1], floats[i+2]})
	}
	return out
}

func chunkVec2(floats []float32) []mgl32.Vec2 {
	out := make([]mgl32.Vec2, 0, len(floats)/2)
	for i := 0; i+1 < len(floats); i += 2 {
		out = append(out, mgl32.Vec2{floats[i], floats[i+1]})
	}
	return out
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid index %q", ErrMalformedDocument, f)
		}
		out[i] = v
	}
	return out, nil
}
