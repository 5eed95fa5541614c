package formats

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Typed document model for the consumed subset of the COLLADA 1.4/1.5
// schema. The whole XML file is unmarshaled into this tree in one pass;
// the resolution pass in collada.go then maps library identifiers onto
// geometry data. Library kinds outside this subset (animations, cameras,
// controllers, lights, physics, ...) are skipped by the XML decoder.

// DAEDocument is the COLLADA root element.
type DAEDocument struct {
	XMLName      xml.Name         `xml:"COLLADA"`
	Version      string           `xml:"version,attr"`
	Asset        DAEAsset         `xml:"asset"`
	Geometries   []DAEGeometry    `xml:"library_geometries>geometry"`
	Materials    []DAEMaterial    `xml:"library_materials>material"`
	Effects      []DAEEffect      `xml:"library_effects>effect"`
	VisualScenes []DAEVisualScene `xml:"library_visual_scenes>visual_scene"`
	Scene        *DAEScene        `xml:"scene"`
}

// DAEAsset carries document-level metadata.
type DAEAsset struct {
	Contributor string  `xml:"contributor>authoring_tool"`
	UpAxis      string  `xml:"up_axis"` // X_UP, Y_UP, or Z_UP
	Unit        DAEUnit `xml:"unit"`
}

// DAEUnit is the asset's length unit.
type DAEUnit struct {
	Name  string  `xml:"name,attr"`
	Meter float64 `xml:"meter,attr"`
}

// DAEGeometry is one library_geometries entry. Of the geometric element
// kinds the schema allows (mesh, convex_mesh, spline, brep) only mesh is
// consumed.
type DAEGeometry struct {
	ID   string   `xml:"id,attr"`
	Name string   `xml:"name,attr"`
	Mesh *DAEMesh `xml:"mesh"`
}

// DAEMesh holds the flat data sources and primitive elements of one
// mesh. Lines, linestrips, polygons, tristrips, and trifans are
// recognized primitive kinds but intentionally not consumed.
type DAEMesh struct {
	Sources   []DAESource    `xml:"source"`
	Vertices  DAEVertices    `xml:"vertices"`
	Triangles []DAETriangles `xml:"triangles"`
	Polylists []DAEPolylist  `xml:"polylist"`
}

// DAESource is an id plus a typed flat data array. The schema also
// allows int, Name, bool, IDREF, SIDREF, and token arrays; only
// float_array carries geometry, so only it is modeled.
type DAESource struct {
	ID         string         `xml:"id,attr"`
	FloatArray *DAEFloatArray `xml:"float_array"`
}

// DAEFloatArray is whitespace-separated float text.
type DAEFloatArray struct {
	ID     string `xml:"id,attr"`
	Count  int    `xml:"count,attr"`
	Values string `xml:",chardata"`
}

// Floats parses the array body.
func (a *DAEFloatArray) Floats() ([]float32, error) {
	fields := strings.Fields(a.Values)
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: float_array %q: invalid float %q", ErrMalformedDocument, a.ID, f)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// DAEVertices declares the per-vertex unshared inputs, most importantly
// the POSITION source.
type DAEVertices struct {
	ID     string     `xml:"id,attr"`
	Inputs []DAEInput `xml:"input"`
}

// DAEInput joins a semantic (POSITION, NORMAL, TEXCOORD, ...) to a
// source. Shared inputs on primitive elements additionally carry an
// offset naming their stride position within the combined index stream;
// unshared inputs have no offset.
type DAEInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
	Set      int    `xml:"set,attr"`
}

// DAETriangles is a triangle-list primitive: each group of
// maxOffset*3 indices in <p> is one triangle.
type DAETriangles struct {
	Count    int        `xml:"count,attr"`
	Material string     `xml:"material,attr"`
	Inputs   []DAEInput `xml:"input"`
	P        string     `xml:"p"`
}

// DAEPolylist is a polygon-list primitive: <vcount> gives each face's
// corner count and faces are consumed sequentially from <p>.
type DAEPolylist struct {
	Count    int        `xml:"count,attr"`
	Material string     `xml:"material,attr"`
	Inputs   []DAEInput `xml:"input"`
	VCount   string     `xml:"vcount"`
	P        string     `xml:"p"`
}

// DAEVisualScene is one library_visual_scenes entry.
type DAEVisualScene struct {
	ID    string    `xml:"id,attr"`
	Name  string    `xml:"name,attr"`
	Nodes []DAENode `xml:"node"`
}

// DAENode is a scene-graph node. Only direct top-level NODE-typed nodes
// carrying geometry instances are resolved; JOINT nodes and controller
// instances are unsupported, and child hierarchies are not walked.
type DAENode struct {
	ID                  string                  `xml:"id,attr"`
	Name                string                  `xml:"name,attr"`
	Type                string                  `xml:"type,attr"` // NODE (default) or JOINT
	InstanceGeometries  []DAEInstanceGeometry   `xml:"instance_geometry"`
	InstanceControllers []DAEInstanceController `xml:"instance_controller"`
	Children            []DAENode               `xml:"node"`
}

// IsNode reports whether the node is plain NODE-typed (the attribute
// defaults to NODE when absent).
func (n *DAENode) IsNode() bool {
	return n.Type == "" || n.Type == "NODE"
}

// DAEInstanceGeometry references a library geometry by #-prefixed URL.
type DAEInstanceGeometry struct {
	URL string `xml:"url,attr"`
}

// DAEInstanceController references a library controller. Recognized so
// its presence can be diagnosed, never resolved.
type DAEInstanceController struct {
	URL string `xml:"url,attr"`
}

// DAEMaterial is one library_materials entry.
type DAEMaterial struct {
	ID             string `xml:"id,attr"`
	Name           string `xml:"name,attr"`
	InstanceEffect struct {
		URL string `xml:"url,attr"`
	} `xml:"instance_effect"`
}

// DAEEffect is one library_effects entry.
type DAEEffect struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// DAEScene selects the visual scene to instantiate.
type DAEScene struct {
	InstanceVisualScene *DAEInstanceVisualScene `xml:"instance_visual_scene"`
}

// DAEInstanceVisualScene references a library visual scene by URL.
type DAEInstanceVisualScene struct {
	URL string `xml:"url,attr"`
}
