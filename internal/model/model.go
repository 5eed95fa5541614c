// Package model wraps imported geometry into display-ready models:
// meshes scaled to a normalized bounding size, plus batch import with
// per-file error recovery.
package model

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/logger"
	"github.com/Faultbox/meshview/pkg/formats"
	"github.com/Faultbox/meshview/pkg/geometry"
)

// DefaultBoundingSize is the target extent models are normalized to.
const DefaultBoundingSize float32 = 8.0

// Model is one imported object prepared for the rendering layer.
type Model struct {
	ID   uint32
	Name string
	Path string

	Object *geometry.Object

	// ScalingFactor normalizes the model's largest proportional extent
	// to the target bounding size.
	ScalingFactor float32

	// MemUsage approximates the model's in-memory footprint in bytes.
	MemUsage int
}

// New wraps a parsed object. id is assigned by the caller (models are
// created sequentially, one per imported file).
func New(id uint32, path string, obj *geometry.Object, boundingSize float32) *Model {
	m := &Model{
		ID:            id,
		Name:          obj.Name,
		Path:          path,
		Object:        obj,
		ScalingFactor: normalizedScale(obj.Bounds, boundingSize),
	}
	m.MemUsage = m.memUsage()
	return m
}

// Pivot returns the scaled center of the model's bounding box, the
// point rotations orbit around.
func (m *Model) Pivot() mgl32.Vec3 {
	if !m.Object.Bounds.Valid() {
		return mgl32.Vec3{}
	}
	return m.Object.Bounds.Center().Mul(m.ScalingFactor)
}

// normalizedScale computes the uniform factor that shrinks or grows the
// bounding box so its most constraining axis spans boundingSize. The
// smallest per-axis factor wins to maintain proportions. An empty or
// degenerate box scales by 1.
func normalizedScale(b geometry.AABB, boundingSize float32) float32 {
	if !b.Valid() {
		return 1
	}
	size := b.Size()
	scale := float32(math.Inf(1))
	for i := 0; i < 3; i++ {
		if size[i] <= 0 {
			continue
		}
		if f := boundingSize / size[i]; f < scale {
			scale = f
		}
	}
	if math.IsInf(float64(scale), 1) {
		return 1
	}
	return scale
}

func (m *Model) memUsage() int {
	const (
		vertexSize  = 14 * 4 // 14 float32 fields
		indexSize   = 4
		textureSize = 8
	)
	size := 0
	for i := range m.Object.Meshes {
		mesh := &m.Object.Meshes[i]
		size += len(mesh.Vertices)*vertexSize + len(mesh.Indices)*indexSize
		if mesh.Material != nil {
			size += len(mesh.Material.Textures) * textureSize
		}
	}
	return size
}

// Importer imports model files sequentially and keeps a running id
// counter. A failed file is logged and skipped; the remaining files
// still import.
type Importer struct {
	loader       formats.TextureLoader
	boundingSize float32
	nextID       uint32
}

// NewImporter returns an Importer using the given texture loader (may
// be nil) and target bounding size (<= 0 selects the default).
func NewImporter(loader formats.TextureLoader, boundingSize float32) *Importer {
	if boundingSize <= 0 {
		boundingSize = DefaultBoundingSize
	}
	return &Importer{loader: loader, boundingSize: boundingSize}
}

// Import loads a single model file.
func (im *Importer) Import(path string) (*Model, error) {
	obj, err := formats.Load(path, im.loader)
	if err != nil {
		return nil, err
	}
	im.nextID++
	return New(im.nextID, path, obj, im.boundingSize), nil
}

// ImportAll loads a batch of files, one complete model per file. Import
// failures are reported per file and do not abort the batch.
func (im *Importer) ImportAll(paths []string) []*Model {
	models := make([]*Model, 0, len(paths))
	for _, path := range paths {
		m, err := im.Import(path)
		if err != nil {
			logger.Warn("skipping model that failed to import",
				zap.String("path", path), zap.Error(err))
			continue
		}
		models = append(models, m)
	}
	return models
}
