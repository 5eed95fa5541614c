// Package formats provides parsers for 3D model file formats. Each
// parser converts one source file (plus any auxiliary files it
// references) into the canonical geometry.Object representation.
//
// Supported formats: Wavefront OBJ/MTL, STL (ASCII and binary), and
// COLLADA (.dae). Binary FBX is decoded to its record tree only; see
// fbx.go.
package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/pkg/geometry"
)

// Shared format errors. Individual parse failures wrap one of these so
// callers can classify them with errors.Is.
var (
	// ErrUnsupportedFormat is returned when the file extension is
	// missing or not recognized by any parser.
	ErrUnsupportedFormat = errors.New("unsupported model format")
	// ErrMalformedDocument is returned when a required element,
	// attribute, or reference is missing or unresolvable.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrIncompleteData is returned when a directive carries fewer
	// numeric tokens than it requires.
	ErrIncompleteData = errors.New("incomplete data")
)

// log is the package diagnostics sink. Parsers emit non-fatal warnings
// (unrecognized directives, skipped textures) through it; it defaults to
// a no-op logger so library users opt in explicitly.
var log = zap.NewNop()

// SetLogger routes parser diagnostics to the given logger. Passing nil
// restores the no-op default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

// TextureLoader resolves a texture file path into an opaque GPU handle.
// Implementations live outside this package; parsers treat the loader as
// a pure function and deduplicate repeated paths themselves.
type TextureLoader interface {
	LoadTexture(path string) (geometry.TextureHandle, error)
}

// Load imports a model file, selecting the parser by file extension.
// The loader may be nil, in which case material texture references are
// skipped. The returned Object is owned by the caller; this package
// keeps no state between calls.
func Load(path string, loader TextureLoader) (*geometry.Object, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return LoadOBJ(path, loader)
	case ".stl":
		return LoadSTL(path)
	case ".dae":
		return LoadDAE(path)
	case ".fbx":
		// The record tree decodes, but no geometry extraction exists
		// for it yet.
		if _, err := LoadFBX(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: FBX geometry extraction is not implemented", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
