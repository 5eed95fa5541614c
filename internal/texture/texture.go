// Package texture decodes texture image files and hands out opaque
// handles for them. It implements the loader interface the format
// parsers expect; deduplication within one import is the parsers' job,
// this package just decodes and registers.
package texture

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/meshview/pkg/geometry"
)

// Registry decodes texture files and assigns sequential handles. The
// decoded images are retained so tools can re-export them.
type Registry struct {
	mu     sync.Mutex
	nextID geometry.TextureHandle
	images map[geometry.TextureHandle]*Entry
}

// Entry is one registered texture.
type Entry struct {
	Path  string
	Image image.Image
}

// NewRegistry returns an empty registry. Handle 0 is never issued, so
// the zero TextureHandle stays distinguishable from a real texture.
func NewRegistry() *Registry {
	return &Registry{images: make(map[geometry.TextureHandle]*Entry)}
}

// LoadTexture decodes the image file at path and registers it under a
// fresh handle. It satisfies formats.TextureLoader.
func (r *Registry) LoadTexture(path string) (geometry.TextureHandle, error) {
	img, err := decode(path)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.images[r.nextID] = &Entry{Path: path, Image: img}
	return r.nextID, nil
}

// Lookup returns the entry behind a handle, or nil.
func (r *Registry) Lookup(handle geometry.TextureHandle) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.images[handle]
}

// Len returns the number of registered textures.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

// decode reads and decodes one image file. Every format is dispatched
// by extension: TGA carries no magic bytes, and importing the tga
// package registers it as a magic-less catch-all that image.Decode
// would route every file through, so content sniffing is off the table
// entirely.
func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening texture: %w", err)
	}
	defer f.Close()

	var (
		img image.Image
		ext = strings.ToLower(filepath.Ext(path))
	)
	switch ext {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".bmp":
		img, err = bmp.Decode(f)
	case ".tga":
		img, err = tga.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported texture format %q (want png, jpg, bmp, or tga): %s", ext, path)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding texture %s: %w", path, err)
	}
	return img, nil
}
