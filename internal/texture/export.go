package texture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
)

// ExportWebP re-encodes one registered texture as a lossless WebP file
// under outDir, named after the source file.
func (r *Registry) ExportWebP(entry *Entry, outDir string) (string, error) {
	base := filepath.Base(entry.Path)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".webp"
	outPath := filepath.Join(outDir, name)

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	if err := nativewebp.Encode(f, entry.Image, nil); err != nil {
		return "", fmt.Errorf("encoding %s: %w", outPath, err)
	}
	return outPath, nil
}

// ExportAllWebP writes every registered texture to outDir and returns
// the written paths.
func (r *Registry) ExportAllWebP(outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	r.mu.Lock()
	entries := make([]*Entry, 0, len(r.images))
	for _, e := range r.images {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		p, err := r.ExportWebP(e, outDir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
