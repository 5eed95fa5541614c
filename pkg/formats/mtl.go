package formats

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/pkg/geometry"
)

// textureCache deduplicates texture loads within one import: the same
// resolved path is handed to the loader exactly once, later references
// reuse the cached handle under their own role. The cache lives for one
// import call and never outlives it.
type textureCache struct {
	loader TextureLoader
	loaded map[string]geometry.TextureHandle
}

func newTextureCache(loader TextureLoader) *textureCache {
	return &textureCache{
		loader: loader,
		loaded: make(map[string]geometry.TextureHandle),
	}
}

// load resolves path through the cache. The second return is false when
// no loader is configured or the texture failed to load; texture
// failures are non-fatal at the material level.
func (c *textureCache) load(path string) (geometry.TextureHandle, bool) {
	if c.loader == nil {
		return 0, false
	}
	if handle, ok := c.loaded[path]; ok {
		return handle, true
	}
	handle, err := c.loader.LoadTexture(path)
	if err != nil {
		log.Warn("skipping texture that failed to load",
			zap.String("path", path), zap.Error(err))
		return 0, false
	}
	c.loaded[path] = handle
	return handle, true
}

// ParseMTLFile parses one .mtl material library from disk. Texture paths
// inside it are resolved relative to the .mtl file's own directory.
func ParseMTLFile(path string, textures *textureCache) (map[string]*geometry.Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening MTL file: %w", err)
	}
	defer f.Close()

	return ParseMTL(f, filepath.Dir(path), textures)
}

// ParseMTL parses MTL data from a reader into a name-to-material map.
func ParseMTL(r io.Reader, dir string, textures *textureCache) (map[string]*geometry.Material, error) {
	if textures == nil {
		textures = newTextureCache(nil)
	}
	p := &mtlParser{
		dir:      dir,
		textures: textures,
		result:   make(map[string]*geometry.Material),
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
			return nil, fmt.Errorf("MTL line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading MTL data: %w", err)
	}

	p.flush()
	return p.result, nil
}

type mtlParser struct {
	dir      string
	textures *textureCache
	result   map[string]*geometry.Material
	current  *geometry.Material
}

func (p *mtlParser) directive(line string) error {
	fields := strings.Fields(line)
	args := fields[1:]

	if fields[0] == "newmtl" {
		p.flush()
		p.current = geometry.DefaultMaterial()
		p.current.Name = firstOr(args, "")
		return nil
	}

	// Everything else modifies the material in progress.
	if p.current == nil {
		log.Warn("MTL directive before newmtl", zap.String("directive", fields[0]))
		return nil
	}

	switch fields[0] {
	case "Ka":
		v, err := parseVec3(args)
		if err != nil {
			return fmt.Errorf("Ka: %w", err)
		}
		p.current.Ambient = v
	case "Kd":
		v, err := parseVec3(args)
		if err != nil {
			return fmt.Errorf("Kd: %w", err)
		}
		p.current.Diffuse = v
	case "Ks":
		v, err := parseVec3(args)
		if err != nil {
			return fmt.Errorf("Ks: %w", err)
		}
		p.current.Specular = v
	case "Ns":
		f, err := parseScalar(args)
		if err != nil {
			return fmt.Errorf("Ns: %w", err)
		}
		p.current.SpecularExponent = f
	case "d":
		f, err := parseScalar(args)
		if err != nil {
			return fmt.Errorf("d: %w", err)
		}
		p.current.Opacity = f
	case "Tr":
		f, err := parseScalar(args)
		if err != nil {
			return fmt.Errorf("Tr: %w", err)
		}
		p.current.Opacity = 1 - f
	case "map_Ka":
		p.texture(args, geometry.TextureAmbient)
	case "map_Kd":
		p.texture(args, geometry.TextureDiffuse)
	case "map_Ks":
		p.texture(args, geometry.TextureSpecular)
	case "map_Ns":
		p.texture(args, geometry.TextureSpecularHighlight)
	case "map_Ke":
		p.texture(args, geometry.TextureEmissive)
	case "map_Bump", "map_bump", "bump", "norm":
		p.texture(args, geometry.TextureBump)
	case "map_d":
		// The role set has no dedicated alpha slot, so dissolve maps
		// share TextureDisplacement with disp.
		p.texture(args, geometry.TextureDisplacement)
	case "disp":
		p.texture(args, geometry.TextureDisplacement)
	case "decal":
		p.texture(args, geometry.TextureDecal)
	case "refl":
		p.texture(args, geometry.TextureReflection)
	default:
		log.Warn("skipping unrecognized MTL directive", zap.String("directive", fields[0]))
	}
	return nil
}

// texture resolves a texture directive's filename against the library's
// directory and attaches it under the given role. Bump directives may
// carry a -bm <factor> option before or after the filename; the factor
// is parsed but not yet applied to the material.
func (p *mtlParser) texture(args []string, role geometry.TextureRole) {
	var filename string
	for i := 0; i < len(args); i++ {
		if args[i] == "-bm" {
			// Consume the factor argument.
			if i+1 < len(args) {
				if _, err := strconv.ParseFloat(args[i+1], 32); err != nil {
					log.Warn("invalid -bm factor", zap.String("value", args[i+1]))
				}
				i++
			}
			continue
		}
		filename = args[i]
	}
	if filename == "" {
		log.Warn("texture directive without a filename",
			zap.String("material", p.current.Name), zap.Stringer("role", role))
		return
	}

	handle, ok := p.textures.load(filepath.Join(p.dir, filename))
	if !ok {
		return
	}
	p.current.Textures = append(p.current.Textures, geometry.Texture{
		Handle: handle,
		Role:   role,
	})
}

func (p *mtlParser) flush() {
	if p.current != nil {
		p.result[p.current.Name] = p.current
		p.current = nil
	}
}

func parseScalar(fields []string) (float32, error) {
	if len(fields) < 1 {
		return 0, fmt.Errorf("%w: want 1 component, got 0", ErrIncompleteData)
	}
	f, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid float %q", ErrMalformedDocument, fields[0])
	}
	return float32(f), nil
}
