// meshtool is a CLI utility for importing and inspecting 3D model files
// (OBJ, STL, COLLADA, binary FBX record trees).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/logger"
	"github.com/Faultbox/meshview/internal/model"
	"github.com/Faultbox/meshview/internal/texture"
	"github.com/Faultbox/meshview/pkg/formats"
)

func main() {
	// Global flags (-debug, -config, ...) come before the command.
	config.ParseFlags()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	formats.SetLogger(logger.Log)

	switch command {
	case "info":
		cmdInfo(cfg, args)
	case "validate":
		cmdValidate(cfg, args)
	case "textures":
		cmdTextures(cfg, args)
	case "fbx":
		cmdFBX(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshtool - 3D model import utility

Usage:
  meshtool <command> [options]

Commands:
  info <file>                 Show model statistics (meshes, triangles, bounds)
  validate <file...>          Import files and check structural invariants
  textures <file> [-out dir]  Export a model's textures as WebP
  fbx <file.fbx>              Dump a binary FBX record tree

Examples:
  meshtool info bunny.obj
  meshtool validate scans/*.stl
  meshtool textures robot.obj -out ./textures
  meshtool fbx rig.fbx`)
}

// importerFor builds a model importer honoring the texture settings.
func importerFor(cfg *config.Config) (*model.Importer, *texture.Registry) {
	var loader formats.TextureLoader
	var registry *texture.Registry
	if cfg.Import.LoadTextures {
		registry = texture.NewRegistry()
		loader = registry
	}
	return model.NewImporter(loader, cfg.Viewer.BoundingSize), registry
}

func cmdInfo(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool info <file>")
		os.Exit(1)
	}

	importer, _ := importerFor(cfg)
	m, err := importer.Import(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	obj := m.Object
	fmt.Printf("Model:     %s\n", args[0])
	fmt.Printf("Name:      %s\n", obj.Name)
	fmt.Printf("Meshes:    %d\n", len(obj.Meshes))
	fmt.Printf("Vertices:  %d\n", obj.TotalVertexCount())
	fmt.Printf("Triangles: %d\n", obj.TotalTriangleCount())
	fmt.Printf("Memory:    %.2f MB\n", float64(m.MemUsage)/(1024*1024))
	fmt.Printf("Scale:     %.4f\n", m.ScalingFactor)
	if obj.Bounds.Valid() {
		fmt.Printf("Bounds:    min(%.3f, %.3f, %.3f) max(%.3f, %.3f, %.3f)\n",
			obj.Bounds.Min.X(), obj.Bounds.Min.Y(), obj.Bounds.Min.Z(),
			obj.Bounds.Max.X(), obj.Bounds.Max.Y(), obj.Bounds.Max.Z())
	} else {
		fmt.Println("Bounds:    (no geometry)")
	}
	fmt.Println()
	for i := range obj.Meshes {
		mesh := &obj.Meshes[i]
		material := "-"
		if mesh.Material != nil {
			material = mesh.Material.Name
		}
		fmt.Printf("  [%d] %-24s %8d verts %8d tris  material: %s\n",
			i, mesh.Name, len(mesh.Vertices), mesh.TriangleCount(), material)
	}
}

func cmdValidate(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool validate <file...>")
		os.Exit(1)
	}

	importer, _ := importerFor(cfg)
	failed := 0
	for _, path := range args {
		m, err := importer.Import(path)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		if err := m.Object.Validate(); err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("OK   %s (%d meshes, %d triangles)\n",
			path, len(m.Object.Meshes), m.Object.TotalTriangleCount())
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func cmdTextures(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("textures", flag.ExitOnError)
	outDir := fs.String("out", cfg.Export.OutputDir, "Output directory")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool textures <file> [-out dir]")
		os.Exit(1)
	}

	registry := texture.NewRegistry()
	importer := model.NewImporter(registry, cfg.Viewer.BoundingSize)
	if _, err := importer.Import(fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if registry.Len() == 0 {
		fmt.Println("No textures referenced.")
		return
	}

	paths, err := registry.ExportAllWebP(*outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}

func cmdFBX(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool fbx <file.fbx>")
		os.Exit(1)
	}

	root, err := formats.LoadFBX(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, node := range root.Children {
		dumpFBXNode(node, 0)
	}
}

func dumpFBXNode(node *formats.FBXNode, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	fmt.Printf("%s", node.Name)
	for _, prop := range node.Properties {
		switch v := prop.Value.(type) {
		case string:
			fmt.Printf(" %q", v)
		case []byte:
			fmt.Printf(" <%d raw bytes>", len(v))
		case []float32, []float64, []int32, []int64, []bool:
			fmt.Printf(" <%c-array>", prop.TypeCode)
		default:
			fmt.Printf(" %v", v)
		}
	}
	fmt.Println()
	for _, child := range node.Children {
		dumpFBXNode(child, depth+1)
	}
}
