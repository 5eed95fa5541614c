// Package config handles tool configuration loading and management.
package config

// Config holds all meshview settings.
type Config struct {
	Import  ImportConfig  `yaml:"import"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// ImportConfig holds model import settings.
type ImportConfig struct {
	// LoadTextures toggles texture decoding during import. Disabling it
	// speeds up geometry-only workflows.
	LoadTextures bool `yaml:"load_textures"`
}

// ViewerConfig holds model presentation settings.
type ViewerConfig struct {
	// BoundingSize is the normalized extent imported models are scaled
	// to before display.
	BoundingSize float32 `yaml:"bounding_size"`
}

// ExportConfig holds texture export settings.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Import: ImportConfig{
			LoadTextures: true,
		},
		Viewer: ViewerConfig{
			BoundingSize: 8.0,
		},
		Export: ExportConfig{
			OutputDir: "textures",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
