package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile    = flag.String("logfile", "", "Path to log file")
	flagNoTextures = flag.Bool("no-textures", false, "Skip texture loading during import")
	flagOutDir     = flag.String("out", "", "Output directory for exports")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagNoTextures {
		cfg.Import.LoadTextures = false
	}
	if *flagOutDir != "" {
		cfg.Export.OutputDir = *flagOutDir
	}
}
