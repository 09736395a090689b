package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	Format     string          `yaml:"format"`               // json, console
	DebugMode  bool            `yaml:"debug_mode"`           // Master toggle for category files
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
	Dir        string          `yaml:"dir"`
}
