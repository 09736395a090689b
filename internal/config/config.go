package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "placesweep.yaml"

// ErrMissingCredentials is returned by Validate when no HERE credentials are set.
var ErrMissingCredentials = errors.New("HERE credentials not configured (set HERE_API_KEY, or HERE_APP_ID and HERE_APP_CODE)")

// Config holds all placesweep configuration.
type Config struct {
	Name string `yaml:"name"`

	// Places API
	HERE HEREConfig `yaml:"here"`

	// Rectangle subdivision
	Sweep SweepConfig `yaml:"sweep"`

	// Local database
	Store StoreConfig `yaml:"store"`

	// Export writers
	Export ExportConfig `yaml:"export"`

	// Browse server
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
	Path   string `yaml:"path"`
}

// ExportConfig configures the export command.
type ExportConfig struct {
	Formats   []string `yaml:"formats"`
	OutputDir string   `yaml:"output_dir"`

	ElasticURL   string `yaml:"elastic_url"`
	ElasticIndex string `yaml:"elastic_index"`
}

// ServerConfig configures the read-only browse API.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	PageSize int    `yaml:"page_size"`
}

// ValidDrivers lists the registered SQLite driver names.
var ValidDrivers = []string{"sqlite3", "sqlite"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "placesweep",

		HERE: HEREConfig{
			BaseURL:     "https://places.api.here.com/places/v1",
			PageSize:    100,
			MaxPages:    1,
			Timeout:     "30s",
			MinInterval: "200ms",
		},

		Sweep: SweepConfig{
			Rows:      3,
			Columns:   3,
			Threshold: 90,
			MaxDepth:  16,
		},

		Store: StoreConfig{
			Driver: "sqlite3",
			Path:   "places.db",
		},

		Export: ExportConfig{
			Formats:      []string{"ndjson", "csv"},
			OutputDir:    ".",
			ElasticURL:   "http://localhost:9200",
			ElasticIndex: "places",
		},

		Server: ServerConfig{
			Addr:     ":8888",
			PageSize: 10,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Dir:    "logs",
		},
	}
}

// Load loads configuration from a YAML file.
// A .env file next to the config file is loaded first; variables already
// present in the environment win.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("HERE_API_KEY"); key != "" {
		c.HERE.APIKey = key
	}
	if id := os.Getenv("HERE_APP_ID"); id != "" {
		c.HERE.AppID = id
	}
	if code := os.Getenv("HERE_APP_CODE"); code != "" {
		c.HERE.AppCode = code
	}
	if url := os.Getenv("HERE_BASE_URL"); url != "" {
		c.HERE.BaseURL = url
	}

	if path := os.Getenv("PLACESWEEP_DB"); path != "" {
		c.Store.Path = path
	}
	if url := os.Getenv("PLACESWEEP_ELASTIC_URL"); url != "" {
		c.Export.ElasticURL = url
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.HERE.HasCredentials() {
		return ErrMissingCredentials
	}
	if c.HERE.PageSize < 1 {
		return fmt.Errorf("here.page_size must be >= 1")
	}
	if c.HERE.MaxPages < 1 {
		return fmt.Errorf("here.max_pages must be >= 1")
	}
	if err := c.Sweep.validate(c.HERE.PageSize); err != nil {
		return err
	}

	validDriver := false
	for _, d := range ValidDrivers {
		if c.Store.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must be set")
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
