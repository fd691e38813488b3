package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the application configuration
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	UI      UIConfig      `toml:"ui"`
}

// StorageConfig selects the key-value backend holding the contacts
type StorageConfig struct {
	Backend string `toml:"backend"` // sqlite, badger, file or memory
	Path    string `toml:"path"`    // defaults per backend when empty
	Key     string `toml:"key"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

// UIConfig holds terminal UI preferences
type UIConfig struct {
	ConfirmDelete bool `toml:"confirm_delete"`
}

// Dir returns the configuration directory
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "contacts-tui")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "sqlite",
			Key:     "state",
		},
		Log: LogConfig{
			Path:  filepath.Join(Dir(), "contacts.log"),
			Level: "info",
		},
		UI: UIConfig{
			ConfirmDelete: true,
		},
	}
}

// DefaultStoragePath returns where a backend keeps its data when no path
// is configured
func DefaultStoragePath(backend string) string {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, ".config", "contacts")
	switch backend {
	case "sqlite":
		return filepath.Join(base, "contacts.db")
	case "badger":
		return filepath.Join(base, "badger")
	case "file":
		return filepath.Join(base, "data")
	default:
		return ""
	}
}

// StoragePath returns the configured storage path, or the backend default
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return DefaultStoragePath(c.Storage.Backend)
}

// Path returns the standard config file location
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load loads configuration from the standard location
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads configuration from a specific path
func LoadFrom(configPath string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// No config file, return defaults
		return cfg, nil
	}

	// Read and parse config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand home directory in paths
	cfg.Storage.Path = expandPath(cfg.Storage.Path)
	cfg.Log.Path = expandPath(cfg.Log.Path)

	return cfg, nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves the configuration to the standard location
func (c *Config) Save() error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return c.SaveTo(Path())
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(configPath string) error {
	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}
