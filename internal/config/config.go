package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Music     MusicConfig     `toml:"music"`
	Cache     CacheConfig     `toml:"cache"`
	Playlists PlaylistsConfig `toml:"playlists"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// MusicConfig contains music library configuration
type MusicConfig struct {
	Directories      []string `toml:"directories"`
	SupportedFormats []string `toml:"supported_formats"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
	ScanOnStartup    bool     `toml:"scan_on_startup"`
}

// CacheConfig contains library cache configuration
type CacheConfig struct {
	Path string `toml:"path"`
}

// PlaylistsConfig contains playlist store configuration
type PlaylistsConfig struct {
	DatabasePath string `toml:"database_path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "3030",
			Host:        "127.0.0.1",
			ReadTimeout: 30,
		},
		Music: MusicConfig{
			Directories:      []string{"./music"},
			SupportedFormats: []string{".mp3", ".flac", ".ogg", ".wav", ".m4a", ".aac"},
			WatchForChanges:  true,
			ScanOnStartup:    true,
		},
		Cache: CacheConfig{
			Path: "./library_cache.json",
		},
		Playlists: PlaylistsConfig{
			DatabasePath: "./playlists.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	// Load from file
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Cadenza Configuration
# This file contains all configuration options for the Cadenza music backend.
# Edit the values below to customize your setup.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if len(c.Music.Directories) == 0 {
		return fmt.Errorf("at least one music directory must be configured")
	}
	if len(c.Music.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	if c.Cache.Path == "" {
		return fmt.Errorf("cache path cannot be empty")
	}
	if c.Playlists.DatabasePath == "" {
		return fmt.Errorf("playlist database path cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Music.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}
