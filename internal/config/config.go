// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Folders    []FolderConfig   `toml:"folders"`
	Hashing    HashingConfig    `toml:"hashing"`
	Resolution ResolutionConfig `toml:"resolution"`
	Relocation RelocationConfig `toml:"relocation"`
	Metadata   MetadataConfig   `toml:"metadata"`
}

type ServerConfig struct {
	LogLevel string `toml:"log_level"`
	LockFile string `toml:"lock_file"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// FolderConfig seeds a managed folder on first start.
type FolderConfig struct {
	Name     string `toml:"name"`
	Path     string `toml:"path"`
	DropType string `toml:"drop_type"` // none, source, destination, both, excluded
}

type HashingConfig struct {
	Parallel             bool     `toml:"parallel"`
	AutoDeleteDuplicates bool     `toml:"auto_delete_duplicates"`
	EnabledTypes         []string `toml:"enabled_types"`
}

type ResolutionConfig struct {
	Parallel           bool         `toml:"parallel"`
	InheritWatchStatus bool         `toml:"inherit_watch_status"`
	FreshnessWindow    duration     `toml:"freshness_window"`
	ExternalList       ExternalList `toml:"external_list"`
}

type ExternalList struct {
	Enabled bool `toml:"enabled"`
}

type RelocationConfig struct {
	MoveEnabled           bool     `toml:"move_enabled"`
	RenameEnabled         bool     `toml:"rename_enabled"`
	RelocateInDestination bool     `toml:"relocate_in_destination"`
	DeleteEmptyDirs       bool     `toml:"delete_empty_dirs"`
	SkipFreeSpaceCheck    bool     `toml:"skip_free_space_check"`
	CleanupExcludePaths   []string `toml:"cleanup_exclude_paths"` // regex patterns
	TriggerOnReleaseSave  bool     `toml:"trigger_on_release_save"`
}

type MetadataConfig struct {
	RemoteURL string `toml:"remote_url"`
	APIKey    string `toml:"api_key"`
}

// duration wraps time.Duration for TOML decoding of strings like "720h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// FreshnessWindow returns the configured anime metadata freshness window.
func (c *Config) FreshnessWindow() time.Duration {
	if c.Resolution.FreshnessWindow.Duration <= 0 {
		return 30 * 24 * time.Hour
	}
	return c.Resolution.FreshnessWindow.Duration
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.LockFile == "" {
		cfg.Server.LockFile = "./data/animarrd.lock"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/animarr.db"
	}
	if len(cfg.Hashing.EnabledTypes) == 0 {
		cfg.Hashing.EnabledTypes = []string{"ED2K", "CRC32"}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs}
	}

	return &cfg, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
