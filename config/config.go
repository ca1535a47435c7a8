package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config is the application config (paesim.toml), separate from scenarios.
type Config struct {
	LogLines    int    `toml:"log_lines"`
	LogsDir     string `toml:"logs_dir"`
	RecentDir   string `toml:"recent_dir"`
	CapturesDir string `toml:"captures_dir"`
}

var (
	defaultConfig *Config
	once          sync.Once
)

func Default() *Config {
	return &Config{
		LogLines:    1000,
		LogsDir:     "logs",
		RecentDir:   "recent",
		CapturesDir: "captures",
	}
}

// SearchPaths lists the files Load tries when no path is given.
func SearchPaths() []string {
	return []string{
		"paesim.toml",
		".paesim.toml",
		filepath.Join(os.Getenv("HOME"), ".config", "paesim", "config.toml"),
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}

		if path == "" {
			return cfg, nil
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load app config %s: %w", path, err)
	}

	// Apply defaults for any zero values
	if cfg.LogLines <= 0 {
		cfg.LogLines = 1000
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = "logs"
	}
	if cfg.RecentDir == "" {
		cfg.RecentDir = "recent"
	}
	if cfg.CapturesDir == "" {
		cfg.CapturesDir = "captures"
	}

	return cfg, nil
}

// LoadDefault loads the config once and caches it
func LoadDefault() (*Config, error) {
	var err error
	once.Do(func() {
		defaultConfig, err = Load("")
	})
	if err != nil {
		return Default(), err
	}
	return defaultConfig, nil
}

// CapturePath places a bare capture file name under CapturesDir.
// Paths with a directory component are returned unchanged.
func (c *Config) CapturePath(name string) string {
	if name == "" || filepath.IsAbs(name) || filepath.Base(name) != name || c.CapturesDir == "" {
		return name
	}
	return filepath.Join(c.CapturesDir, name)
}
