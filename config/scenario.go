package config

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/samaelod/paesim/lua"
	"github.com/samaelod/paesim/types"
)

// ReadTOMLScenario decodes a [globals] / [[sessions]] scenario file.
// Unknown keys are rejected so a typo cannot silently fall back to a default.
func ReadTOMLScenario(path string) (*types.Config, error) {
	var cfg types.Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	return finishScenario(&cfg, meta)
}

// ParseTOMLScenario is ReadTOMLScenario for an in-memory document.
func ParseTOMLScenario(src string) (*types.Config, error) {
	var cfg types.Config
	meta, err := toml.Decode(src, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return finishScenario(&cfg, meta)
}

func finishScenario(cfg *types.Config, meta toml.MetaData) (*types.Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("scenario: unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// WriteTOMLScenario encodes cfg in the layout ReadTOMLScenario reads.
func WriteTOMLScenario(w io.Writer, cfg *types.Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// LoadScenario picks the reader from the file extension.
func LoadScenario(path string) (*types.Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		return lua.ReadLuaConfig(path)
	case ".toml":
		return ReadTOMLScenario(path)
	default:
		return nil, fmt.Errorf("unsupported scenario format: %s", path)
	}
}
