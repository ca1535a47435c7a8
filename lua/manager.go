package lua

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samaelod/paesim/types"
)

// SaveToRecent copies the loaded scenario into recentDir as name_N.lua.
// Lua sources are copied verbatim; anything else is rendered with WriteConfig.
func SaveToRecent(cfg *types.Config, originalPath, recentDir string) (string, error) {
	if recentDir == "" {
		recentDir = "recent"
	}
	if err := os.MkdirAll(recentDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recent directory: %w", err)
	}

	baseName := filepath.Base(originalPath)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))

	var newPath string
	for counter := 1; ; counter++ {
		newPath = filepath.Join(recentDir, fmt.Sprintf("%s_%d.lua", nameWithoutExt, counter))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			break
		}
	}

	f, err := os.Create(newPath)
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(originalPath, ".lua") {
		src, err := os.Open(originalPath)
		if err != nil {
			return "", fmt.Errorf("failed to open source lua file: %w", err)
		}
		defer src.Close()

		if _, err := io.Copy(f, src); err != nil {
			return "", fmt.Errorf("failed to copy lua content: %w", err)
		}
	} else if err := WriteConfig(f, cfg); err != nil {
		return "", fmt.Errorf("failed to write config to lua: %w", err)
	}

	return newPath, nil
}
