package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultClientPath is where a skeleton config lands on first run.
const DefaultClientPath = "cloudsave.yaml"

// SaveCredentials rewrites the config file with a new nickname and API key,
// preserving whatever else it contains. An empty path writes a fresh file at
// DefaultClientPath.
func SaveCredentials(path, nickname, apiKey string) (string, error) {
	if path == "" {
		path = DefaultClientPath
	}

	vp := viper.New()
	vp.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := vp.ReadInConfig(); err != nil {
			return "", fmt.Errorf("read config: %w", err)
		}
	}

	vp.Set("client.nickname", nickname)
	vp.Set("client.api_key", apiKey)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := vp.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// WriteSkeleton creates a first-run config file with placeholder save paths
// for the user to edit, mirroring the rest of the defaults.
func WriteSkeleton(path string) error {
	vp := viper.New()
	setDefaults(vp)
	vp.Set("client.save_paths", map[string]string{
		"mesen":       "/path/to/mesen/saves",
		"duckstation": "/path/to/duckstation/saves",
	})
	return vp.WriteConfigAs(path)
}
