package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "CLOUDSAVE"

// Load reads configuration from a file, env vars, and defaults. The returned
// path is the resolved config file, or "" when none exists yet.
func Load(path string) (*Config, string, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if resolved != "" {
		vp.SetConfigFile(resolved)
		if err := vp.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}

	cfg.Server.Storage.S3.AccessKey = os.ExpandEnv(cfg.Server.Storage.S3.AccessKey)
	cfg.Server.Storage.S3.SecretKey = os.ExpandEnv(cfg.Server.Storage.S3.SecretKey)
	cfg.Server.Storage.S3.SessionToken = os.ExpandEnv(cfg.Server.Storage.S3.SessionToken)
	return &cfg, resolved, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv("CLOUDSAVE_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		"cloudsave.yaml",
		"cloudsave.yml",
		"cloudsave.toml",
		"cloudsave.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "cloudsave")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", nil
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "console")
	vp.SetDefault("client.server_url", "http://localhost:7000")
	vp.SetDefault("server.listen", ":7000")
	vp.SetDefault("server.users_file", "./server_data/users.json")
	vp.SetDefault("server.storage.backend", "local")
	vp.SetDefault("server.storage.local.path", "./server_data")
}
