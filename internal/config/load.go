package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/platform"
)

// ConfigPath returns $BOOTSTICK_CONFIG, or config.lua under home's
// ~/.config/bootstick.
func ConfigPath(home string) string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(home, ".config", "bootstick", "config.lua")
}

// LoadEnvFile seeds the process environment from a dotenv file. Variables
// already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load parses the config at path, falling back to the defaults when the
// file does not exist, then applies environment overrides.
func Load(ctx context.Context, path string, detector platform.Detector) (*Config, error) {
	log := logger.FromContext(ctx)

	cfg, err := NewParser(detector).ParseFile(ctx, path)
	switch {
	case err == nil:
		log.Debug("config loaded", "path", path)
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("no config file, using defaults", "path", path)
		cfg = Default()
	default:
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvStateDir); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv(EnvSysfs); v != "" {
		cfg.SysfsRoot = v
	}
}
