package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yndnr/boxstore-go/internal/infra/confloader"
	serverconfig "github.com/yndnr/boxstore-go/internal/server/config"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".boxstore", "cli.yaml")
}

// Load builds the CLI configuration. An empty path means the default path,
// which may be missing; an explicit path must exist. overrides are koanf
// keys such as "backend.redis.host" taken from flags.
func Load(path string, overrides map[string]any) (*serverconfig.Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file: %w", err)
		}
		path = ""
	}

	cfg := serverconfig.Default()
	loader := confloader.NewLoader(confloader.WithConfigFile(path))

	if err := loader.LoadFile(loader.FilePath()); err != nil {
		return nil, err
	}
	if err := loader.LoadEnv(); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := serverconfig.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
