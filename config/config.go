/*
Package config loads runtime configuration for the tracker service.

PURPOSE:
  One struct covers the HTTP server, the state database, the upstream
  environment, and the background cycle cadence. Values come from a YAML
  file overlaid by environment variables; credentials are environment-only
  so they never land in a checked-in file.

PRIORITY:
  ENV > YAML > defaults. The YAML path comes from HOURGLASS_CONFIG
  (fallback "./config.yaml"); a missing default file is fine, a missing
  explicit one is an error.

SEE ALSO:
  - cmd/hourglass/main.go: the only caller
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cycle    CycleConfig    `yaml:"cycle"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" env:"HOURGLASS_PORT" env-default:"8990"`
}

// DatabaseConfig locates the SQLite state file.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"HOURGLASS_DB" env-default:"./hourglass.db"`
}

// UpstreamConfig selects the time-tracking environment and carries the
// operator's credentials. Credentials are environment-only on purpose.
type UpstreamConfig struct {
	Environment string `yaml:"environment" env:"HOURGLASS_ENV" env-default:"prod"`
	Username    string `env:"HOURGLASS_USERNAME"`
	Password    string `env:"HOURGLASS_PASSWORD"`
}

// CycleConfig sets the background refresh cadence.
type CycleConfig struct {
	Interval time.Duration `yaml:"interval" env:"HOURGLASS_INTERVAL" env-default:"5m"`
}

// Validate rejects values the rest of the system cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Upstream.Environment != "prod" && c.Upstream.Environment != "qa" {
		return fmt.Errorf("upstream environment %q (want prod or qa)", c.Upstream.Environment)
	}
	if c.Cycle.Interval < time.Minute {
		return fmt.Errorf("cycle interval %s too short (minimum 1m)", c.Cycle.Interval)
	}
	return nil
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("HOURGLASS_CONFIG")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		// No file, load from ENV + defaults only.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
