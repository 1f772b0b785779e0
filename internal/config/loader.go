package config

import (
	"context"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Environment contract.
const (
	EnvPrefix     = "WALLETMATCH_"
	EnvConfigFile = EnvPrefix + "CONFIG"
	envNesting    = "__"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env in the working directory, if present (seeds the environment)
//  3. file (YAML) if WALLETMATCH_CONFIG is set
//  4. env (prefix WALLETMATCH_, "__" nests: WALLETMATCH_WEIGHTS__BALANCE)
func Load(_ context.Context) (*Config, error) {
	base := New()

	// A missing .env is the normal case.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(ErrLoadConfig, "config file %s: %v", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, envNesting, ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, errors.Wrapf(ErrLoadConfig, "environment: %v", err)
	}
	// The config file location is not a setting.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrapf(ErrLoadConfig, "decode: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return errors.Wrapf(ErrInvalidConfig, "worker_count must be at least 1, got %d", c.WorkerCount)
	}
	if c.QueueSize < 1 {
		return errors.Wrapf(ErrInvalidConfig, "queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.LogTopN < 0 {
		return errors.Wrapf(ErrInvalidConfig, "log_top_n must not be negative, got %d", c.LogTopN)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
