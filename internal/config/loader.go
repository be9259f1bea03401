package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	envPrefix     = "ADREC_"
	envConfigFile = "ADREC_CONFIG"
)

// legacyEnv maps the unprefixed variables used by existing deployments
// to their config keys.
var legacyEnv = map[string]string{ //nolint:gochecknoglobals // read-only lookup table
	"DB_HOST":      "db_host",
	"DB_PORT":      "db_port",
	"DB_DATABASE":  "db_database",
	"DB_USERNAME":  "db_username",
	"DB_PASSWORD":  "db_password",
	"KAFKA_BROKER": "kafka_broker",
	"REDIS_HOST":   "redis_host",
	"REDIS_PORT":   "redis_port",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ADREC_CONFIG is set
//  3. legacy unprefixed env (DB_HOST, KAFKA_BROKER, REDIS_HOST, ...)
//  4. env (prefix ADREC_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	legacy := env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// ADREC_QUEUE_SIZE -> queue_size (flat keys, underscores preserved).
	prefixed := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		if s == "config" {
			return ""
		}
		return s
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
