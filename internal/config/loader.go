// Package config builds the runtime configuration from defaults, an
// optional YAML file, and environment variables.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/opensource-crm/harrier/internal/domain"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. tier defaults (HARRIER_TIER=pro selects ProConfig, else DefaultConfig)
//  2. file (YAML) if HARRIER_CONFIG is set
//  3. env (prefix HARRIER_, dots as underscores: HARRIER_SERVER_PORT ->
//     server.port)
func Load() (*domain.Config, error) {
	base := domain.DefaultConfig()
	if strings.EqualFold(os.Getenv("HARRIER_TIER"), string(domain.TierPro)) {
		base = domain.ProConfig()
	}

	k := koanf.New(".")

	if path := os.Getenv("HARRIER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider("HARRIER_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "harrier_")
		return strings.ReplaceAll(s, "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		return nil, errors.New("server port must be positive")
	}
	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return nil, errors.New("repository driver must be sqlite or postgres")
	}

	return &cfg, nil
}
