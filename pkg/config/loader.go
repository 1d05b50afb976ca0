package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from the process environment using its `env` and
// `envDefault` struct tags.
func Load(cfg any) error {
	return LoadWithEnv(cfg, Environ(nil))
}

// LoadWithEnv fills cfg from vars only.
func LoadWithEnv(cfg any, vars map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Environ returns the process environment as a map with overrides applied
// on top. Empty override values are ignored so unset flags fall through.
func Environ(overrides map[string]string) map[string]string {
	vars := make(map[string]string, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	for k, v := range overrides {
		if v != "" {
			vars[k] = v
		}
	}
	return vars
}
