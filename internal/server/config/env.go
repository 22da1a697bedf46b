package config

import (
	"github.com/caarlos0/env/v11"
)

// parseEnv overlays environment variables onto the Config using the `env`
// struct tags. Variables that are not set leave the current values intact,
// so env sits between the JSON file and command-line flags in precedence.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
