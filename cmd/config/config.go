// Package config in cmd provides a thin CLI-scoped wrapper around the
// shared configuration loader in pkg/config. It exposes the loaded
// configuration via the AppConfig variable and mirrors the behavior
// exercised by the command-line tests.
package config

import (
	"github.com/spf13/pflag"

	pkgconfig "bsnode/pkg/config"
)

// AppConfig holds the currently loaded configuration for command-line
// utilities. It mirrors pkg/config.AppConfig but is scoped to this package
// for convenience when writing CLI tools and tests.
var AppConfig pkgconfig.Config

// LoadConfig loads the configuration from configFile and the process
// environment, binding any flags already registered on flagSet, and stores
// the result in AppConfig. Any errors during loading cause a panic, which
// is acceptable for command-line initialization where failure should abort
// execution.
func LoadConfig(configFile string, flagSet *pflag.FlagSet) {
	cfg, err := pkgconfig.Load(configFile, flagSet)
	if err != nil {
		panic(err)
	}
	AppConfig = *cfg
}
