// Package config loads the application configuration from an optional YAML
// file, the environment and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix is stripped from environment variables, so KARTEI_DB maps to the
// "db" key.
const envPrefix = "KARTEI_"

// Config holds the runtime configuration.
type Config struct {
	DB     string `koanf:"db" validate:"required"`     // SQLite database path.
	Listen string `koanf:"listen" validate:"required"` // HTTP listen address.
	Repos  string `koanf:"repos" validate:"required"`  // Directory for cloned deck repositories.
}

// Flags defines the command-line flags whose defaults seed the configuration.
// The returned flag set still needs Parse.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("kartei", pflag.ExitOnError)
	f.String("config", "", "Path to a YAML config file")
	f.String("db", "kartei.db", "Path to the SQLite database file")
	f.String("listen", "127.0.0.1:8484", "HTTP listen address")
	f.String("repos", "repos", "Directory for cloned deck repositories")
	f.Bool("sync", false, "Reconcile deck sources and exit")
	f.String("add-source", "", "Register a deck source (directory or git URL) and exit")
	return f
}

// Load builds the configuration from the parsed flag set.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
