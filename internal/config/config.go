// Package config loads store configuration.
//
// Sources, in increasing precedence: Default, a YAML file, environment
// variables prefixed NIDSTORE_, then caller overrides (CLI flags). The
// merged result is validated against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "NIDSTORE_"

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config describes one store instance.
type Config struct {
	Name      string `yaml:"name" json:"name" env:"NAME"`
	Backend   string `yaml:"backend" json:"backend" env:"BACKEND"`
	Path      string `yaml:"path" json:"path" env:"PATH"`
	Workers   int    `yaml:"workers" json:"workers" env:"WORKERS"`
	LogLevel  string `yaml:"log_level" json:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" json:"log_format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Name:      "nidstore",
		Backend:   BackendMemory,
		Workers:   runtime.GOMAXPROCS(0),
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), the environment and overrides, then validates it.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg, rejecting unknown fields.
func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks c against the CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def.Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel. Unknown names map to
// slog.LevelInfo.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
