package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FileConfig holds settings persisted in a coordnet.yaml config file. Any
// field left zero here falls through to its environment variable, and any
// flag set on the command line overrides both.
type FileConfig struct {
	Database     string `yaml:"database,omitempty"`
	NWorkers     int    `yaml:"n_workers,omitempty"`
	TimeWindow   int    `yaml:"time_window,omitempty"`
	MinWeight    int    `yaml:"min_edge_weight,omitempty"`
	Concurrency  int    `yaml:"resolver_concurrency,omitempty"`
	RatePerSec   int    `yaml:"resolver_rate,omitempty"`
	FromHeader   string `yaml:"resolver_from,omitempty"`
	StopwordLang string `yaml:"stopword_language,omitempty"`
}

// LoadFileConfig reads path as a YAML config file. A missing file returns a
// zero-valued FileConfig rather than an error, since every field is
// optional and overridable by environment or flags.
func LoadFileConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// EnvConfig holds settings sourced from the process environment. Fields
// left empty/zero are not applied over the file layer.
type EnvConfig struct {
	Database     string `env:"COORDNET_DATABASE"`
	NWorkers     int    `env:"COORDNET_N_WORKERS"`
	TimeWindow   int    `env:"COORDNET_TIME_WINDOW"`
	MinWeight    int    `env:"COORDNET_MIN_EDGE_WEIGHT"`
	Concurrency  int    `env:"COORDNET_RESOLVER_CONCURRENCY"`
	RatePerSec   int    `env:"COORDNET_RESOLVER_RATE"`
	FromHeader   string `env:"COORDNET_RESOLVER_FROM"`
	StopwordLang string `env:"COORDNET_STOPWORD_LANGUAGE"`
}

// LoadEnvConfig parses the environment into an EnvConfig.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// Config is the fully layered, resolved configuration a command reads from.
// Layering is file defaults, then environment overrides, then CLI flag
// overrides applied by the caller after Resolve returns.
type Config struct {
	Database     string
	NWorkers     int
	TimeWindow   int
	MinWeight    int
	Concurrency  int
	RatePerSec   int
	FromHeader   string
	StopwordLang string
}

// Resolve merges a FileConfig and EnvConfig into a Config, with environment
// values winning over file values wherever the environment sets one.
func Resolve(file *FileConfig, envCfg *EnvConfig) Config {
	cfg := Config{
		Database:     file.Database,
		NWorkers:     file.NWorkers,
		TimeWindow:   file.TimeWindow,
		MinWeight:    file.MinWeight,
		Concurrency:  file.Concurrency,
		RatePerSec:   file.RatePerSec,
		FromHeader:   file.FromHeader,
		StopwordLang: file.StopwordLang,
	}
	if envCfg.Database != "" {
		cfg.Database = envCfg.Database
	}
	if envCfg.NWorkers != 0 {
		cfg.NWorkers = envCfg.NWorkers
	}
	if envCfg.TimeWindow != 0 {
		cfg.TimeWindow = envCfg.TimeWindow
	}
	if envCfg.MinWeight != 0 {
		cfg.MinWeight = envCfg.MinWeight
	}
	if envCfg.Concurrency != 0 {
		cfg.Concurrency = envCfg.Concurrency
	}
	if envCfg.RatePerSec != 0 {
		cfg.RatePerSec = envCfg.RatePerSec
	}
	if envCfg.FromHeader != "" {
		cfg.FromHeader = envCfg.FromHeader
	}
	if envCfg.StopwordLang != "" {
		cfg.StopwordLang = envCfg.StopwordLang
	}
	if cfg.Database == "" {
		cfg.Database = "coordnet.db"
	}
	return cfg
}

// LoadConfig reads the config file at path (if present) and the
// environment, and returns the merged result. CLI flags are applied by the
// caller on top of this, since cobra owns flag parsing.
func LoadConfig(path string) (Config, error) {
	file, err := LoadFileConfig(path)
	if err != nil {
		return Config{}, err
	}
	envCfg, err := LoadEnvConfig()
	if err != nil {
		return Config{}, err
	}
	return Resolve(file, envCfg), nil
}
