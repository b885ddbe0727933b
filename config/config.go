// Package config holds the run configuration shared by the opfind
// subcommands. Values come from an optional YAML file; command-line flags
// override them.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/colorfulnotion/opfind/explore"
	"github.com/colorfulnotion/opfind/validate"
)

const DefaultOracle = "objdump"

type Config struct {
	Oracle     string         `yaml:"oracle"`
	LogLevel   string         `yaml:"log_level"`
	LogModules string         `yaml:"log_modules"`
	Find       FindConfig     `yaml:"find"`
	Validate   ValidateConfig `yaml:"validate"`
}

type FindConfig struct {
	Timeout       float64 `yaml:"timeout"` // seconds per solver sample
	Seed          uint64  `yaml:"seed"`
	Cache         string  `yaml:"cache"` // leveldb directory for decoder answers
	MaxFacts      int     `yaml:"max_facts"`
	MaxIterations int     `yaml:"max_iterations"`
	SkipRegions   bool    `yaml:"skip_regions"` // off unless asked for
	SkipSamples   int     `yaml:"skip_samples"`
}

type ValidateConfig struct {
	Workers   int    `yaml:"workers"`
	BatchSize int    `yaml:"batch_size"`
	Start     uint64 `yaml:"start"`
	End       uint64 `yaml:"end"`
}

func Default() *Config {
	ec := explore.DefaultConfig()
	vc := validate.DefaultConfig()
	return &Config{
		Oracle:   DefaultOracle,
		LogLevel: "info",
		Find: FindConfig{
			Timeout:     ec.SolverTimeout.Seconds(),
			SkipRegions: ec.SkipRegions,
			SkipSamples: ec.SkipSamples,
		},
		Validate: ValidateConfig{
			Workers:   vc.Workers,
			BatchSize: vc.BatchSize,
			Start:     vc.Start,
			End:       vc.End,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Check rejects values no run can use.
func (c *Config) Check() error {
	switch {
	case c.Oracle == "":
		return fmt.Errorf("oracle must be set")
	case c.Find.Timeout <= 0:
		return fmt.Errorf("find.timeout must be positive, got %v", c.Find.Timeout)
	case c.Find.MaxFacts < 0:
		return fmt.Errorf("find.max_facts must not be negative")
	case c.Find.MaxIterations < 0:
		return fmt.Errorf("find.max_iterations must not be negative")
	case c.Validate.End > validate.SpaceEnd:
		return fmt.Errorf("validate.end 0x%x is past the 32-bit space", c.Validate.End)
	case c.Validate.End != 0 && c.Validate.Start >= c.Validate.End:
		return fmt.Errorf("validate.start 0x%x is not below validate.end 0x%x", c.Validate.Start, c.Validate.End)
	}
	return nil
}

// Explore converts the find section for explore.New.
func (c *Config) Explore() explore.Config {
	return explore.Config{
		SolverTimeout: time.Duration(c.Find.Timeout * float64(time.Second)),
		RandomSeed:    c.Find.Seed,
		MaxFacts:      c.Find.MaxFacts,
		MaxIterations: c.Find.MaxIterations,
		SkipRegions:   c.Find.SkipRegions,
		SkipSamples:   c.Find.SkipSamples,
	}
}

// Validation converts the validate section for validate.New.
func (c *Config) Validation() validate.Config {
	return validate.Config{
		Start:     c.Validate.Start,
		End:       c.Validate.End,
		Workers:   c.Validate.Workers,
		BatchSize: c.Validate.BatchSize,
	}
}
