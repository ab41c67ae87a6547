package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	CaseFile      string  `mapstructure:"case_file"`
	Builder       string  `mapstructure:"builder"`
	TrainPoints   int     `mapstructure:"train_points"`
	LearningRate  float64 `mapstructure:"learning_rate"`
	TrainSteps    int     `mapstructure:"train_steps"`
	LogEvery      int     `mapstructure:"log_every"`
	NumWorkers    int     `mapstructure:"num_workers"`
	Seed          int64   `mapstructure:"seed"`
	BusMapping    string  `mapstructure:"bus_mapping"`
	BranchMapping string  `mapstructure:"branch_mapping"`
	PatternFile   string  `mapstructure:"pattern_file"`
	MetricsAddr   string  `mapstructure:"metrics_addr"`
}

// Overrides captures CLI supplied values. Zero values are ignored except for
// the pointer fields, which apply whenever set.
type Overrides struct {
	CaseFile     string
	Builder      string
	TrainPoints  int
	LearningRate *float64
	TrainSteps   *int
	LogEvery     int
	NumWorkers   int
	Seed         int64
	PatternFile  string
	MetricsAddr  string
}

// EnvPrefix is prepended to upper-cased keys for environment lookups.
const EnvPrefix = "GRIDVOLT"

var defaults = map[string]any{
	"case_file":      "testdata/ieee14.ieee",
	"builder":        "BusVoltLoadChangeTrainCaseBuilder",
	"train_points":   50,
	"learning_rate":  0.001,
	"train_steps":    10000,
	"log_every":      1000,
	"num_workers":    1,
	"seed":           0,
	"bus_mapping":    "",
	"branch_mapping": "",
	"pattern_file":   "",
	"metrics_addr":   "",
}

// Load reads a Config from defaults, GRIDVOLT_* environment variables and,
// when path is set, a YAML file.
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller supplied viper instance.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.CaseFile != "" {
		c.CaseFile = o.CaseFile
	}
	if o.Builder != "" {
		c.Builder = o.Builder
	}
	if o.TrainPoints > 0 {
		c.TrainPoints = o.TrainPoints
	}
	if o.LearningRate != nil {
		c.LearningRate = *o.LearningRate
	}
	if o.TrainSteps != nil {
		c.TrainSteps = *o.TrainSteps
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.PatternFile != "" {
		c.PatternFile = o.PatternFile
	}
	if o.MetricsAddr != "" {
		c.MetricsAddr = o.MetricsAddr
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.CaseFile == "" {
		return errors.New("case_file must be set")
	}
	if c.Builder == "" {
		return errors.New("builder must be set")
	}
	if c.TrainPoints <= 0 {
		return fmt.Errorf("train_points must be > 0 (got %d)", c.TrainPoints)
	}
	if c.TrainSteps < 0 {
		return fmt.Errorf("train_steps must be >= 0 (got %d)", c.TrainSteps)
	}
	if c.LearningRate < 0 {
		return fmt.Errorf("learning_rate must be >= 0 (got %g)", c.LearningRate)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("num_workers must be >= 0 (got %d)", c.NumWorkers)
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = 1
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 1000
	}
	return nil
}
