package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "testdata/ieee14.ieee", cfg.CaseFile)
	assert.Equal(t, "BusVoltLoadChangeTrainCaseBuilder", cfg.Builder)
	assert.Equal(t, 50, cfg.TrainPoints)
	assert.Equal(t, 0.001, cfg.LearningRate)
	assert.Equal(t, 10000, cfg.TrainSteps)
	assert.Equal(t, 1000, cfg.LogEvery)
	assert.Equal(t, 1, cfg.NumWorkers)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.PatternFile)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := "case_file: cases/ieee30.ieee\ntrain_points: 80\nlearning_rate: 0.0005\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("GRIDVOLT_TRAIN_STEPS", "2500")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cases/ieee30.ieee", cfg.CaseFile)
	assert.Equal(t, 80, cfg.TrainPoints)
	assert.Equal(t, 0.0005, cfg.LearningRate)
	assert.Equal(t, 2500, cfg.TrainSteps)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	steps := 1
	cfg.ApplyOverrides(Overrides{TrainSteps: &steps, Seed: 7, Builder: "BusVoltRectLoadChangeTrainCaseBuilder"})
	assert.Equal(t, 1, cfg.TrainSteps)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, "BusVoltRectLoadChangeTrainCaseBuilder", cfg.Builder)
	assert.Equal(t, 50, cfg.TrainPoints)
	assert.Equal(t, 0.001, cfg.LearningRate)
}

func TestApplyZeroOverrides(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	lr, steps := 0.0, 0
	cfg.ApplyOverrides(Overrides{LearningRate: &lr, TrainSteps: &steps})
	assert.Equal(t, 0.0, cfg.LearningRate)
	assert.Equal(t, 0, cfg.TrainSteps)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"no case", func(c *Config) { c.CaseFile = "" }},
		{"no builder", func(c *Config) { c.Builder = "" }},
		{"zero points", func(c *Config) { c.TrainPoints = 0 }},
		{"negative steps", func(c *Config) { c.TrainSteps = -1 }},
		{"negative rate", func(c *Config) { c.LearningRate = -1 }},
		{"negative workers", func(c *Config) { c.NumWorkers = -2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mut(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())

	cfg := &Config{CaseFile: "x", Builder: "y", TrainPoints: 1, TrainSteps: 1}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.LogEvery)
	assert.Equal(t, 1, cfg.NumWorkers)
}
