package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.InDelta(t, 1.0, cfg.Scorer.Weights.Sum(), 1e-9)
	assert.Equal(t, 0.3, cfg.Scorer.MinScoreFloor)
	assert.Equal(t, 0.05, cfg.Disambiguator.AmbiguityMargin)
	assert.Equal(t, 3, cfg.Disambiguator.TopK)
	assert.Equal(t, 20*time.Second, cfg.Disambiguator.Timeout)
	assert.False(t, cfg.Disambiguator.Enabled)
	assert.Equal(t, 2, cfg.Engine.BatchConcurrency)
	assert.Equal(t, 30*time.Minute, cfg.Engine.ScriptTimeout)
	assert.Equal(t, []string{"http://127.0.0.1:7912"}, cfg.Device.AgentURLs)
}

func TestNewFromViperAppliesOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("scorer.weights.identifier", 0.5)
	v.Set("disambiguator.top_k", 5)
	v.Set("engine.batch_concurrency", 4)

	cfg, err := NewFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Scorer.Weights.Identifier)
	assert.Equal(t, 5, cfg.Disambiguator.TopK)
	assert.Equal(t, 4, cfg.Engine.BatchConcurrency)
}

func TestNewFromViperReadsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("GSRB_LLM_API_KEY", "secret-key")

	v := viper.New()
	SetDefaults(v)
	v.Set("disambiguator.enabled", true)

	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.LLM.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero weights", func(c *Config) { c.Scorer.Weights = WeightsConfig{} }, "positive sum"},
		{"floor above one", func(c *Config) { c.Scorer.MinScoreFloor = 1.5 }, "min_score_floor"},
		{"negative bonus", func(c *Config) { c.Aligner.ContextBonus = -0.1 }, "context_bonus"},
		{"margin above one", func(c *Config) { c.Disambiguator.AmbiguityMargin = 2 }, "ambiguity_margin"},
		{"top_k too small", func(c *Config) { c.Disambiguator.TopK = 1 }, "top_k"},
		{"zero concurrency", func(c *Config) { c.Engine.BatchConcurrency = 0 }, "batch_concurrency"},
		{
			"enabled classifier without key",
			func(c *Config) { c.Disambiguator.Enabled = true; c.LLM.APIKey = "" },
			"API key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
