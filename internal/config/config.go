// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger        LoggerConfig        `mapstructure:"logger" yaml:"logger"`
	Scorer        ScorerConfig        `mapstructure:"scorer" yaml:"scorer"`
	Aligner       AlignerConfig       `mapstructure:"aligner" yaml:"aligner"`
	Disambiguator DisambiguatorConfig `mapstructure:"disambiguator" yaml:"disambiguator"`
	Engine        EngineConfig        `mapstructure:"engine" yaml:"engine"`
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	Device        DeviceConfig        `mapstructure:"device" yaml:"device"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// WeightsConfig holds the per-signal weight overrides of the attribute scorer.
type WeightsConfig struct {
	Identifier   float64 `mapstructure:"identifier" yaml:"identifier"`
	Text         float64 `mapstructure:"text" yaml:"text"`
	Type         float64 `mapstructure:"type" yaml:"type"`
	Geometry     float64 `mapstructure:"geometry" yaml:"geometry"`
	AncestorPath float64 `mapstructure:"ancestor_path" yaml:"ancestor_path"`
}

// Sum returns the total weight mass, used to renormalize overridden weights.
func (w WeightsConfig) Sum() float64 {
	return w.Identifier + w.Text + w.Type + w.Geometry + w.AncestorPath
}

// ScorerConfig configures the attribute scorer.
type ScorerConfig struct {
	Weights WeightsConfig `mapstructure:"weights" yaml:"weights"`
	// MinScoreFloor is the score below which a pairing is never proposed.
	MinScoreFloor float64 `mapstructure:"min_score_floor" yaml:"min_score_floor"`
}

// AlignerConfig configures the tree aligner.
type AlignerConfig struct {
	// ContextBonus is added when a candidate's parent container matches the
	// recorded parent.
	ContextBonus float64 `mapstructure:"context_bonus" yaml:"context_bonus"`
	// SureThreshold is the score at which a full-tree pairing counts as a
	// certain match.
	SureThreshold float64 `mapstructure:"sure_threshold" yaml:"sure_threshold"`
	// LayoutMatchThreshold is the full-tree score at which two screens are
	// considered the same logical screen.
	LayoutMatchThreshold float64 `mapstructure:"layout_match_threshold" yaml:"layout_match_threshold"`
}

// DisambiguatorConfig configures the LLM tie-breaker.
type DisambiguatorConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// AmbiguityMargin is the top-2 score gap below which the tie-breaker runs.
	AmbiguityMargin float64       `mapstructure:"ambiguity_margin" yaml:"ambiguity_margin"`
	TopK            int           `mapstructure:"top_k" yaml:"top_k"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// EngineConfig configures the repair engine and the batch runner.
type EngineConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`
	ScriptTimeout    time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`
	// AttachScreenshots controls whether backtrace entries carry PNG evidence.
	AttachScreenshots bool `mapstructure:"attach_screenshots" yaml:"attach_screenshots"`
}

// LLMConfig defines the external classifier endpoint.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RequestsPerMinute caps outbound call rate; zero disables the limiter.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// DeviceConfig points at the on-device automation agents.
type DeviceConfig struct {
	// AgentURLs lists the base URLs of available device agents. Batch repair
	// assigns one agent per worker slot.
	AgentURLs      []string      `mapstructure:"agent_urls" yaml:"agent_urls"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "gsrb")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Scorer --
	v.SetDefault("scorer.weights.identifier", 0.4)
	v.SetDefault("scorer.weights.text", 0.25)
	v.SetDefault("scorer.weights.type", 0.15)
	v.SetDefault("scorer.weights.geometry", 0.1)
	v.SetDefault("scorer.weights.ancestor_path", 0.1)
	v.SetDefault("scorer.min_score_floor", 0.3)

	// -- Aligner --
	v.SetDefault("aligner.context_bonus", 0.1)
	v.SetDefault("aligner.sure_threshold", 0.85)
	v.SetDefault("aligner.layout_match_threshold", 0.8)

	// -- Disambiguator --
	v.SetDefault("disambiguator.enabled", false)
	v.SetDefault("disambiguator.ambiguity_margin", 0.05)
	v.SetDefault("disambiguator.top_k", 3)
	v.SetDefault("disambiguator.timeout", "20s")

	// -- Engine --
	v.SetDefault("engine.batch_concurrency", 2)
	v.SetDefault("engine.script_timeout", "30m")
	v.SetDefault("engine.attach_screenshots", false)

	// -- LLM --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "30s")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.requests_per_minute", 30.0)

	// -- Device --
	v.SetDefault("device.agent_urls", []string{"http://127.0.0.1:7912"})
	v.SetDefault("device.request_timeout", "30s")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewFromViper creates a configuration instance from a viper object.
func NewFromViper(v *viper.Viper) (*Config, error) {
	// API keys come from the environment, never the config file.
	v.BindEnv("llm.api_key", "GSRB_LLM_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if s := c.Scorer.Weights.Sum(); s <= 0 {
		return fmt.Errorf("scorer.weights must have a positive sum, got %v", s)
	}
	if c.Scorer.MinScoreFloor < 0 || c.Scorer.MinScoreFloor > 1 {
		return fmt.Errorf("scorer.min_score_floor must be in [0,1]")
	}
	if c.Aligner.ContextBonus < 0 {
		return fmt.Errorf("aligner.context_bonus must be non-negative")
	}
	if c.Disambiguator.AmbiguityMargin < 0 || c.Disambiguator.AmbiguityMargin > 1 {
		return fmt.Errorf("disambiguator.ambiguity_margin must be in [0,1]")
	}
	if c.Disambiguator.TopK < 2 {
		return fmt.Errorf("disambiguator.top_k must be at least 2")
	}
	if c.Engine.BatchConcurrency <= 0 {
		return fmt.Errorf("engine.batch_concurrency must be a positive integer")
	}
	if c.Disambiguator.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("disambiguator is enabled but no LLM API key is set (GSRB_LLM_API_KEY)")
	}
	return nil
}
