// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Every field is resolved
// through viper, so values may come from the config file, environment
// variables (TASKDROID_ prefix) or command line flags, in that order of
// increasing precedence.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	VLM       VLMConfig       `mapstructure:"vlm" yaml:"vlm"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge" yaml:"knowledge"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DeviceConfig tunes the ADB-facing device layer.
type DeviceConfig struct {
	// Serial selects a specific device when more than one is attached.
	Serial string `mapstructure:"serial" yaml:"serial"`
	// RemoteTempDir is the on-device scratch directory for screenshots and
	// UI dumps before they are pulled to the host.
	RemoteTempDir string `mapstructure:"remote_temp_dir" yaml:"remote_temp_dir"`
	// MinElementDist is the minimum Manhattan distance, in pixels, between
	// the centers of two elements before they are considered duplicates.
	MinElementDist int `mapstructure:"min_element_dist" yaml:"min_element_dist"`
}

// AgentConfig holds settings for the navigation loop.
type AgentConfig struct {
	MaxTaskRounds      int           `mapstructure:"max_task_rounds" yaml:"max_task_rounds"`
	MaxExploreRounds   int           `mapstructure:"max_explore_rounds" yaml:"max_explore_rounds"`
	RequestInterval    time.Duration `mapstructure:"request_interval" yaml:"request_interval"`
	AppLoadWait        time.Duration `mapstructure:"app_load_wait" yaml:"app_load_wait"`
	InitialLoadRetries int           `mapstructure:"initial_load_retries" yaml:"initial_load_retries"`
	InitialLoadDelay   time.Duration `mapstructure:"initial_load_delay" yaml:"initial_load_delay"`
	GridRows           int           `mapstructure:"grid_rows" yaml:"grid_rows"`
	GridCols           int           `mapstructure:"grid_cols" yaml:"grid_cols"`
}

// VLMProvider enumerates the supported vision-language model backends.
type VLMProvider string

const (
	ProviderGemini VLMProvider = "gemini"
	ProviderOpenAI VLMProvider = "openai"
)

// VLMConfig configures the model gateway.
type VLMConfig struct {
	Provider VLMProvider `mapstructure:"provider" yaml:"provider"`
	// RequestsPerMinute throttles outbound model calls across the whole run.
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Gemini            ModelConfig   `mapstructure:"gemini" yaml:"gemini"`
	OpenAI            ModelConfig   `mapstructure:"openai" yaml:"openai"`
}

// ModelConfig defines the connection settings for a single model backend.
type ModelConfig struct {
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"-"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// KnowledgeConfig locates the persistent element documentation store.
type KnowledgeConfig struct {
	DocsDir string `mapstructure:"docs_dir" yaml:"docs_dir"`
}

// SetDefaults initializes default values for every configuration key.
// Absence of any key in the config file must never be fatal.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "taskdroid")
	v.SetDefault("logger.log_file", "taskdroid.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Device --
	v.SetDefault("device.serial", "")
	v.SetDefault("device.remote_temp_dir", "/sdcard/taskdroid_temp")
	v.SetDefault("device.min_element_dist", 20)

	// -- Agent --
	v.SetDefault("agent.max_task_rounds", 30)
	v.SetDefault("agent.max_explore_rounds", 40)
	v.SetDefault("agent.request_interval", "2s")
	v.SetDefault("agent.app_load_wait", "5s")
	v.SetDefault("agent.initial_load_retries", 5)
	v.SetDefault("agent.initial_load_delay", "3s")
	v.SetDefault("agent.grid_rows", 5)
	v.SetDefault("agent.grid_cols", 4)

	// -- VLM --
	v.SetDefault("vlm.provider", "gemini")
	v.SetDefault("vlm.requests_per_minute", 30.0)
	v.SetDefault("vlm.request_timeout", "120s")
	v.SetDefault("vlm.gemini.model", "gemini-2.5-flash")
	v.SetDefault("vlm.gemini.temperature", 0.0)
	v.SetDefault("vlm.gemini.max_tokens", 1024)
	v.SetDefault("vlm.openai.model", "gpt-4o")
	v.SetDefault("vlm.openai.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("vlm.openai.temperature", 0.0)
	v.SetDefault("vlm.openai.max_tokens", 1024)

	// -- Knowledge --
	v.SetDefault("knowledge.docs_dir", "~/.taskdroid/docs")
}

// NewDefaultConfig creates a configuration struct populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object,
// binding API keys from the environment and expanding home-relative paths.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("vlm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("vlm.openai.api_key", "OPENAI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	docsDir, err := homedir.Expand(cfg.Knowledge.DocsDir)
	if err != nil {
		return nil, fmt.Errorf("invalid knowledge.docs_dir: %w", err)
	}
	cfg.Knowledge.DocsDir = docsDir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxTaskRounds <= 0 || c.Agent.MaxExploreRounds <= 0 {
		return fmt.Errorf("agent round budgets must be positive integers")
	}
	if c.Agent.InitialLoadRetries <= 0 {
		return fmt.Errorf("agent.initial_load_retries must be a positive integer")
	}
	if c.Agent.GridRows <= 0 || c.Agent.GridCols <= 0 {
		return fmt.Errorf("agent grid dimensions must be positive integers")
	}
	if c.Device.MinElementDist < 0 {
		return fmt.Errorf("device.min_element_dist must not be negative")
	}
	switch c.VLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported vlm.provider %q", c.VLM.Provider)
	}
	if c.VLM.RequestsPerMinute <= 0 {
		return fmt.Errorf("vlm.requests_per_minute must be positive")
	}
	return nil
}

// ActiveModel returns the model settings for the configured provider.
func (c *Config) ActiveModel() ModelConfig {
	if c.VLM.Provider == ProviderOpenAI {
		return c.VLM.OpenAI
	}
	return c.VLM.Gemini
}

// RoundBudget returns the round budget for the given agent mode.
func (c *Config) RoundBudget(mode string) int {
	if strings.EqualFold(mode, "explore") {
		return c.Agent.MaxExploreRounds
	}
	return c.Agent.MaxTaskRounds
}
