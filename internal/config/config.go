package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// LoggerConfig controls structured logging output.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the web device backend.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// AgentConfig holds settings for the run loop and its components.
type AgentConfig struct {
	MaxSteps      int                 `mapstructure:"max_steps" yaml:"max_steps"`
	MaxFailures   int                 `mapstructure:"max_failures" yaml:"max_failures"`
	History       HistoryConfig       `mapstructure:"history" yaml:"history"`
	Memory        MemoryConfig        `mapstructure:"memory" yaml:"memory"`
	Dispatcher    DispatcherConfig    `mapstructure:"dispatcher" yaml:"dispatcher"`
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	SensitiveData SensitiveDataConfig `mapstructure:"sensitive_data" yaml:"sensitive_data"`
}

// HistoryConfig bounds the managed conversation history.
type HistoryConfig struct {
	MaxInputTokens int `mapstructure:"max_input_tokens" yaml:"max_input_tokens"`
	CharsPerToken  int `mapstructure:"chars_per_token" yaml:"chars_per_token"`
	ImageTokens    int `mapstructure:"image_tokens" yaml:"image_tokens"`
}

// MemoryConfig controls periodic history consolidation.
type MemoryConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval int           `mapstructure:"interval" yaml:"interval"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DispatcherConfig bounds concurrent action execution.
type DispatcherConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// SensitiveDataConfig carries secret values the agent may use but must
// never see in plaintext. Domain-scoped values override flat ones for
// the same placeholder.
type SensitiveDataConfig struct {
	Values  map[string]string            `mapstructure:"values" yaml:"values"`
	Domains map[string]map[string]string `mapstructure:"domains" yaml:"domains"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the tiered model setup.
type LLMConfig struct {
	Provider LLMProvider    `mapstructure:"provider" yaml:"provider"`
	Fast     LLMModelConfig `mapstructure:"fast" yaml:"fast"`
	Powerful LLMModelConfig `mapstructure:"powerful" yaml:"powerful"`
}

// LLMModelConfig defines the configuration for a single model.
type LLMModelConfig struct {
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP              float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// NewDefaultConfig creates a configuration populated with default values.
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

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ai-test-automation")
	v.SetDefault("logger.log_file", "agent.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "90s")

	// -- Agent --
	v.SetDefault("agent.max_steps", 50)
	v.SetDefault("agent.max_failures", 3)

	v.SetDefault("agent.history.max_input_tokens", 128000)
	v.SetDefault("agent.history.chars_per_token", 3)
	v.SetDefault("agent.history.image_tokens", 800)

	v.SetDefault("agent.memory.enabled", true)
	v.SetDefault("agent.memory.interval", 10)
	v.SetDefault("agent.memory.timeout", "30s")

	v.SetDefault("agent.dispatcher.workers", 4)

	// -- Agent LLM --
	v.SetDefault("agent.llm.provider", "gemini")
	v.SetDefault("agent.llm.fast.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.fast.api_timeout", "60s")
	v.SetDefault("agent.llm.fast.temperature", 0.3)
	v.SetDefault("agent.llm.fast.max_tokens", 2048)
	v.SetDefault("agent.llm.fast.requests_per_minute", 60)
	v.SetDefault("agent.llm.powerful.model", "gemini-2.5-pro")
	v.SetDefault("agent.llm.powerful.api_timeout", "120s")
	v.SetDefault("agent.llm.powerful.temperature", 0.7)
	v.SetDefault("agent.llm.powerful.max_tokens", 8192)
	v.SetDefault("agent.llm.powerful.requests_per_minute", 30)
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("agent.llm.fast.api_key", "ATA_LLM_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("agent.llm.powerful.api_key", "ATA_LLM_API_KEY", "GEMINI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the keys if Unmarshal didn't pick them up
	if cfg.Agent.LLM.Fast.APIKey == "" {
		cfg.Agent.LLM.Fast.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Agent.LLM.Powerful.APIKey == "" {
		cfg.Agent.LLM.Powerful.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.Agent.MaxFailures <= 0 {
		return fmt.Errorf("agent.max_failures must be a positive integer")
	}
	if err := c.Agent.History.Validate(); err != nil {
		return fmt.Errorf("agent.history configuration invalid: %w", err)
	}
	if err := c.Agent.Memory.Validate(); err != nil {
		return fmt.Errorf("agent.memory configuration invalid: %w", err)
	}
	if c.Agent.Dispatcher.Workers <= 0 {
		return fmt.Errorf("agent.dispatcher.workers must be a positive integer")
	}
	return nil
}

// Validate checks the history bounds.
func (h *HistoryConfig) Validate() error {
	if h.MaxInputTokens <= 0 {
		return fmt.Errorf("max_input_tokens must be greater than 0")
	}
	if h.CharsPerToken <= 0 {
		return fmt.Errorf("chars_per_token must be greater than 0")
	}
	if h.ImageTokens < 0 {
		return fmt.Errorf("image_tokens must not be negative")
	}
	return nil
}

// Validate checks the consolidation settings.
func (m *MemoryConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Interval <= 0 {
		return fmt.Errorf("interval must be greater than 0")
	}
	if m.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	return nil
}
