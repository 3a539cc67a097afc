package model

import "time"

// Config holds the complete truthwire configuration
type Config struct {
	Live    LiveConfig    `yaml:"live" mapstructure:"live"`
	Dedup   DedupConfig   `yaml:"dedup" mapstructure:"dedup"`
	Verify  VerifyConfig  `yaml:"verify" mapstructure:"verify"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// LiveConfig configures the streaming speech session
type LiveConfig struct {
	Model      string `yaml:"model" mapstructure:"model"`
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey     string `yaml:"-" mapstructure:"api_key"`              // Never written to disk
	BlockSize  int    `yaml:"block_size" mapstructure:"block_size"`   // Samples per outbound frame
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"` // Hz
	Directive  string `yaml:"directive,omitempty" mapstructure:"directive"`
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// DedupConfig configures the claim deduplicator
type DedupConfig struct {
	Window    time.Duration `yaml:"window" mapstructure:"window"`
	Threshold float64       `yaml:"threshold" mapstructure:"threshold"` // Jaccard coefficient above which claims are duplicates
}

// VerifyConfig configures the verification service
type VerifyConfig struct {
	Provider      string        `yaml:"provider" mapstructure:"provider"` // gemini, openai, anthropic, ollama
	Model         string        `yaml:"model" mapstructure:"model"`
	APIKey        string        `yaml:"-" mapstructure:"api_key"`
	BaseURL       string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`         // 0 = no timeout
	Concurrency   int           `yaml:"concurrency" mapstructure:"concurrency"` // 0 = unbounded
	RatePerSecond float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int           `yaml:"burst" mapstructure:"burst"`
	CacheEnabled  bool          `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheTTL      time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// ServerConfig configures the observer HTTP API
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" mapstructure:"address"`
}

// OutputConfig configures terminal and file output
type OutputConfig struct {
	JSONPath string `yaml:"json_path,omitempty" mapstructure:"json_path"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Live: LiveConfig{
			Model:      "models/gemini-2.5-flash-native-audio-preview-09-2025",
			Endpoint:   "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent",
			BlockSize:  4096,
			SampleRate: 16000,
		},
		Dedup: DedupConfig{
			Window:    10 * time.Second,
			Threshold: 0.7,
		},
		Verify: VerifyConfig{
			Provider:      "gemini",
			Model:         "gemini-3-flash-preview",
			Timeout:       0,
			Concurrency:   0,
			RatePerSecond: 0,
			Burst:         5,
			CacheEnabled:  true,
			CacheTTL:      30 * time.Minute,
		},
		Server: ServerConfig{
			Enabled: false,
			Address: "127.0.0.1:8787",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
