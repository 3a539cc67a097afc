package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/truthwire/internal/logging"
	"github.com/ppiankov/truthwire/internal/model"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "truthwire",
	Short: "Truthwire - live fact-checking of spoken claims",
	Long: `Truthwire listens to the microphone, detects factual claims as they are
spoken and verifies each one against web research in the background.

Every claim gets a verdict (verified, debunked, nuanced, uncertain), a short
explanation and the sources it was checked against. Repeated claims within a
short window are verified only once.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("truthwire %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.truthwire/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sources and charts)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".truthwire"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	setDefaults(viper.GetViper(), model.DefaultConfig())

	// Read in environment variables that match TRUTHWIRE_*
	viper.SetEnvPrefix("TRUTHWIRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so env variables can override
// keys that no config file mentions
func setDefaults(v *viper.Viper, cfg *model.Config) {
	v.SetDefault("live.model", cfg.Live.Model)
	v.SetDefault("live.endpoint", cfg.Live.Endpoint)
	v.SetDefault("live.api_key", "")
	v.SetDefault("live.block_size", cfg.Live.BlockSize)
	v.SetDefault("live.sample_rate", cfg.Live.SampleRate)
	v.SetDefault("live.directive", cfg.Live.Directive)
	v.SetDefault("live.http_proxy", "")
	v.SetDefault("live.https_proxy", "")

	v.SetDefault("dedup.window", cfg.Dedup.Window)
	v.SetDefault("dedup.threshold", cfg.Dedup.Threshold)

	v.SetDefault("verify.provider", cfg.Verify.Provider)
	v.SetDefault("verify.model", cfg.Verify.Model)
	v.SetDefault("verify.api_key", "")
	v.SetDefault("verify.base_url", cfg.Verify.BaseURL)
	v.SetDefault("verify.timeout", cfg.Verify.Timeout)
	v.SetDefault("verify.concurrency", cfg.Verify.Concurrency)
	v.SetDefault("verify.rate_per_second", cfg.Verify.RatePerSecond)
	v.SetDefault("verify.burst", cfg.Verify.Burst)
	v.SetDefault("verify.cache_enabled", cfg.Verify.CacheEnabled)
	v.SetDefault("verify.cache_ttl", cfg.Verify.CacheTTL)
	v.SetDefault("verify.http_proxy", "")
	v.SetDefault("verify.https_proxy", "")

	v.SetDefault("server.enabled", cfg.Server.Enabled)
	v.SetDefault("server.address", cfg.Server.Address)

	v.SetDefault("output.json_path", cfg.Output.JSONPath)
	v.SetDefault("output.verbose", cfg.Output.Verbose)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// loadConfig resolves the effective configuration from the global viper
func loadConfig() (*model.Config, error) {
	return buildConfig(viper.GetViper(), os.Getenv)
}

// buildConfig unmarshals v over the defaults and fills API keys from the
// environment when the config does not set them
func buildConfig(v *viper.Viper, getenv func(string) string) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	resolveAPIKeys(cfg, getenv)
	return cfg, nil
}

// resolveAPIKeys fills unset keys from GEMINI_API_KEY (or GOOGLE_API_KEY)
// and the verification provider's own variable
func resolveAPIKeys(cfg *model.Config, getenv func(string) string) {
	geminiKey := firstNonEmpty(getenv("GEMINI_API_KEY"), getenv("GOOGLE_API_KEY"))

	if cfg.Live.APIKey == "" {
		cfg.Live.APIKey = geminiKey
	}
	if cfg.Verify.APIKey == "" {
		switch strings.ToLower(cfg.Verify.Provider) {
		case "openai":
			cfg.Verify.APIKey = getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.Verify.APIKey = getenv("ANTHROPIC_API_KEY")
		case "ollama":
			if cfg.Verify.BaseURL == "" {
				cfg.Verify.BaseURL = getenv("OLLAMA_BASE_URL")
			}
		default:
			cfg.Verify.APIKey = geminiKey
		}
	}
}

func initLogging() error {
	return logging.Init(
		firstNonEmpty(viper.GetString("logging.level"), "info"),
		firstNonEmpty(viper.GetString("logging.format"), "text"),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
