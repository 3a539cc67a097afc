package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/truthwire/internal/model"
)

var drainTimeout time.Duration

// addOutputFlags registers the flags shared by commands that run the
// claim path. Flag values override the config only when set explicitly.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("server", false, "serve the observer API")
	cmd.Flags().String("addr", "", "observer API address (default from config)")
	cmd.Flags().String("json", "", "write all claims to this JSON file on exit")
	cmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 30*time.Second, "how long to wait for pending verifications on exit")

	// Verification
	cmd.Flags().String("provider", "", "verification provider (gemini, openai, anthropic, ollama)")
	cmd.Flags().String("verify-model", "", "verification model name")
	cmd.Flags().Duration("timeout", 0, "per-claim verification timeout (0 = none)")
	cmd.Flags().Int("concurrency", 0, "max concurrent verifications (0 = unbounded)")
	cmd.Flags().Bool("no-cache", false, "disable the verification result cache")
}

func applyOutputFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()

	if flags.Changed("server") {
		cfg.Server.Enabled, _ = flags.GetBool("server")
	}
	if flags.Changed("addr") {
		cfg.Server.Address, _ = flags.GetString("addr")
		cfg.Server.Enabled = true
	}
	if flags.Changed("json") {
		cfg.Output.JSONPath, _ = flags.GetString("json")
	}
	if flags.Changed("provider") {
		cfg.Verify.Provider, _ = flags.GetString("provider")
		cfg.Verify.APIKey = viper.GetString("verify.api_key")
		resolveAPIKeys(cfg, os.Getenv)
		if !flags.Changed("verify-model") && !viper.InConfig("verify.model") {
			// The default model belongs to the default provider
			cfg.Verify.Model = ""
		}
	}
	if flags.Changed("verify-model") {
		cfg.Verify.Model, _ = flags.GetString("verify-model")
	}
	if flags.Changed("timeout") {
		cfg.Verify.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("concurrency") {
		cfg.Verify.Concurrency, _ = flags.GetInt("concurrency")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.Verify.CacheEnabled = false
	}
}
