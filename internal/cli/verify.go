package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/truthwire/internal/pipeline"
)

var (
	verifyJSON    bool
	verifyTimeout time.Duration
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a single claim",
	Long: `Verify researches one claim and prints its verdict, explanation and sources.

Example:
  truthwire verify "The Eiffel Tower grows in summer"
  truthwire verify "Bananas are berries" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "print the record as JSON")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 2*time.Minute, "verification timeout")
	verifyCmd.Flags().String("provider", "", "verification provider (gemini, openai, anthropic, ollama)")
	verifyCmd.Flags().String("verify-model", "", "verification model name")
	verifyCmd.Flags().Bool("no-cache", false, "disable the verification result cache")
}

func runVerify(cmd *cobra.Command, args []string) error {
	claim := strings.TrimSpace(strings.Join(args, " "))
	if claim == "" {
		return fmt.Errorf("claim is empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOutputFlags(cmd, cfg)
	cfg.Verify.Timeout = verifyTimeout

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	reg, m := newRegistry()
	v, err := newVerifier(ctx, cfg, m)
	if err != nil {
		return err
	}
	a := newApp(cfg, v, reg, m)

	id, _ := a.pipeline.Submit(claim)
	if err := a.orch.Close(ctx); err != nil {
		return fmt.Errorf("verification did not finish: %w", err)
	}

	rec, ok := a.library.Get(id)
	if !ok {
		return fmt.Errorf("claim %s not found", id)
	}

	if verifyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Println(pipeline.NewRenderer(os.Stdout, true).Line(rec))
	if rec.FailureReason != "" {
		return fmt.Errorf("verification failed: %s", rec.FailureReason)
	}
	return nil
}
