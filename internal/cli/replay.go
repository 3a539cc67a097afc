package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/truthwire/internal/pipeline"
	"github.com/ppiankov/truthwire/internal/worker"
)

var replayInterval time.Duration

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Verify claims read from a file",
	Long: `Replay feeds claims from a file through the same deduplication and
verification path as a live session, without audio:
- One claim per line; blank lines and # comments are skipped
- Repeats within the dedup window are suppressed
- --interval spaces claims out in real time to exercise the window

Use "-" to read claims from stdin.

Example:
  truthwire replay claims.txt
  truthwire replay claims.txt --interval 2s --json results.json
  echo "The Great Wall is visible from space" | truthwire replay -`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	addOutputFlags(replayCmd)
	replayCmd.Flags().DurationVar(&replayInterval, "interval", 0, "delay between claims")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOutputFlags(cmd, cfg)

	claims, err := worker.ReadClaimsFromFile(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, m := newRegistry()
	v, err := newVerifier(ctx, cfg, m)
	if err != nil {
		return err
	}
	a := newApp(cfg, v, reg, m)

	stopWatch := a.watch(os.Stdout)
	stopServer := a.serve(func() string { return "replay" })
	defer stopServer()

	fmt.Fprintf(os.Stderr, "✓ Loaded %d claims from %s\n\n", len(claims), args[0])

	accepted, suppressed := replayClaims(ctx, a.pipeline, claims, replayInterval, os.Stderr)

	drainErr := a.drain(drainTimeout)
	stopWatch()

	fmt.Fprintf(os.Stderr, "\n  Accepted:   %d\n  Suppressed: %d\n", accepted, suppressed)
	a.summary(os.Stderr)
	return drainErr
}

// replayClaims submits claims in order, waiting interval between them.
// It stops early when ctx is done.
func replayClaims(ctx context.Context, p *pipeline.Pipeline, claims []string, interval time.Duration, w io.Writer) (accepted, suppressed int) {
	for i, claim := range claims {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return accepted, suppressed
			case <-time.After(interval):
			}
		}
		if ctx.Err() != nil {
			return accepted, suppressed
		}

		if _, ok := p.Submit(claim); ok {
			accepted++
		} else {
			suppressed++
			fmt.Fprintf(w, "· duplicate  %q\n", claim)
		}
	}
	return accepted, suppressed
}
