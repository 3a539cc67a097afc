package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/truthwire/internal/audio"
	"github.com/ppiankov/truthwire/internal/live"
	"github.com/ppiankov/truthwire/internal/logging"
	"github.com/ppiankov/truthwire/internal/model"
)

var monitorPath string

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Fact-check claims spoken into the microphone",
	Long: `Listen streams the default microphone to the live speech engine:
- Detect factual claims as they are spoken
- Suppress repeats of the same claim within the dedup window
- Verify every accepted claim concurrently in the background
- Print each verdict with its sources as it arrives

Press Ctrl-C to stop. Verifications still running are given
--drain-timeout to finish before they are marked failed.

Example:
  truthwire listen
  truthwire listen --server --addr 127.0.0.1:8787
  truthwire listen --json session.json --drain-timeout 1m`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	addOutputFlags(listenCmd)
	listenCmd.Flags().String("model", "", "live speech model")
	listenCmd.Flags().StringVar(&monitorPath, "monitor", "", "append the raw PCM sent to the engine to this file")
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOutputFlags(cmd, cfg)
	if cmd.Flags().Changed("model") {
		cfg.Live.Model, _ = cmd.Flags().GetString("model")
	}
	if cfg.Live.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, m := newRegistry()
	v, err := newVerifier(ctx, cfg, m)
	if err != nil {
		return err
	}
	a := newApp(cfg, v, reg, m)

	opts := []live.Option{
		live.WithMetrics(m),
		live.WithLogger(logging.New("live")),
	}

	sessionErr := make(chan error, 1)
	opts = append(opts, live.WithErrorHandler(func(err error) {
		select {
		case sessionErr <- err:
		default:
		}
	}))

	if monitorPath != "" {
		f, err := os.OpenFile(monitorPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open monitor file: %w", err)
		}
		defer f.Close()
		opts = append(opts, live.WithMonitor(f))
	}

	session := newSession(cfg, opts...)

	stopWatch := a.watch(os.Stdout)
	stopServer := a.serve(func() string { return session.State().String() })
	defer stopServer()

	printBanner(os.Stderr, cfg)

	if err := session.Start(ctx); err != nil {
		stopWatch()
		_ = a.drain(drainTimeout)
		return fmt.Errorf("start session: %w", err)
	}

	// Run ends when Stop closes the claim channel, so claims already
	// acknowledged to the engine are handled before shutdown.
	runDone := make(chan error, 1)
	go func() {
		runDone <- a.pipeline.Run(context.Background(), session.Claims())
	}()

	// Ends on Ctrl-C or when the session closes on its own
	var runErr error
	finished := false
	select {
	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "\n⚙️  Stopping...\n")
	case runErr = <-runDone:
		finished = true
	}

	if err := session.Stop(); err != nil {
		logging.New("live").WithError(err).Warn("session stop")
	}
	if !finished {
		runErr = <-runDone
	}
	if runErr != nil {
		return runErr
	}

	drainErr := a.drain(drainTimeout)
	stopWatch()
	a.summary(os.Stderr)

	select {
	case err := <-sessionErr:
		return fmt.Errorf("live session: %w", err)
	default:
	}
	return drainErr
}

func newSession(cfg *model.Config, opts ...live.Option) *live.Session {
	dialer := &live.WebsocketDialer{
		Endpoint:   cfg.Live.Endpoint,
		APIKey:     cfg.Live.APIKey,
		HTTPProxy:  cfg.Live.HTTPProxy,
		HTTPSProxy: cfg.Live.HTTPSProxy,
	}
	capturer := audio.NewMalgoCapturer(cfg.Live.SampleRate, cfg.Live.BlockSize)

	return live.NewSession(live.Config{
		Model:     cfg.Live.Model,
		Directive: cfg.Live.Directive,
	}, dialer, capturer, opts...)
}

func printBanner(w io.Writer, cfg *model.Config) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Truthwire Live\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Live model:   %s\n", cfg.Live.Model)
	fmt.Fprintf(w, "  Verifier:     %s/%s\n", cfg.Verify.Provider, cfg.Verify.Model)
	fmt.Fprintf(w, "  Dedup:        %v window, %.2f threshold\n", cfg.Dedup.Window, cfg.Dedup.Threshold)
	if cfg.Server.Enabled {
		fmt.Fprintf(w, "  Observer API: http://%s\n", cfg.Server.Address)
	}
	fmt.Fprintf(w, "\n")
}
