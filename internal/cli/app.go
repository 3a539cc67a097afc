package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ppiankov/truthwire/internal/cache"
	"github.com/ppiankov/truthwire/internal/dedup"
	"github.com/ppiankov/truthwire/internal/logging"
	"github.com/ppiankov/truthwire/internal/metrics"
	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/orchestrator"
	"github.com/ppiankov/truthwire/internal/pipeline"
	"github.com/ppiankov/truthwire/internal/server"
	"github.com/ppiankov/truthwire/internal/verify"
	"github.com/ppiankov/truthwire/internal/worker"
)

// app wires the claim path shared by every command:
// deduplicator -> orchestrator -> active/library collections
type app struct {
	cfg      *model.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	active   *orchestrator.Collection
	library  *orchestrator.Collection
	orch     *orchestrator.Orchestrator
	pipeline *pipeline.Pipeline
}

func newRegistry() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, metrics.New(reg)
}

// newVerifier builds the configured provider behind the cache and limiter
func newVerifier(ctx context.Context, cfg *model.Config, m *metrics.Metrics) (verify.Verifier, error) {
	var c cache.Cache
	if cfg.Verify.CacheEnabled {
		c = cache.NewMemoryCache(cfg.Verify.CacheTTL, 10*time.Minute)
	}
	limiter := worker.NewLimiter(cfg.Verify.RatePerSecond, cfg.Verify.Burst)

	v, err := verify.New(ctx, cfg.Verify, c, limiter, m)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	return v, nil
}

func newApp(cfg *model.Config, v verify.Verifier, reg *prometheus.Registry, m *metrics.Metrics) *app {
	a := &app{
		cfg:      cfg,
		registry: reg,
		metrics:  m,
		active:   orchestrator.NewCollection("active"),
		library:  orchestrator.NewCollection("library"),
	}

	a.orch = orchestrator.New(v, a.active, a.library,
		orchestrator.WithTimeout(cfg.Verify.Timeout),
		orchestrator.WithConcurrency(cfg.Verify.Concurrency),
		orchestrator.WithMetrics(m),
		orchestrator.WithLogger(logging.New("orchestrator")),
	)

	d := dedup.New(dedup.Config{Window: cfg.Dedup.Window, Threshold: cfg.Dedup.Threshold})
	a.pipeline = pipeline.New(d, a.orch,
		pipeline.WithMetrics(m),
		pipeline.WithLogger(logging.New("pipeline")),
	)
	return a
}

// watch prints library changes to w until the returned stop is called
func (a *app) watch(w io.Writer) (stop func()) {
	events, cancel := a.library.Subscribe(256)
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})

	renderer := pipeline.NewRenderer(w, a.cfg.Output.Verbose)
	go func() {
		defer close(done)
		renderer.Watch(ctx, events)
	}()

	return func() {
		cancel()
		<-done
		cancelCtx()
	}
}

// serve starts the observer API when enabled. The returned function stops it.
func (a *app) serve(sessionState func() string) func() {
	if !a.cfg.Server.Enabled {
		return func() {}
	}

	srv := server.New(a.cfg.Server.Address, server.Deps{
		Active:       a.active,
		Library:      a.library,
		Dismisser:    a.orch,
		Submitter:    a.pipeline,
		SessionState: sessionState,
		Gatherer:     a.registry,
	}, logging.New("server"))
	srv.Start()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.New("server").WithError(err).Warn("observer API shutdown")
		}
	}
}

// drain waits for pending verifications up to timeout, then writes the
// JSON snapshot if one was requested
func (a *app) drain(timeout time.Duration) error {
	if n := a.orch.Pending(); n > 0 {
		fmt.Fprintf(os.Stderr, "⚙️  Waiting for %d pending verification(s)...\n", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.orch.Close(ctx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("drain verifications: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✗ Drain timeout reached after %v; remaining claims marked failed\n", timeout)
	}

	if path := a.cfg.Output.JSONPath; path != "" {
		if err := pipeline.WriteJSON(path, a.library.List(), time.Now()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", path)
	}
	return nil
}

// summary prints verdict counts for the library
func (a *app) summary(w io.Writer) {
	counts := map[string]int{}
	records := a.library.List()
	for _, rec := range records {
		key := string(rec.Status)
		if rec.Status == model.StatusComplete {
			key = string(rec.Verdict)
		}
		counts[key]++
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Session Summary\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Claims:     %d\n", len(records))
	for _, key := range []string{"verified", "debunked", "nuanced", "uncertain", "failed", "pending"} {
		if counts[key] > 0 {
			fmt.Fprintf(w, "  %-10s  %d\n", key+":", counts[key])
		}
	}
	fmt.Fprintf(w, "\n")
}
