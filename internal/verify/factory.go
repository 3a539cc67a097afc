package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/truthwire/internal/cache"
	"github.com/ppiankov/truthwire/internal/metrics"
	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/worker"
)

// NewProvider creates the bare verifier named by cfg.Provider
func NewProvider(ctx context.Context, cfg model.VerifyConfig) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini", "google", "":
		return NewGeminiVerifier(ctx, cfg)

	case "openai":
		return NewOpenAIVerifier(cfg)

	case "anthropic", "claude":
		return NewAnthropicVerifier(cfg)

	case "ollama":
		return NewOllamaVerifier(cfg)

	default:
		return nil, fmt.Errorf("unknown verification provider: %s (supported: gemini, openai, anthropic, ollama)", cfg.Provider)
	}
}

// New creates the configured verifier wrapped with the result cache and the
// rate limiter. c and l may be nil to skip the corresponding wrapper.
func New(ctx context.Context, cfg model.VerifyConfig, c cache.Cache, l *worker.Limiter, m *metrics.Metrics) (Verifier, error) {
	v, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(v, cfg, c, l, m), nil
}

// Wrap applies the limiter and then the cache around v, so cache hits
// never consume rate limit tokens.
func Wrap(v Verifier, cfg model.VerifyConfig, c cache.Cache, l *worker.Limiter, m *metrics.Metrics) Verifier {
	if l != nil {
		v = NewLimitedVerifier(v, l)
	}
	if c != nil && cfg.CacheEnabled {
		v = NewCachedVerifier(v, c, cfg.CacheTTL, m)
	}
	return v
}
