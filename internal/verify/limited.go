package verify

import (
	"context"

	"github.com/ppiankov/truthwire/internal/worker"
)

// LimitedVerifier waits on a token bucket keyed by provider before each call
type LimitedVerifier struct {
	inner   Verifier
	limiter *worker.Limiter
}

// NewLimitedVerifier wraps inner with limiter
func NewLimitedVerifier(inner Verifier, limiter *worker.Limiter) *LimitedVerifier {
	return &LimitedVerifier{inner: inner, limiter: limiter}
}

// Name returns the wrapped provider name
func (v *LimitedVerifier) Name() string {
	return v.inner.Name()
}

// Verify waits for rate limit clearance, then calls the wrapped verifier.
// A cancelled wait is reported as a transport failure.
func (v *LimitedVerifier) Verify(ctx context.Context, req Request) (*Result, error) {
	if err := v.limiter.Wait(ctx, v.inner.Name()); err != nil {
		return nil, &TransportError{Provider: v.inner.Name(), Err: err}
	}
	return v.inner.Verify(ctx, req)
}
