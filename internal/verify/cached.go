package verify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/truthwire/internal/cache"
	"github.com/ppiankov/truthwire/internal/logging"
	"github.com/ppiankov/truthwire/internal/metrics"
)

// CachedVerifier answers repeated claims from a result cache.
// Only successful results are cached.
type CachedVerifier struct {
	inner   Verifier
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewCachedVerifier wraps inner with c. m may be nil.
func NewCachedVerifier(inner Verifier, c cache.Cache, ttl time.Duration, m *metrics.Metrics) *CachedVerifier {
	return &CachedVerifier{
		inner:   inner,
		cache:   c,
		ttl:     ttl,
		metrics: m,
		log:     logging.New("verify").WithField("provider", inner.Name()),
	}
}

// Name returns the wrapped provider name
func (v *CachedVerifier) Name() string {
	return v.inner.Name()
}

// Verify returns a cached result for the claim or calls the wrapped verifier
func (v *CachedVerifier) Verify(ctx context.Context, req Request) (*Result, error) {
	key := cache.ClaimKey(v.inner.Name(), req.Claim)

	if data, found := v.cache.Get(key); found {
		var res Result
		if err := json.Unmarshal(data, &res); err == nil {
			v.metrics.CacheHit()
			v.log.WithField("id", req.ID).Debug("verification cache hit")
			return &res, nil
		}
		_ = v.cache.Delete(key)
	}

	res, err := v.inner.Verify(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := v.cache.Set(key, data, v.ttl); err != nil {
			v.log.WithError(err).Warn("cache verification result")
		}
	}

	return res, nil
}
