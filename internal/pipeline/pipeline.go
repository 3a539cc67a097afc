package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/truthwire/internal/dedup"
	"github.com/ppiankov/truthwire/internal/live"
	"github.com/ppiankov/truthwire/internal/logging"
	"github.com/ppiankov/truthwire/internal/metrics"
)

// Submitter starts the verification of an accepted claim
type Submitter interface {
	Submit(text string) string
}

// Pipeline connects detected claims to verification: every claim passes
// the deduplicator and accepted ones are submitted.
type Pipeline struct {
	dedup     *dedup.Deduplicator
	submitter Submitter
	metrics   *metrics.Metrics
	log       *logrus.Entry
	clock     func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMetrics records dedup decisions
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(log *logrus.Entry) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithClock overrides time.Now for claims submitted without a timestamp
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// New creates a pipeline
func New(d *dedup.Deduplicator, submitter Submitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		dedup:     d,
		submitter: submitter,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrDiscard(p.log)
	return p
}

// Run consumes claim events until the channel closes or ctx is done.
// Claims already buffered when ctx ends are still handled, since the
// engine has acknowledged them.
func (p *Pipeline) Run(ctx context.Context, events <-chan live.ClaimEvent) error {
	for {
		select {
		case <-ctx.Done():
			p.drain(events)
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		}
	}
}

// drain handles buffered events without waiting for more
func (p *Pipeline) drain(events <-chan live.ClaimEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handleEvent(ev)
		default:
			return
		}
	}
}

func (p *Pipeline) handleEvent(ev live.ClaimEvent) {
	at := ev.ReceivedAt
	if at.IsZero() {
		at = p.clock()
	}
	p.HandleClaim(ev.Claim, at)
}

// HandleClaim runs one claim through the deduplicator and submits it when
// accepted. Blank claims are ignored.
func (p *Pipeline) HandleClaim(text string, at time.Time) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if !p.dedup.Accept(text, at) {
		p.metrics.ClaimDecision(false)
		p.log.WithField("claim", text).Debug("duplicate claim suppressed")
		return "", false
	}

	p.metrics.ClaimDecision(true)
	id := p.submitter.Submit(text)
	p.log.WithFields(logrus.Fields{"id": id, "claim": text}).Info("claim accepted")
	return id, true
}

// Submit handles a claim stamped with the pipeline clock
func (p *Pipeline) Submit(text string) (string, bool) {
	return p.HandleClaim(text, p.clock())
}
