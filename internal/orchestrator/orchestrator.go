package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/truthwire/internal/logging"
	"github.com/ppiankov/truthwire/internal/metrics"
	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/verify"
	"github.com/ppiankov/truthwire/internal/worker"
)

// ErrClosed is the failure reason of claims submitted after Close
var ErrClosed = errors.New("orchestrator closed")

// errAbandoned marks verifications still running when Close gave up waiting
var errAbandoned = errors.New("verification abandoned at shutdown")

// Orchestrator owns the lifecycle of claim records: it creates them as
// pending, dispatches verification, and applies each outcome exactly once
// to the active and library projections.
type Orchestrator struct {
	verifier verify.Verifier
	active   Projection
	library  Projection

	pool    *worker.Pool
	clock   func() time.Time
	newID   func() string
	timeout time.Duration
	workers int
	metrics *metrics.Metrics
	log     *logrus.Entry

	mu      sync.Mutex
	closed  bool
	pending map[string]model.ClaimRecord

	loopDone chan struct{}
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock overrides time.Now
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithIDGenerator overrides UUID record IDs
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// WithTimeout bounds each verification. Expiry fails the claim. 0 disables.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithConcurrency bounds the number of verifications running at once. 0 disables.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithMetrics records verification metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(log *logrus.Entry) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New creates an orchestrator and starts its apply loop
func New(verifier verify.Verifier, active, library Projection, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		verifier: verifier,
		active:   active,
		library:  library,
		clock:    time.Now,
		newID:    uuid.NewString,
		pending:  make(map[string]model.ClaimRecord),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logging.OrDiscard(o.log)
	o.pool = worker.NewPool(o.workers)

	go o.applyLoop()
	return o
}

// Submit creates a pending record for text, publishes it to both projections
// and schedules its verification. It never blocks on the network.
func (o *Orchestrator) Submit(text string) string {
	id := o.newID()
	now := o.clock()
	rec := model.NewPendingRecord(id, text, now)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		failed := rec.Failed(ErrClosed.Error(), now)
		o.active.Insert(failed)
		o.library.Insert(failed)
		o.log.WithField("id", id).Warn("claim submitted after close")
		return id
	}
	// Published before unlocking so a Close deadline that abandons this
	// claim always finds the record to fail.
	o.pending[id] = rec
	o.active.Insert(rec)
	o.library.Insert(rec)
	o.mu.Unlock()

	o.metrics.VerificationStarted()

	o.log.WithFields(logrus.Fields{"id": id, "claim": text}).Info("verifying claim")

	job := &verifyJob{verifier: o.verifier, timeout: o.timeout, req: verify.Request{ID: id, Claim: text}}
	if !o.pool.Submit(job) {
		o.resolve(id, nil, ErrClosed)
	}
	return id
}

// Dismiss removes the record from the active projection only.
// Unknown IDs are ignored.
func (o *Orchestrator) Dismiss(id string) bool {
	removed := o.active.Remove(id)
	if removed {
		o.log.WithField("id", id).Debug("claim dismissed")
	}
	return removed
}

// Pending returns the number of unresolved verifications
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Close stops accepting claims and waits for in-flight verifications to be
// applied. If ctx ends first, running verifications are cancelled and their
// records fail.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	go o.pool.Wait()

	select {
	case <-o.loopDone:
		return nil
	case <-ctx.Done():
	}

	o.pool.Shutdown()
	<-o.loopDone

	o.mu.Lock()
	ids := make([]string, 0, len(o.pending))
	for id := range o.pending {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.resolve(id, nil, errAbandoned)
	}
	return ctx.Err()
}

func (o *Orchestrator) applyLoop() {
	defer close(o.loopDone)

	for r := range o.pool.Results() {
		out, ok := r.(*outcome)
		if !ok {
			continue
		}
		o.resolve(out.id, out.result, out.err)
	}
}

// resolve applies the final state of a pending record. Later calls for the
// same ID are ignored.
func (o *Orchestrator) resolve(id string, res *verify.Result, err error) {
	o.mu.Lock()
	rec, ok := o.pending[id]
	if ok {
		delete(o.pending, id)
	}
	o.mu.Unlock()

	if !ok {
		return
	}

	now := o.clock()
	final := settle(rec, res, err, now)

	inActive := o.active.Replace(final)
	o.library.Replace(final)
	o.metrics.VerificationResolved(string(final.Status), now.Sub(rec.CreatedAt))

	log := o.log.WithFields(logrus.Fields{
		"id":        id,
		"status":    final.Status,
		"dismissed": !inActive,
	})
	if final.Status == model.StatusFailed {
		log.WithField("reason", final.FailureReason).Warn("verification failed")
		return
	}
	log.WithField("verdict", final.Verdict).Info("claim verified")
}

// settle builds the resolved record. A result lacking a verdict or an
// explanation fails the claim.
func settle(rec model.ClaimRecord, res *verify.Result, err error, now time.Time) model.ClaimRecord {
	if err == nil && res == nil {
		err = verify.ErrEmptyResponse
	}
	if err == nil && (res.Verdict == "" || res.Explanation == "") {
		err = &verify.ParseError{Reason: "result has no verdict or explanation"}
	}
	if err != nil {
		return rec.Failed(err.Error(), now)
	}

	out := rec
	out.Status = model.StatusComplete
	out.ResolvedAt = &now
	out.Verdict = res.Verdict
	out.Explanation = res.Explanation
	out.Confidence = res.Confidence
	out.Sources = verify.UniqueSources(res.Sources)
	out.Visualization = res.Visualization
	return out.Clone()
}

// verifyJob runs one verification on the worker pool
type verifyJob struct {
	verifier verify.Verifier
	timeout  time.Duration
	req      verify.Request
}

func (j *verifyJob) Execute(ctx context.Context) worker.Result {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	res, err := j.verifier.Verify(ctx, j.req)
	if err == nil && ctx.Err() != nil {
		err = &verify.TransportError{Provider: j.verifier.Name(), Err: ctx.Err()}
	}
	return &outcome{id: j.req.ID, result: res, err: err}
}

// outcome is the typed result of a verifyJob
type outcome struct {
	id     string
	result *verify.Result
	err    error
}

func (o *outcome) GetError() error {
	return o.err
}
