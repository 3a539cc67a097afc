package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/ppiankov/truthwire/internal/audio"
	"github.com/ppiankov/truthwire/internal/logging"
	"github.com/ppiankov/truthwire/internal/metrics"
)

// State is the lifecycle state of a Session
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrSessionUsed is returned by Start on a session that was already started or stopped
var ErrSessionUsed = errors.New("live session already used")

// TransportError reports a failure of the engine connection
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("live transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClaimEvent is a claim detected by the engine
type ClaimEvent struct {
	CallID     string
	Claim      string
	ReceivedAt time.Time
}

// Config configures a Session
type Config struct {
	// Model is the engine model resource, e.g. models/gemini-2.5-flash-native-audio-preview-09-2025
	Model string

	// Directive overrides DefaultDirective
	Directive string

	// ClaimBuffer is the capacity of the Claims channel
	ClaimBuffer int
}

// Session streams microphone audio to the engine and turns its tool calls
// into claim events. A session runs once: after Stop it cannot be restarted.
type Session struct {
	cfg      Config
	dialer   Dialer
	capturer audio.Capturer

	state  atomic.Int32
	claims chan ClaimEvent

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	conn        Conn
	readStarted bool

	readDone   chan struct{}
	pumpWG     sync.WaitGroup
	stopOnce   sync.Once
	claimsOnce sync.Once

	onError func(error)
	monitor io.Writer
	clock   func() time.Time
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// Option configures a Session
type Option func(*Session)

// WithErrorHandler receives transport errors raised while streaming
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// WithMonitor copies the raw PCM of each outbound frame to w for diagnostics.
// The default sink discards everything; nothing is ever played back.
func WithMonitor(w io.Writer) Option {
	return func(s *Session) {
		if w != nil {
			s.monitor = w
		}
	}
}

// WithMetrics records streaming metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(log *logrus.Entry) Option {
	return func(s *Session) { s.log = log }
}

// WithClock overrides time.Now for event timestamps
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// NewSession creates an idle session
func NewSession(cfg Config, dialer Dialer, capturer audio.Capturer, opts ...Option) *Session {
	if cfg.Directive == "" {
		cfg.Directive = DefaultDirective
	}
	if cfg.ClaimBuffer <= 0 {
		cfg.ClaimBuffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:      cfg,
		dialer:   dialer,
		capturer: capturer,
		claims:   make(chan ClaimEvent, cfg.ClaimBuffer),
		ctx:      ctx,
		cancel:   cancel,
		readDone: make(chan struct{}),
		monitor:  io.Discard,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDiscard(s.log)
	return s
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Claims delivers detected claims. It is closed when the session ends.
func (s *Session) Claims() <-chan ClaimEvent {
	return s.claims
}

// Start acquires the capture device, connects to the engine and sends the
// session setup. Streaming begins once the engine confirms the setup.
// Device failures return *audio.DeviceError and connection failures
// *TransportError; either way the session ends up closed.
func (s *Session) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return ErrSessionUsed
	}

	blocks, err := s.capturer.Start(s.ctx)
	if err != nil {
		s.shutdown()
		s.closeClaims()
		var devErr *audio.DeviceError
		if !errors.As(err, &devErr) {
			err = &audio.DeviceError{Op: "start capture", Err: err}
		}
		return err
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.shutdown()
		s.closeClaims()
		return &TransportError{Op: "dial", Err: err}
	}

	s.mu.Lock()
	if s.State() != StateConnecting {
		// Stopped while dialing
		s.mu.Unlock()
		_ = conn.Close()
		s.closeClaims()
		return ErrSessionUsed
	}
	s.conn = conn
	s.readStarted = true
	s.mu.Unlock()

	go s.readLoop(conn, blocks)

	if err := conn.WriteJSON(newSetup(s.cfg.Model, s.cfg.Directive)); err != nil {
		s.shutdown()
		return &TransportError{Op: "setup", Err: err}
	}

	s.log.WithField("model", s.cfg.Model).Info("live session connecting")
	return nil
}

// Stop releases the capture device and closes the connection. It is safe
// to call more than once and in any state. In-flight claim handling
// finishes before Stop returns.
func (s *Session) Stop() error {
	err := s.shutdown()

	s.mu.Lock()
	started := s.readStarted
	s.mu.Unlock()

	if started {
		<-s.readDone
	} else {
		s.closeClaims()
	}
	s.pumpWG.Wait()
	return err
}

// shutdown moves the session to closed and releases its resources once
func (s *Session) shutdown() error {
	var err error
	s.stopOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		s.cancel()

		if cerr := s.capturer.Close(); cerr != nil {
			err = fmt.Errorf("close capture device: %w", cerr)
		}

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}

		if prev != StateIdle {
			s.log.WithField("from", prev.String()).Info("live session closed")
		}
	})
	return err
}

func (s *Session) closeClaims() {
	s.claimsOnce.Do(func() { close(s.claims) })
}

func (s *Session) readLoop(conn Conn, blocks <-chan []float32) {
	defer close(s.readDone)
	defer s.closeClaims()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if s.State() == StateClosed {
				return
			}
			if errors.Is(err, io.EOF) {
				s.log.Info("live session closed by engine")
				s.shutdown()
				return
			}
			s.fail(&TransportError{Op: "receive", Err: err})
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.WithError(err).Warn("undecodable live message")
			continue
		}

		s.handle(conn, &msg, blocks)
	}
}

func (s *Session) handle(conn Conn, msg *serverMessage, blocks <-chan []float32) {
	switch {
	case msg.SetupComplete != nil:
		if s.state.CompareAndSwap(int32(StateConnecting), int32(StateStreaming)) {
			s.log.Info("live session streaming")
			s.pumpWG.Add(1)
			go s.pump(conn, blocks)
		}

	case msg.ToolCall != nil:
		s.handleToolCall(conn, msg.ToolCall.FunctionCalls)

	case msg.ToolCallCancellation != nil:
		s.log.WithField("ids", msg.ToolCallCancellation.IDs).Debug("tool calls cancelled")

	case msg.GoAway != nil:
		s.log.WithField("time_left", msg.GoAway.TimeLeft).Warn("engine will close the session")

	case msg.ServerContent != nil:
		s.log.Debug("ignoring server content")

	case msg.UsageMetadata != nil:
		s.log.WithField("usage", string(msg.UsageMetadata)).Debug("usage")
	}
}

// handleToolCall publishes every detected claim and then acknowledges all
// calls so the engine keeps listening.
func (s *Session) handleToolCall(conn Conn, calls []*genai.FunctionCall) {
	if len(calls) == 0 {
		return
	}

	responses := make([]*genai.FunctionResponse, 0, len(calls))
	for _, fc := range calls {
		if fc == nil {
			continue
		}
		s.metrics.ToolCall(fc.Name)

		if fc.Name != ToolName {
			s.log.WithField("tool", fc.Name).Warn("unknown tool call")
			responses = append(responses, &genai.FunctionResponse{
				ID:       fc.ID,
				Name:     fc.Name,
				Response: map[string]any{"error": "unknown tool " + fc.Name},
			})
			continue
		}

		claim, _ := fc.Args[claimArg].(string)
		claim = strings.TrimSpace(claim)
		if claim == "" {
			s.log.WithField("call_id", fc.ID).Warn("verifyClaim called without a claim")
		} else {
			s.publish(ClaimEvent{CallID: fc.ID, Claim: claim, ReceivedAt: s.clock()})
		}

		responses = append(responses, &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: map[string]any{"result": ackResult},
		})
	}

	if len(responses) == 0 {
		return
	}
	if err := conn.WriteJSON(newToolResponse(responses)); err != nil {
		s.fail(&TransportError{Op: "acknowledge", Err: err})
	}
}

func (s *Session) publish(ev ClaimEvent) {
	select {
	case s.claims <- ev:
		s.log.WithFields(logrus.Fields{"call_id": ev.CallID, "claim": ev.Claim}).Debug("claim detected")
	case <-s.ctx.Done():
	}
}

// pump encodes captured blocks and streams them until the session ends
func (s *Session) pump(conn Conn, blocks <-chan []float32) {
	defer s.pumpWG.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case block, ok := <-blocks:
			if !ok {
				return
			}

			frame := audio.Encode(block)
			if frame.Empty() {
				s.metrics.FrameSkipped()
				continue
			}

			if s.monitor != io.Discard {
				_, _ = s.monitor.Write(audio.PCM16(block))
			}

			if err := conn.WriteJSON(newAudioInput(frame.MIMEType, frame.Data)); err != nil {
				s.fail(&TransportError{Op: "send audio", Err: err})
				return
			}
			s.metrics.FrameSent(frame.Samples * 2)
		}
	}
}

// fail reports err unless the session is already closing, then shuts down
func (s *Session) fail(err error) {
	if s.State() == StateClosed {
		return
	}
	s.metrics.SessionError()
	s.log.WithError(err).Error("live session failed")
	if s.onError != nil {
		s.onError(err)
	}
	s.shutdown()
}
