package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// DefaultBlockSize is the number of samples per delivered block (~256ms at 16 kHz)
const DefaultBlockSize = 4096

// Capturer delivers continuous blocks of mono float samples
type Capturer interface {
	// Start opens the device and returns the block stream.
	// The channel is closed after Close or when ctx is done.
	Start(ctx context.Context) (<-chan []float32, error)

	// Close releases the device. Safe to call more than once.
	Close() error
}

// DeviceError reports that the capture device could not be opened or started
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Blocker regroups arbitrarily sized sample runs into fixed-size blocks
// and hands them to a channel without ever blocking the producer.
type Blocker struct {
	size    int
	pending []float32
	out     chan []float32
	dropped atomic.Uint64
}

// NewBlocker creates a blocker emitting blocks of size samples
func NewBlocker(size, queue int) *Blocker {
	if size <= 0 {
		size = DefaultBlockSize
	}
	if queue <= 0 {
		queue = 8
	}
	return &Blocker{
		size:    size,
		pending: make([]float32, 0, size),
		out:     make(chan []float32, queue),
	}
}

// Blocks returns the output channel
func (b *Blocker) Blocks() <-chan []float32 {
	return b.out
}

// Dropped returns how many blocks were discarded because the consumer lagged
func (b *Blocker) Dropped() uint64 {
	return b.dropped.Load()
}

// Write appends samples and emits every completed block.
// Not safe for concurrent writers.
func (b *Blocker) Write(samples []float32) {
	for len(samples) > 0 {
		n := b.size - len(b.pending)
		if n > len(samples) {
			n = len(samples)
		}
		b.pending = append(b.pending, samples[:n]...)
		samples = samples[n:]

		if len(b.pending) == b.size {
			block := b.pending
			b.pending = make([]float32, 0, b.size)
			select {
			case b.out <- block:
			default:
				b.dropped.Add(1)
			}
		}
	}
}

// Close closes the output channel. No Write may follow.
func (b *Blocker) Close() {
	close(b.out)
}

// MalgoCapturer captures the default input device through miniaudio.
// Only a capture device is opened; nothing is ever played back.
type MalgoCapturer struct {
	sampleRate int
	blockSize  int

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	blocker *Blocker
	closed  bool
}

// NewMalgoCapturer creates a microphone capturer
func NewMalgoCapturer(sampleRate, blockSize int) *MalgoCapturer {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &MalgoCapturer{
		sampleRate: sampleRate,
		blockSize:  blockSize,
	}
}

// Start opens and starts the capture device
func (c *MalgoCapturer) Start(ctx context.Context) (<-chan []float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, &DeviceError{Op: "start", Err: fmt.Errorf("capturer closed")}
	}
	if c.device != nil {
		return nil, &DeviceError{Op: "start", Err: fmt.Errorf("already started")}
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "init context", Err: err}
	}

	blocker := NewBlocker(c.blockSize, 8)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = Channels
	cfg.SampleRate = uint32(c.sampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			blocker.Write(decodeF32(input))
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, &DeviceError{Op: "init device", Err: err}
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, &DeviceError{Op: "start device", Err: err}
	}

	c.mctx = mctx
	c.device = device
	c.blocker = blocker

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	return blocker.Blocks(), nil
}

// Close stops the device and releases miniaudio resources
func (c *MalgoCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.device != nil {
		_ = c.device.Stop()
		// Uninit waits for the data callback to return, so the
		// blocker has no writer left after this point.
		c.device.Uninit()
		c.device = nil
	}
	if c.blocker != nil {
		c.blocker.Close()
	}
	if c.mctx != nil {
		_ = c.mctx.Uninit()
		c.mctx.Free()
		c.mctx = nil
	}
	return nil
}

// Dropped returns the number of blocks discarded because the consumer lagged
func (c *MalgoCapturer) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocker == nil {
		return 0
	}
	return c.blocker.Dropped()
}

func decodeF32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
