package dedup

import (
	"math"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultWindow is how long an accepted claim suppresses similar ones
	DefaultWindow = 10 * time.Second

	// DefaultThreshold is the Jaccard coefficient above which two claims are duplicates
	DefaultThreshold = 0.7
)

// Config configures a Deduplicator
type Config struct {
	Window    time.Duration
	Threshold float64
}

// DefaultConfig returns the default window and threshold
func DefaultConfig() Config {
	return Config{
		Window:    DefaultWindow,
		Threshold: DefaultThreshold,
	}
}

type entry struct {
	text   string
	words  map[string]struct{}
	seenAt time.Time
}

// Deduplicator suppresses claims that repeat, or nearly repeat, a claim
// accepted within the trailing window.
type Deduplicator struct {
	window    time.Duration
	threshold float64

	mu      sync.Mutex
	history []entry
}

// New creates a deduplicator. A non-positive window or a negative threshold
// falls back to the default. Threshold 0 suppresses any claim sharing a word.
func New(cfg Config) *Deduplicator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold < 0 || math.IsNaN(cfg.Threshold) {
		cfg.Threshold = DefaultThreshold
	}
	return &Deduplicator{
		window:    cfg.Window,
		threshold: cfg.Threshold,
	}
}

// Accept reports whether text is new at time now and records it if so.
// A duplicate leaves the history unchanged.
func (d *Deduplicator) Accept(text string, now time.Time) bool {
	norm := Normalize(text)
	words := wordSet(norm)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.evict(now)

	for _, e := range d.history {
		if d.matches(norm, words, e) {
			return false
		}
	}

	d.history = append(d.history, entry{text: norm, words: words, seenAt: now})
	return true
}

// Len returns the number of claims still inside the window at now
func (d *Deduplicator) Len(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evict(now)
	return len(d.history)
}

// Reset forgets all history
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.history = nil
	d.mu.Unlock()
}

func (d *Deduplicator) matches(norm string, words map[string]struct{}, e entry) bool {
	// Empty claims never suppress each other
	if norm == "" || e.text == "" {
		return false
	}
	if norm == e.text {
		return true
	}
	score, ok := jaccard(words, e.words)
	return ok && score > d.threshold
}

// evict drops entries strictly older than the window. Caller holds mu.
func (d *Deduplicator) evict(now time.Time) {
	kept := d.history[:0]
	for _, e := range d.history {
		if now.Sub(e.seenAt) <= d.window {
			kept = append(kept, e)
		}
	}
	// Clear the tail so evicted word sets can be collected
	for i := len(kept); i < len(d.history); i++ {
		d.history[i] = entry{}
	}
	d.history = kept
}

// Normalize trims and lower-cases a claim
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Jaccard returns the word-set Jaccard coefficient of two normalized texts.
// ok is false when both texts have no words.
func Jaccard(a, b string) (score float64, ok bool) {
	return jaccard(wordSet(a), wordSet(b))
}

func jaccard(a, b map[string]struct{}) (float64, bool) {
	inter := 0
	for w := range a {
		if _, found := b[w]; found {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0, false
	}
	return float64(inter) / float64(union), true
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
