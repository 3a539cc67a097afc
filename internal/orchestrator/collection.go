package orchestrator

import (
	"sync"
	"sync/atomic"

	"github.com/ppiankov/truthwire/internal/model"
)

// EventKind names a collection mutation
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventRemove EventKind = "remove"
)

// Event describes one mutation of a collection
type Event struct {
	Collection string            `json:"collection"`
	Kind       EventKind         `json:"kind"`
	Record     model.ClaimRecord `json:"record"`
}

// Projection is a view of claim records owned by the orchestrator
type Projection interface {
	// Insert adds rec at the front
	Insert(rec model.ClaimRecord)

	// Replace swaps the record with the same ID. It reports false and
	// changes nothing when the ID is not present.
	Replace(rec model.ClaimRecord) bool

	// Remove deletes the record with id, reporting whether it existed
	Remove(id string) bool
}

// Collection is an ordered, ID-keyed set of claim records, most recent first.
// Every mutation is atomic with respect to readers and is published to
// subscribers.
type Collection struct {
	name string

	mu      sync.RWMutex
	records []model.ClaimRecord
	index   map[string]int

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	missed  atomic.Int64
}

// NewCollection creates an empty collection
func NewCollection(name string) *Collection {
	return &Collection{
		name:  name,
		index: make(map[string]int),
		subs:  make(map[int]chan Event),
	}
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// Insert prepends rec. An existing record with the same ID is replaced in place.
func (c *Collection) Insert(rec model.ClaimRecord) {
	rec = rec.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[rec.ID]; ok {
		c.records[i] = rec
		c.publish(EventUpdate, rec)
		return
	}
	c.records = append([]model.ClaimRecord{rec}, c.records...)
	c.reindex()
	c.publish(EventInsert, rec)
}

// Replace swaps the record with the same ID in place
func (c *Collection) Replace(rec model.ClaimRecord) bool {
	rec = rec.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[rec.ID]
	if !ok {
		return false
	}
	c.records[i] = rec
	c.publish(EventUpdate, rec)
	return true
}

// Remove deletes the record with id
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}
	rec := c.records[i]
	c.records = append(c.records[:i], c.records[i+1:]...)
	c.reindex()
	c.publish(EventRemove, rec)
	return true
}

// Get returns a copy of the record with id
func (c *Collection) Get(id string) (model.ClaimRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return model.ClaimRecord{}, false
	}
	return c.records[i].Clone(), true
}

// List returns a copy of all records in order
func (c *Collection) List() []model.ClaimRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.ClaimRecord, len(c.records))
	for i, r := range c.records {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of records
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Subscribe registers for mutation events. Delivery never blocks the
// mutating goroutine: when the buffer is full the event is dropped for
// that subscriber. The returned function unsubscribes and closes the channel.
func (c *Collection) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Missed returns the number of events dropped for slow subscribers
func (c *Collection) Missed() int64 {
	return c.missed.Load()
}

// publish fans an event out to subscribers. Caller holds mu, so events are
// delivered in mutation order; sends never block.
func (c *Collection) publish(kind EventKind, rec model.ClaimRecord) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, ch := range c.subs {
		ev := Event{Collection: c.name, Kind: kind, Record: rec.Clone()}
		select {
		case ch <- ev:
		default:
			c.missed.Add(1)
		}
	}
}

// reindex rebuilds the ID index. Caller holds mu.
func (c *Collection) reindex() {
	clear(c.index)
	for i, r := range c.records {
		c.index[r.ID] = i
	}
}
