// Package eventbus carries core notifications (gestures, conflicts,
// shortcut and rule changes) to explicit subscribers.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/types"
)

// Topic names an event stream
type Topic string

const (
	TopicGestureDetected  Topic = "gesture.detected"
	TopicConflictFound    Topic = "conflict.found"
	TopicShortcutsUpdated Topic = "shortcuts.updated"
	TopicRulesChanged     Topic = "rules.changed"
)

// AllTopics lists every topic the core publishes
var AllTopics = []Topic{TopicGestureDetected, TopicConflictFound, TopicShortcutsUpdated, TopicRulesChanged}

// GestureDetected is published when a modifier was double-pressed
type GestureDetected struct {
	Modifier string    `json:"modifier"`
	At       time.Time `json:"at"`
}

// ConflictFound is published by real-time detection
type ConflictFound struct {
	Combination string               `json:"combination"`
	Owner       string               `json:"owner"`
	Conflicts   []types.ConflictInfo `json:"conflicts"`
}

// ShortcutsUpdated is published when an owner's cached shortcuts change.
// Count is zero after an invalidation.
type ShortcutsUpdated struct {
	Owner string `json:"owner"`
	Count int    `json:"count"`
}

// RulesChanged is published after remapping rules were mutated. Owner is
// empty when every owner was affected.
type RulesChanged struct {
	Owner string `json:"owner,omitempty"`
	Count int    `json:"count"`
}

// Event is one published notification
type Event struct {
	ID        string    `json:"id"`
	Topic     Topic     `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// DefaultBufferSize is the per-subscriber channel capacity
const DefaultBufferSize = 64

// Subscription delivers events for the topics it was created with
type Subscription struct {
	id     string
	topics map[Topic]bool
	ch     chan Event
	once   sync.Once
}

// ID returns the subscription identifier
func (s *Subscription) ID() string { return s.id }

// C returns the delivery channel. It is closed on Unsubscribe or bus Close.
func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) wants(t Topic) bool {
	return len(s.topics) == 0 || s.topics[t]
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Stats reports delivery counters
type Stats struct {
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// Bus fans events out to subscribers. Publish never blocks: an event for a
// subscriber whose buffer is full is dropped and counted.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
	now    func() time.Time

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a bus
func New() *Bus {
	return &Bus{subs: make(map[string]*Subscription), now: time.Now}
}

// Subscribe registers for the given topics; no topics means all of them
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	return b.SubscribeBuffered(DefaultBufferSize, topics...)
}

// SubscribeBuffered is Subscribe with an explicit buffer size
func (b *Bus) SubscribeBuffered(size int, topics ...Topic) *Subscription {
	if size < 1 {
		size = 1
	}
	sub := &Subscription{
		id:     uuid.NewString(),
		topics: make(map[Topic]bool, len(topics)),
		ch:     make(chan Event, size),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.close()
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, sub.id)
	b.mu.Unlock()
	sub.close()
}

// Publish delivers payload to every interested subscriber without blocking
func (b *Bus) Publish(topic Topic, payload any) {
	ev := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: b.now(),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	b.published.Add(1)
	for _, sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- ev:
			b.delivered.Add(1)
		default:
			b.dropped.Add(1)
		}
	}
}

// PublishGesture is a typed helper for gesture notifications
func (b *Bus) PublishGesture(mod keybinds.Modifier, at time.Time) {
	b.Publish(TopicGestureDetected, GestureDetected{Modifier: mod.String(), At: at})
}

// Stats returns delivery counters
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: n,
	}
}

// Close closes every subscription; later publishes are discarded
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
}
