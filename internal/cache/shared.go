package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// InvalidationTopic carries repository names whose cached results must be
// purged everywhere.
const InvalidationTopic = "cache.invalidate"

// SharedCache is the second tier: a store visible to every process serving
// the same index, with TTL expiry and an invalidation broadcast channel.
// Implementations must be safe for concurrent use.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Len reports the number of live entries.
	Len() int

	// Publish broadcasts a message to every subscriber of a topic.
	Publish(ctx context.Context, topic, message string) error
	// Subscribe returns a channel of messages for a topic and a cancel
	// function that closes it.
	Subscribe(topic string) (<-chan string, func())

	Close() error
}

// MemorySharedCache implements SharedCache in process memory: an expirable
// LRU for entries and a channel-based topic bus for invalidation messages.
// It stands in wherever a networked shared tier isn't deployed, and gives
// tests a real implementation to run against.
type MemorySharedCache struct {
	entries *expirable.LRU[string, []byte]

	mu     sync.Mutex
	subs   map[string][]chan string
	closed bool
}

// DefaultSharedCapacity bounds the in-memory shared tier.
const DefaultSharedCapacity = 16384

// NewMemorySharedCache creates a MemorySharedCache. TTL applies to every
// entry; capacity falls back to the default when non-positive.
func NewMemorySharedCache(capacity int, ttl time.Duration) *MemorySharedCache {
	if capacity <= 0 {
		capacity = DefaultSharedCapacity
	}
	return &MemorySharedCache{
		entries: expirable.NewLRU[string, []byte](capacity, nil, ttl),
		subs:    make(map[string][]chan string),
	}
}

func (m *MemorySharedCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

func (m *MemorySharedCache) Len() int {
	return m.entries.Len()
}

func (m *MemorySharedCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	// Per-entry TTL collapses to the cache-wide TTL here
	m.entries.Add(key, value)
	return nil
}

func (m *MemorySharedCache) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

func (m *MemorySharedCache) Publish(_ context.Context, topic, message string) error {
	m.mu.Lock()
	subscribers := make([]chan string, len(m.subs[topic]))
	copy(subscribers, m.subs[topic])
	m.mu.Unlock()

	for _, ch := range subscribers {
		// Slow subscribers drop messages rather than block the publisher
		select {
		case ch <- message:
		default:
		}
	}
	return nil
}

func (m *MemorySharedCache) Subscribe(topic string) (<-chan string, func()) {
	ch := make(chan string, 64)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subs[topic] = append(m.subs[topic], ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subscribers := m.subs[topic]
		for i, sub := range subscribers {
			if sub == ch {
				m.subs[topic] = append(subscribers[:i], subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (m *MemorySharedCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for topic, subscribers := range m.subs {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(m.subs, topic)
	}
	m.entries.Purge()
	return nil
}
