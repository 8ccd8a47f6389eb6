package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Defaults for the result cache tiers.
const (
	DefaultLocalCapacity = 4096
	DefaultSharedTTL     = 10 * time.Minute
)

// entry is what the local tier stores: a payload pinned to the index state
// it was computed from.
type entry struct {
	stateHash string
	payload   []byte
}

// TierStats counts hits and misses for one tier.
type TierStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Stats aggregates per-tier counters. Backend counts queries that fell all
// the way through to recomputation.
type Stats struct {
	Local   TierStats
	Shared  TierStats
	Backend uint64
}

// Manager is the layered result cache. The local tier is a per-process LRU
// with no TTL; entries go stale only when the index state hash moves on.
// The shared tier adds TTL expiry and cross-process invalidation. A failing
// shared tier degrades the cache to local-only operation; queries still
// complete.
type Manager struct {
	local  *lru.Cache[string, entry]
	shared SharedCache
	ttl    time.Duration
	logger *zap.Logger

	localHits    atomic.Uint64
	localMisses  atomic.Uint64
	sharedHits   atomic.Uint64
	sharedMisses atomic.Uint64
	backendLoads atomic.Uint64

	degraded   atomic.Bool
	cancelSub  func()
	unsubOnce  sync.Once
}

// NewManager creates a cache manager. shared may be nil for local-only
// caching. When a shared tier is present the manager subscribes to its
// invalidation topic so purges published by other processes reach the local
// tier.
func NewManager(localCapacity int, shared SharedCache, ttl time.Duration, logger *zap.Logger) *Manager {
	if localCapacity <= 0 {
		localCapacity = DefaultLocalCapacity
	}
	if ttl <= 0 {
		ttl = DefaultSharedTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	local, _ := lru.New[string, entry](localCapacity)

	m := &Manager{
		local:  local,
		shared: shared,
		ttl:    ttl,
		logger: logger,
	}

	if shared != nil {
		ch, cancel := shared.Subscribe(InvalidationTopic)
		m.cancelSub = cancel
		go m.listenInvalidations(ch)
	}
	return m
}

func (m *Manager) listenInvalidations(ch <-chan string) {
	for repository := range ch {
		m.purgeLocal(repository)
	}
}

// compositeKey namespaces a cache key by repository so invalidation can
// target one repository's entries.
func compositeKey(repository, key string) string {
	return repository + "\x00" + key
}

// Get looks a key up through the tiers. stateHash is the repository's
// current index state; entries recorded under an older state are treated as
// misses and dropped.
func (m *Manager) Get(ctx context.Context, repository, key, stateHash string) ([]byte, bool) {
	ck := compositeKey(repository, key)

	if e, ok := m.local.Get(ck); ok {
		if e.stateHash == stateHash {
			m.localHits.Add(1)
			return e.payload, true
		}
		// Stale under the current index state
		m.local.Remove(ck)
	}
	m.localMisses.Add(1)

	if m.shared == nil {
		m.backendLoads.Add(1)
		return nil, false
	}

	payload, ok, err := m.shared.Get(ctx, compositeKey(ck, stateHash))
	if err != nil {
		m.degrade(err)
		m.backendLoads.Add(1)
		return nil, false
	}
	m.recover()
	if !ok {
		m.sharedMisses.Add(1)
		m.backendLoads.Add(1)
		return nil, false
	}
	m.sharedHits.Add(1)

	// Promote to the local tier
	m.local.Add(ck, entry{stateHash: stateHash, payload: payload})
	return payload, true
}

// Set records a computed payload in both tiers.
func (m *Manager) Set(ctx context.Context, repository, key, stateHash string, payload []byte) {
	ck := compositeKey(repository, key)
	m.local.Add(ck, entry{stateHash: stateHash, payload: payload})

	if m.shared == nil {
		return
	}
	if err := m.shared.Set(ctx, compositeKey(ck, stateHash), payload, m.ttl); err != nil {
		m.degrade(err)
		return
	}
	m.recover()
}

// Invalidate purges a repository's entries from the local tier and
// broadcasts the purge to every other process sharing the cache.
func (m *Manager) Invalidate(ctx context.Context, repository string) {
	m.purgeLocal(repository)

	if m.shared == nil {
		return
	}
	if err := m.shared.Publish(ctx, InvalidationTopic, repository); err != nil {
		m.degrade(err)
		return
	}
	m.recover()
}

func (m *Manager) purgeLocal(repository string) {
	prefix := repository + "\x00"
	for _, key := range m.local.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.local.Remove(key)
		}
	}
}

// degrade logs the first shared-tier failure at Warn; repeats stay silent
// until the tier recovers.
func (m *Manager) degrade(err error) {
	if m.degraded.CompareAndSwap(false, true) {
		m.logger.Warn("shared cache unavailable, continuing with local tier only", zap.Error(err))
	}
}

func (m *Manager) recover() {
	if m.degraded.CompareAndSwap(true, false) {
		m.logger.Info("shared cache recovered")
	}
}

// Degraded reports whether the shared tier is currently failing.
func (m *Manager) Degraded() bool {
	return m.degraded.Load()
}

// Stats returns a snapshot of the tier counters.
func (m *Manager) Stats() Stats {
	stats := Stats{
		Local: TierStats{
			Hits:   m.localHits.Load(),
			Misses: m.localMisses.Load(),
			Size:   m.local.Len(),
		},
		Shared: TierStats{
			Hits:   m.sharedHits.Load(),
			Misses: m.sharedMisses.Load(),
		},
		Backend: m.backendLoads.Load(),
	}
	if m.shared != nil {
		stats.Shared.Size = m.shared.Len()
	}
	return stats
}

// Close detaches the invalidation subscription. The shared tier itself is
// owned by the caller.
func (m *Manager) Close() {
	m.unsubOnce.Do(func() {
		if m.cancelSub != nil {
			m.cancelSub()
		}
	})
}
