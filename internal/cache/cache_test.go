package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLocalTierHitAndMiss(t *testing.T) {
	m := NewManager(10, nil, 0, nil)
	defer m.Close()
	ctx := context.Background()

	_, ok := m.Get(ctx, "myrepo", "query1", "state-a")
	assert.False(t, ok)

	m.Set(ctx, "myrepo", "query1", "state-a", []byte("results"))
	payload, ok := m.Get(ctx, "myrepo", "query1", "state-a")
	require.True(t, ok)
	assert.Equal(t, []byte("results"), payload)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Local.Hits)
	assert.Equal(t, uint64(1), stats.Local.Misses)
}

func TestStateHashInvalidatesLocalEntry(t *testing.T) {
	m := NewManager(10, nil, 0, nil)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "myrepo", "query1", "state-a", []byte("old"))

	// Re-index moved the state hash; the entry is stale
	_, ok := m.Get(ctx, "myrepo", "query1", "state-b")
	assert.False(t, ok)

	// The stale entry was dropped, not resurrected for the old state
	_, ok = m.Get(ctx, "myrepo", "query1", "state-a")
	assert.False(t, ok)
}

func TestSharedTierPromotion(t *testing.T) {
	shared := NewMemorySharedCache(100, time.Minute)
	defer shared.Close()

	writer := NewManager(10, shared, time.Minute, nil)
	defer writer.Close()
	reader := NewManager(10, shared, time.Minute, nil)
	defer reader.Close()
	ctx := context.Background()

	writer.Set(ctx, "myrepo", "query1", "state-a", []byte("results"))

	// A different process misses locally, hits the shared tier
	payload, ok := reader.Get(ctx, "myrepo", "query1", "state-a")
	require.True(t, ok)
	assert.Equal(t, []byte("results"), payload)
	assert.Equal(t, uint64(1), reader.Stats().Shared.Hits)

	// Promotion makes the next read local
	_, ok = reader.Get(ctx, "myrepo", "query1", "state-a")
	require.True(t, ok)
	assert.Equal(t, uint64(1), reader.Stats().Local.Hits)
}

func TestInvalidationBroadcast(t *testing.T) {
	shared := NewMemorySharedCache(100, time.Minute)
	defer shared.Close()

	a := NewManager(10, shared, time.Minute, nil)
	defer a.Close()
	b := NewManager(10, shared, time.Minute, nil)
	defer b.Close()
	ctx := context.Background()

	a.Set(ctx, "myrepo", "query1", "state-a", []byte("results"))
	b.Set(ctx, "myrepo", "query1", "state-a", []byte("results"))
	b.Set(ctx, "other", "query2", "state-a", []byte("keep"))

	a.Invalidate(ctx, "myrepo")

	// The broadcast reaches b's local tier asynchronously
	assert.Eventually(t, func() bool {
		return b.Stats().Local.Size == 1
	}, time.Second, 5*time.Millisecond)

	// The untouched repository survives
	_, ok := b.Get(ctx, "other", "query2", "state-a")
	assert.True(t, ok)
}

// failingShared errors on every operation.
type failingShared struct{}

func (failingShared) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingShared) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingShared) Delete(context.Context, string) error { return errors.New("connection refused") }
func (failingShared) Publish(context.Context, string, string) error {
	return errors.New("connection refused")
}
func (failingShared) Subscribe(string) (<-chan string, func()) {
	ch := make(chan string)
	close(ch)
	return ch, func() {}
}
func (failingShared) Close() error { return nil }

func (failingShared) Len() int { return 0 }

func TestSharedTierDegradation(t *testing.T) {
	core, observed := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	m := NewManager(10, failingShared{}, time.Minute, logger)
	defer m.Close()
	ctx := context.Background()

	// Queries still work through the local tier
	m.Set(ctx, "myrepo", "query1", "state-a", []byte("results"))
	payload, ok := m.Get(ctx, "myrepo", "query1", "state-a")
	require.True(t, ok)
	assert.Equal(t, []byte("results"), payload)
	assert.True(t, m.Degraded())

	// Repeated failures produce exactly one warning
	m.Set(ctx, "myrepo", "query2", "state-a", []byte("more"))
	_, _ = m.Get(ctx, "myrepo", "query3", "state-a")
	assert.Equal(t, 1, observed.FilterLevelExact(zap.WarnLevel).Len())
}

func TestLocalEviction(t *testing.T) {
	m := NewManager(2, nil, 0, nil)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "myrepo", "q1", "s", []byte("1"))
	m.Set(ctx, "myrepo", "q2", "s", []byte("2"))
	m.Set(ctx, "myrepo", "q3", "s", []byte("3"))

	assert.Equal(t, 2, m.Stats().Local.Size)
	_, ok := m.Get(ctx, "myrepo", "q1", "s")
	assert.False(t, ok)
}

func TestStatsReportSizePerTier(t *testing.T) {
	shared := NewMemorySharedCache(100, time.Minute)
	defer shared.Close()
	m := NewManager(10, shared, time.Minute, nil)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "myrepo", "q1", "s", []byte("1"))
	m.Set(ctx, "myrepo", "q2", "s", []byte("2"))

	stats := m.Stats()
	assert.Equal(t, 2, stats.Local.Size)
	assert.Equal(t, 2, stats.Shared.Size)

	// Without a shared tier the size stays zero
	local := NewManager(10, nil, 0, nil)
	defer local.Close()
	local.Set(ctx, "myrepo", "q1", "s", []byte("1"))
	assert.Zero(t, local.Stats().Shared.Size)
}
