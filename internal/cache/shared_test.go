package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySharedCacheGetSet(t *testing.T) {
	c := NewMemorySharedCache(10, time.Minute)
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	value, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySharedCacheTTL(t *testing.T) {
	c := NewMemorySharedCache(10, 20*time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	_, ok, _ := c.Get(ctx, "k")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestPublishSubscribe(t *testing.T) {
	c := NewMemorySharedCache(10, time.Minute)
	defer c.Close()
	ctx := context.Background()

	ch1, cancel1 := c.Subscribe("topic")
	defer cancel1()
	ch2, cancel2 := c.Subscribe("topic")
	defer cancel2()

	require.NoError(t, c.Publish(ctx, "topic", "hello"))

	for _, ch := range []<-chan string{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "hello", msg)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestSubscribeCancel(t *testing.T) {
	c := NewMemorySharedCache(10, time.Minute)
	defer c.Close()
	ctx := context.Background()

	ch, cancel := c.Subscribe("topic")
	cancel()

	// Publishing after cancel reaches nobody and the channel is closed
	require.NoError(t, c.Publish(ctx, "topic", "late"))
	_, open := <-ch
	assert.False(t, open)
}

func TestCloseClosesSubscribers(t *testing.T) {
	c := NewMemorySharedCache(10, time.Minute)
	ch, _ := c.Subscribe("topic")

	require.NoError(t, c.Close())
	_, open := <-ch
	assert.False(t, open)

	// Subscribing after close returns a closed channel
	ch2, _ := c.Subscribe("topic")
	_, open = <-ch2
	assert.False(t, open)
}
