package kvstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(setupTestRedis(t), "test:", time.Hour),
	}
}

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestStoreGetSetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "cart:table:1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "cart:table:1", []byte(`{"a":1}`), "tab-a"))
			v, err := s.Get(ctx, "cart:table:1")
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(v))

			require.NoError(t, s.Set(ctx, "cart:table:1", []byte(`{"a":2}`), "tab-b"))
			v, err = s.Get(ctx, "cart:table:1")
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, string(v), "last write wins")

			require.NoError(t, s.Delete(ctx, "cart:table:1", "tab-a"))
			_, err = s.Get(ctx, "cart:table:1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreSubscribeSeesEveryKey(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			ch, err := s.Subscribe(ctx)
			require.NoError(t, err)

			require.NoError(t, s.Set(ctx, "cart:table:1", []byte("one"), "tab-a"))
			require.NoError(t, s.Set(ctx, "cart:table:2", []byte("two"), "tab-b"))
			require.NoError(t, s.Delete(ctx, "cart:table:1", "tab-c"))

			c := receive(t, ch)
			assert.Equal(t, "cart:table:1", c.Key)
			assert.Equal(t, "one", string(c.Value))
			assert.Equal(t, "tab-a", c.Origin)

			c = receive(t, ch)
			assert.Equal(t, "cart:table:2", c.Key)

			c = receive(t, ch)
			assert.Equal(t, "cart:table:1", c.Key)
			assert.True(t, c.Deleted)
			assert.Equal(t, "tab-c", c.Origin)
		})
	}
}

func TestStoreSubscribeClosesOnCancel(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			ch, err := s.Subscribe(ctx)
			require.NoError(t, err)

			cancel()
			select {
			case _, ok := <-ch:
				assert.False(t, ok)
			case <-time.After(2 * time.Second):
				t.Fatal("channel not closed after cancel")
			}
		})
	}
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	client := setupTestRedis(t)
	s := NewRedisStore(client, "resto:", 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart:table:9", []byte("x"), ""))
	v, err := client.Get(ctx, "resto:cart:table:9").Result()
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestMemoryStoreDropsSubscriberOnCancel(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.SubscriberCount())

	cancel()
	assert.Eventually(t, func() bool { return s.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreNotifiesInStoredOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := s.Subscribe(ctx)
	require.NoError(t, err)

	const writers, writes = 8, 5
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				assert.NoError(t, s.Set(ctx, "cart:table:1", []byte(fmt.Sprintf("%d-%d", w, i)), "tab"))
			}
		}(w)
	}
	wg.Wait()

	var last Change
	for i := 0; i < writers*writes; i++ {
		last = receive(t, changes)
	}
	stored, err := s.Get(ctx, "cart:table:1")
	require.NoError(t, err)
	assert.Equal(t, string(stored), string(last.Value))
}
