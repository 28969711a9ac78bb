package inbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu      sync.Mutex
	batches []Batch
}

func (c *collector) flush(_ context.Context, b Batch) {
	c.mu.Lock()
	c.batches = append(c.batches, b)
	c.mu.Unlock()
}

func (c *collector) snapshot() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Batch(nil), c.batches...)
}

func newRedisBuffer(t *testing.T) (*RedisBuffer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBuffer(client), mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "5511999Anaaleen", Key("5511999", "Ana"))
	assert.Equal(t, "5511999AnaSouzaaleen", Key("5511999", "Ana Maria Souza"))
	assert.Equal(t, "5511999aleen", Key("5511999", ""))
}

func TestRedisBufferPushAndDrain(t *testing.T) {
	buf, mr := newRedisBuffer(t)
	ctx := context.Background()

	require.NoError(t, buf.Push(ctx, "k", "oi"))
	require.NoError(t, buf.Push(ctx, "k", "tudo bem?"))

	list, err := mr.List("k")
	require.NoError(t, err)
	assert.Equal(t, []string{"oi", "tudo bem?"}, list)

	got, err := buf.Drain(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"oi", "tudo bem?"}, got)
	assert.False(t, mr.Exists("k"))

	got, err = buf.Drain(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInboxAggregatesBurstAfterQuietPeriod(t *testing.T) {
	buf, mr := newRedisBuffer(t)
	c := &collector{}
	in := New(buf, 80*time.Millisecond, c.flush, nil)
	defer in.Close()

	ctx := context.Background()
	for _, text := range []string{"oi", "quero saber", "sobre o app"} {
		require.NoError(t, in.Add(ctx, Message{Number: "5511", Name: "Ana", Text: text}))
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, []string{"5511Anaaleen"}, in.Pending())
	assert.Empty(t, c.snapshot())

	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	b := c.snapshot()[0]
	assert.Equal(t, "oi\nquero saber\nsobre o app", b.Text)
	assert.Equal(t, 3, b.Count)
	assert.Equal(t, "5511", b.Number)
	assert.Equal(t, "Ana", b.Name)
	assert.False(t, mr.Exists("5511Anaaleen"))
	assert.Empty(t, in.Pending())
}

func TestInboxKeepsSendersApart(t *testing.T) {
	c := &collector{}
	in := New(NewMemoryBuffer(), 30*time.Millisecond, c.flush, nil)
	defer in.Close()

	ctx := context.Background()
	require.NoError(t, in.Add(ctx, Message{Number: "1", Name: "Ana", Text: "a"}))
	require.NoError(t, in.Add(ctx, Message{Number: "2", Name: "Bia", Text: "b"}))

	require.Eventually(t, func() bool { return len(c.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)

	texts := map[string]string{}
	for _, b := range c.snapshot() {
		texts[b.Number] = b.Text
	}
	assert.Equal(t, map[string]string{"1": "a", "2": "b"}, texts)
}

func TestInboxCloseStopsTimers(t *testing.T) {
	buf := NewMemoryBuffer()
	c := &collector{}
	in := New(buf, 30*time.Millisecond, c.flush, nil)

	require.NoError(t, in.Add(context.Background(), Message{Number: "1", Text: "a"}))
	require.NoError(t, in.Close())

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, c.snapshot())
	assert.ErrorIs(t, in.Add(context.Background(), Message{Number: "1", Text: "b"}), ErrClosed)

	// buffered text survives for the next process
	left, err := buf.Drain(context.Background(), Key("1", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, left)
}

func TestInboxPushFailure(t *testing.T) {
	buf, mr := newRedisBuffer(t)
	in := New(buf, time.Minute, nil, nil)
	defer in.Close()

	mr.Close()
	err := in.Add(context.Background(), Message{Number: "1", Text: "a"})
	assert.Error(t, err)
	assert.Empty(t, in.Pending())
}
