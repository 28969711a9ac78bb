// Package inbox collects bursts of inbound messages per sender and releases
// them as one aggregated batch once the sender has been quiet for a while.
package inbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Buffer is an ordered per-key message list.
type Buffer interface {
	Name() string
	Push(ctx context.Context, key, text string) error
	// Drain returns every buffered message for key and clears it in one step.
	Drain(ctx context.Context, key string) ([]string, error)
}

// Key builds the buffer key for a sender: number, first and last name, then
// the "aleen" suffix. A single-word name contributes only once.
func Key(number, pushName string) string {
	parts := strings.Fields(pushName)
	var first, last string
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	return number + first + last + "aleen"
}

// RedisBuffer keeps each burst in a Redis list (RPUSH on arrival, LRANGE and
// DEL in one transaction on drain).
type RedisBuffer struct {
	client *redis.Client
}

func NewRedisBuffer(client *redis.Client) *RedisBuffer {
	return &RedisBuffer{client: client}
}

func (b *RedisBuffer) Name() string { return "redis" }

func (b *RedisBuffer) Push(ctx context.Context, key, text string) error {
	if err := b.client.RPush(ctx, key, text).Err(); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

func (b *RedisBuffer) Drain(ctx context.Context, key string) ([]string, error) {
	var messages *redis.StringSliceCmd
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		messages = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", key, err)
	}
	return messages.Val(), nil
}

// MemoryBuffer is the in-process Buffer used when Redis is not available.
type MemoryBuffer struct {
	mu    sync.Mutex
	lists map[string][]string
}

func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{lists: make(map[string][]string)}
}

func (b *MemoryBuffer) Name() string { return "memory" }

func (b *MemoryBuffer) Push(_ context.Context, key, text string) error {
	b.mu.Lock()
	b.lists[key] = append(b.lists[key], text)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBuffer) Drain(_ context.Context, key string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.lists[key]
	delete(b.lists, key)
	return out, nil
}
