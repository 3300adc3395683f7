package repository

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// KV is whole-value blob storage used by the local cache tier.
// Load returns (nil, nil) for a missing key.
type KV interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// RedisKV keeps cache blobs in Redis without expiry.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (r *RedisKV) Save(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, key, data, 0).Err()
}

// MemoryKV is a process-local KV for tests and for running without Redis.
type MemoryKV struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{store: make(map[string][]byte)}
}

func (m *MemoryKV) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemoryKV) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := make([]byte, len(data))
	copy(b, data)
	m.store[key] = b
	return nil
}
