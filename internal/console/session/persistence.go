package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersistence stores session caches in redis with a TTL.
type RedisPersistence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPersistence(client *redis.Client, ttl time.Duration) *RedisPersistence {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPersistence{client: client, ttl: ttl}
}

func sessionKey(key string) string {
	return "railconsole:session:" + key
}

func (p *RedisPersistence) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := p.client.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return data, nil
}

func (p *RedisPersistence) Save(ctx context.Context, key string, data []byte) error {
	if err := p.client.Set(ctx, sessionKey(key), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *RedisPersistence) Delete(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, sessionKey(key)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// MemoryPersistence is an in-process Persistence for tests.
type MemoryPersistence struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{data: make(map[string][]byte)}
}

func (p *MemoryPersistence) Load(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if data, ok := p.data[key]; ok {
		copied := make([]byte, len(data))
		copy(copied, data)
		return copied, nil
	}
	return nil, nil
}

func (p *MemoryPersistence) Save(_ context.Context, key string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	p.data[key] = copied
	return nil
}

func (p *MemoryPersistence) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return nil
}
