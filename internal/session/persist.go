package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Persister keeps the session across process restarts.
type Persister interface {
	// Load returns nil when nothing is stored.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// MemoryPersister keeps the session for the lifetime of the process only.
type MemoryPersister struct {
	mu sync.Mutex
	s  *Session
}

func (m *MemoryPersister) Load(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.s), nil
}

func (m *MemoryPersister) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = &s
	return nil
}

func (m *MemoryPersister) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

// RedisPersister stores the sealed session under a single key.
type RedisPersister struct {
	client redis.Cmdable
	key    string
	sealer *Sealer
	ttl    time.Duration
}

// NewRedisPersister returns a persister writing to key. A zero ttl keeps the
// key until cleared.
func NewRedisPersister(client redis.Cmdable, key string, sealer *Sealer, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, key: key, sealer: sealer, ttl: ttl}
}

func (r *RedisPersister) Load(ctx context.Context) (*Session, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	plain, err := r.sealer.Open(raw, []byte(r.key))
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisPersister) Save(ctx context.Context, s Session) error {
	plain, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	sealed, err := r.sealer.Seal(plain, []byte(r.key))
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, sealed, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisPersister) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
