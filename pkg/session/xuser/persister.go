package xuser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey 持久化记录的默认键名。
const DefaultKey = "user-store"

// Record 是持久化的会话记录，只包含用户信息，不包含凭据。
type Record struct {
	User *User `json:"user"`
}

// Persister 保存和恢复会话记录。
type Persister interface {
	// Load 读取记录，不存在时返回 (nil, nil)。
	Load(ctx context.Context) (*Record, error)
	// Save 写入记录。
	Save(ctx context.Context, rec *Record) error
	// Delete 删除记录，不存在时不报错。
	Delete(ctx context.Context) error
}

// =============================================================================
// MemoryPersister
// =============================================================================

// MemoryPersister 进程内持久化实现，保存序列化后的副本。
type MemoryPersister struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryPersister 创建内存持久化。
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load 实现 Persister。
func (p *MemoryPersister) Load(_ context.Context) (*Record, error) {
	p.mu.Lock()
	data := p.data
	p.mu.Unlock()
	if data == nil {
		return nil, nil
	}
	return decodeRecord(data)
}

// Save 实现 Persister。
func (p *MemoryPersister) Save(_ context.Context, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
	return nil
}

// Delete 实现 Persister。
func (p *MemoryPersister) Delete(_ context.Context) error {
	p.mu.Lock()
	p.data = nil
	p.mu.Unlock()
	return nil
}

// =============================================================================
// RedisPersister
// =============================================================================

// RedisPersister 基于 Redis 的持久化实现，记录以 JSON 字符串保存在单个键下。
type RedisPersister struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// RedisOption Redis 持久化选项。
type RedisOption func(*RedisPersister)

// WithKey 设置键名，默认 "user-store"。
func WithKey(key string) RedisOption {
	return func(p *RedisPersister) {
		if key != "" {
			p.key = key
		}
	}
}

// WithTTL 设置记录过期时间，0 表示不过期。
func WithTTL(ttl time.Duration) RedisOption {
	return func(p *RedisPersister) {
		if ttl >= 0 {
			p.ttl = ttl
		}
	}
}

// NewRedisPersister 创建 Redis 持久化。
func NewRedisPersister(client redis.UniversalClient, opts ...RedisOption) (*RedisPersister, error) {
	if client == nil {
		return nil, ErrNilRedisClient
	}
	p := &RedisPersister{client: client, key: DefaultKey}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Key 返回键名。
func (p *RedisPersister) Key() string {
	return p.key
}

// Load 实现 Persister。
func (p *RedisPersister) Load(ctx context.Context) (*Record, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xuser: redis get failed: %w", err)
	}
	return decodeRecord(data)
}

// Save 实现 Persister。
func (p *RedisPersister) Save(ctx context.Context, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("xuser: redis set failed: %w", err)
	}
	return nil
}

// Delete 实现 Persister。
func (p *RedisPersister) Delete(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("xuser: redis del failed: %w", err)
	}
	return nil
}

func encodeRecord(rec *Record) ([]byte, error) {
	if rec == nil {
		rec = &Record{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("xuser: marshal record failed: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return &rec, nil
}
