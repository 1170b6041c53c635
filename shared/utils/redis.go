package utils

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ErrKeyNotFound is returned by KV.Get for missing or expired keys
var ErrKeyNotFound = errors.New("key not found")

// KV is the small expiring key/value surface used for the logout
// blacklist and pending two-factor logins
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Incr adds one to the counter at key and returns the new value. A counter
	// created by this call expires after ttl; later calls keep that expiry.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisKV is a KV backed by Redis
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to Redis and verifies the connection
func NewRedisKV(ctx context.Context, addr, password string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logrus.Infof("Connected to Redis at %s", addr)
	return &RedisKV{client: client}, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	return val, err
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, key).Result()
	return count > 0, err
}

func (r *RedisKV) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close closes the Redis connection
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// MemoryKV is a process-local KV for single-instance deployments and tests
type MemoryKV struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value   string
	expires time.Time
}

// NewMemoryKV creates an empty MemoryKV. now may be nil.
func NewMemoryKV(now func() time.Time) *MemoryKV {
	if now == nil {
		now = time.Now
	}
	return &MemoryKV{items: map[string]memoryItem{}, now: now}
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		delete(m.items, key)
		return "", ErrKeyNotFound
	}
	return item.value, nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *MemoryKV) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if ok && !item.expires.IsZero() && !m.now().Before(item.expires) {
		ok = false
	}
	var n int64
	if ok {
		v, err := strconv.ParseInt(item.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not a counter: %w", key, err)
		}
		n = v
	} else {
		item = memoryItem{}
		if ttl > 0 {
			item.expires = m.now().Add(ttl)
		}
	}
	n++
	item.value = strconv.FormatInt(n, 10)
	m.items[key] = item
	return n, nil
}

// BlacklistKey is the KV key marking a revoked token id
func BlacklistKey(jti string) string {
	return "token:blacklist:" + jti
}

// TwoFactorChallengeKey is the KV key of a pending two-factor login
func TwoFactorChallengeKey(id string) string {
	return "2fa:challenge:" + id
}

// VerifyAttemptsKey counts wrong email verification codes for one address
func VerifyAttemptsKey(email string) string {
	return "verify:attempts:" + email
}
