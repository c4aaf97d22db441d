// Package cache 提供带过期时间的键值缓存
package cache

import (
	"context"
	"sync"
	"time"
)

// Clock 时间源, 测试时可注入假时钟
type Clock func() time.Time

// Entry 缓存条目
type Entry[V any] struct {
	Value     V
	CreatedAt time.Time
	TTL       time.Duration
}

// Valid 条目在 now 时刻是否仍然有效
func (e Entry[V]) Valid(now time.Time) bool {
	return now.Sub(e.CreatedAt) < e.TTL
}

// TTLCache 惰性过期的内存缓存
// 过期条目不会被主动清理, 只在读取时视为未命中
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	entries    map[K]Entry[V]
	ttl        time.Duration
	now        Clock
	maxEntries int // 0 表示不限制
}

// Option TTLCache 选项
type Option func(*options)

type options struct {
	now        Clock
	maxEntries int
}

// WithClock 注入时钟
func WithClock(c Clock) Option {
	return func(o *options) { o.now = c }
}

// WithMaxEntries 限制条目数量
// 插入新键且已满时, 先清理过期条目, 仍然满则淘汰最早写入的条目
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// NewTTLCache 创建缓存
func NewTTLCache[K comparable, V any](ttl time.Duration, opts ...Option) *TTLCache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[K, V]{
		entries:    make(map[K]Entry[V]),
		ttl:        ttl,
		now:        o.now,
		maxEntries: o.maxEntries,
	}
}

// Get 读取未过期的值
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !e.Valid(c.now()) {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Put 无条件覆盖, 时间戳为当前时间
func (c *TTLCache[K, V]) Put(key K, value V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = Entry[V]{Value: value, CreatedAt: now, TTL: c.ttl}
}

// Len 当前条目数 (包括已过期但未清理的)
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked 腾出至少一个位置, 调用方需持有写锁
func (c *TTLCache[K, V]) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if !e.Valid(now) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var (
		oldestKey K
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.CreatedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.CreatedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// Store 字符串键缓存, 供内存和 Redis 两种实现共用
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Put(ctx context.Context, key string, value V)
}

// Memory 基于 TTLCache 的 Store
type Memory[V any] struct {
	c *TTLCache[string, V]
}

// NewMemory 创建内存 Store
func NewMemory[V any](ttl time.Duration, opts ...Option) *Memory[V] {
	return &Memory[V]{c: NewTTLCache[string, V](ttl, opts...)}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) { return m.c.Get(key) }

func (m *Memory[V]) Put(_ context.Context, key string, value V) { m.c.Put(key, value) }

// Len 当前条目数
func (m *Memory[V]) Len() int { return m.c.Len() }
