// Package cache はプロセス内TTLキャッシュを提供する。
// リクエストハンドラに明示的に注入して使用する所有型のコンポーネントであり、
// プロセスグローバルなマップは使用しない。
package cache

import (
	"sync"
	"time"
)

// entry は値と格納時刻の組。
type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache はキーごとの値と鮮度タイムスタンプを保持するキャッシュ。
// 並行アクセスに対して安全。
type TTLCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry[V]
	now     func() time.Time // テストで差し替え可能
}

// New は指定TTLのTTLCacheを生成する。
func New[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get はキーに対応する値を返す。未格納またはTTL超過の場合は
// ゼロ値とfalseを返す。期限切れエントリはこのタイミングで破棄する。
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set はキーに値を格納し、鮮度タイムスタンプを現在時刻にする。
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate はキーのエントリを破棄する。
func (c *TTLCache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len は現在のエントリ数を返す（期限切れを含む）。
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
