// Package cache 提供带容量上限与过期策略的泛型缓存
//
// 仓储层用它维护车辆与列车的身份映射，保证同一序列号在进程内只对应一个对象。
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Cache 并发安全的泛型 LRU 缓存
type Cache[K comparable, V any] struct {
	config Config[K, V]

	items   map[K]*entry[K, V]
	lruList *list.List // 最近使用的在前

	mu    sync.Mutex
	stats Stats
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	accessedAt time.Time
	lruElement *list.Element
}

// Config 缓存配置
type Config[K comparable, V any] struct {
	// Name 用于日志与统计输出
	Name string

	// MaxSize 最大条目数，0 表示不限
	MaxSize int

	// TTL 按最近访问时间计算的过期时长，0 表示永不过期
	TTL time.Duration

	// OnEvict 条目被驱逐、过期或删除时回调，持锁调用，不得回调缓存本身
	OnEvict func(key K, value V)
}

// Stats 缓存统计
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expires   int64
	Size      int
}

// New 创建缓存
func New[K comparable, V any](config Config[K, V]) *Cache[K, V] {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	return &Cache[K, V]{
		config:  config,
		items:   make(map[K]*entry[K, V]),
		lruList: list.New(),
	}
}

// Get 读取未过期的值，命中时刷新 LRU 位置
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[K, V]) getLocked(key K) (value V, found bool) {
	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return value, false
	}
	if c.expired(e) {
		c.removeLocked(e)
		c.stats.Misses++
		c.stats.Expires++
		return value, false
	}
	e.accessedAt = time.Now()
	c.lruList.MoveToFront(e.lruElement)
	c.stats.Hits++
	return e.value, true
}

// Set 写入或覆盖
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *Cache[K, V]) setLocked(key K, value V) {
	now := time.Now()
	if e, ok := c.items[key]; ok {
		e.value = value
		e.accessedAt = now
		c.lruList.MoveToFront(e.lruElement)
		return
	}
	if c.config.MaxSize > 0 && len(c.items) >= c.config.MaxSize {
		c.evictOldestLocked()
	}
	e := &entry[K, V]{key: key, value: value, accessedAt: now}
	e.lruElement = c.lruList.PushFront(e)
	c.items[key] = e
}

// GetOrLoad 命中则返回缓存值，否则在锁内调用 load 并写入
//
// 同一个键的并发调用只会执行一次 load，后到者得到先到者的结果。load 失败时不写入。
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.getLocked(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.setLocked(key, v)
	return v, nil
}

// Delete 删除条目，返回是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeLocked(e)
	return true
}

// Clear 清空缓存
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config.OnEvict != nil {
		for _, e := range c.items {
			c.config.OnEvict(e.key, e.value)
		}
	}
	c.items = make(map[K]*entry[K, V])
	c.lruList = list.New()
}

// CleanExpired 清理过期条目，返回清理数量
func (c *Cache[K, V]) CleanExpired() int {
	if c.config.TTL <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cleaned := 0
	for _, e := range c.items {
		if c.expired(e) {
			c.removeLocked(e)
			cleaned++
		}
	}
	c.stats.Expires += int64(cleaned)
	return cleaned
}

// Keys 按最近使用顺序返回所有键
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, len(c.items))
	for el := c.lruList.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Stats 统计副本
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.items)
	return s
}

// Size 当前条目数
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// HitRate 命中率
func (c *Cache[K, V]) HitRate() float64 {
	s := c.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return c.config.TTL > 0 && time.Since(e.accessedAt) >= c.config.TTL
}

func (c *Cache[K, V]) evictOldestLocked() {
	oldest := c.lruList.Back()
	if oldest == nil {
		return
	}
	c.removeLocked(oldest.Value.(*entry[K, V]))
	c.stats.Evictions++
}

func (c *Cache[K, V]) removeLocked(e *entry[K, V]) {
	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
	c.lruList.Remove(e.lruElement)
	delete(c.items, e.key)
}

func (c *Cache[K, V]) String() string {
	s := c.Stats()
	return fmt.Sprintf("Cache[%s]: size=%d/%d, hits=%d, misses=%d, hit_rate=%.2f%%, evictions=%d, expires=%d",
		c.config.Name, s.Size, c.config.MaxSize, s.Hits, s.Misses, c.HitRate()*100, s.Evictions, s.Expires)
}
