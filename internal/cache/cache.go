// Package cache 在词典存储前面提供有界 LRU 加速层。
// 缓存只是加速器：任何时刻整体清空都不影响正确性，只影响延迟。
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/iabetor/hanpin/internal/format"
)

// Key 缓存键：查询对象（单字或词语）加目标格式。
type Key struct {
	Text   string
	Format format.Format
}

// Cache 是 (文本, 格式) → 读音的有界 LRU 缓存。
// 底层 hashicorp/golang-lru 保证命中即晋升、满员时淘汰严格最久未用项，
// 且两个动作各自在缓存锁内原子完成。
type Cache[V any] struct {
	lru  *lru.Cache[Key, V]
	hits atomic.Int64
	miss atomic.Int64
}

// New 创建容量为 capacity 的缓存。capacity 必须为正数。
func New[V any](capacity int) (*Cache[V], error) {
	l, err := lru.New[Key, V](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: l}, nil
}

// Get 查询缓存，命中时该键晋升为最近使用。
func (c *Cache[V]) Get(key Key) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.miss.Add(1)
	}
	return v, ok
}

// Put 写入或覆盖缓存项；满员且键为新键时先淘汰最久未用项。
func (c *Cache[V]) Put(key Key, value V) {
	c.lru.Add(key, value)
}

// Purge 清空全部缓存项。
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Len 返回当前缓存项数。
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Stats 返回累计命中与未命中次数。
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.miss.Load()
}
