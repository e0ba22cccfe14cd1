package cache

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/iBurnApp/iBurn-iOS/internal/model"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ObjectCache keeps recently read art, camps and events in memory to avoid
// repeated database reads while scrolling and on the map.
type ObjectCache struct {
	lru    *lru.Cache[string, model.Object]
	size   atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
}

// NewObjectCache creates a cache holding at most size objects.
func NewObjectCache(size int) (*ObjectCache, error) {
	l, err := lru.New[string, model.Object](size)
	if err != nil {
		return nil, fmt.Errorf("creating object cache: %w", err)
	}
	c := &ObjectCache{lru: l}
	c.size.Store(int64(size))
	return c, nil
}

func key(t model.ObjectType, uid string) string {
	return string(t) + ":" + uid
}

// Get returns a cached object.
func (c *ObjectCache) Get(t model.ObjectType, uid string) (model.Object, bool) {
	obj, ok := c.lru.Get(key(t, uid))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return obj, ok
}

// Add stores an object under its type and uid.
func (c *ObjectCache) Add(obj model.Object) {
	c.lru.Add(key(obj.Type(), obj.ID()), obj)
}

// Invalidate removes one object.
func (c *ObjectCache) Invalidate(t model.ObjectType, uid string) {
	c.lru.Remove(key(t, uid))
}

// InvalidateType removes every object of a type, used after a re-import.
func (c *ObjectCache) InvalidateType(t model.ObjectType) int {
	prefix := string(t) + ":"
	removed := 0
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
			removed++
		}
	}
	return removed
}

// Purge empties the cache.
func (c *ObjectCache) Purge() {
	c.lru.Purge()
}

// Resize changes the capacity and returns how many entries were evicted.
func (c *ObjectCache) Resize(size int) int {
	c.size.Store(int64(size))
	return c.lru.Resize(size)
}

// Size returns the current capacity.
func (c *ObjectCache) Size() int {
	return int(c.size.Load())
}

// Len returns the number of cached objects.
func (c *ObjectCache) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counts since creation.
func (c *ObjectCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
