package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

func camp(uid string) model.Camp {
	return model.Camp{DataObject: model.DataObject{UID: uid, Title: "Camp " + uid}}
}

func TestObjectCache_AddAndGet(t *testing.T) {
	c, err := NewObjectCache(10)
	require.NoError(t, err)

	c.Add(camp("c1"))
	c.Add(model.Art{DataObject: model.DataObject{UID: "c1", Title: "Same uid, other type"}})

	got, ok := c.Get(model.TypeCamp, "c1")
	require.True(t, ok)
	assert.Equal(t, "Camp c1", got.Name())

	got, ok = c.Get(model.TypeArt, "c1")
	require.True(t, ok)
	assert.Equal(t, model.TypeArt, got.Type())

	_, ok = c.Get(model.TypeEvent, "c1")
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestObjectCache_InvalidNewSize(t *testing.T) {
	_, err := NewObjectCache(0)
	assert.Error(t, err)
}

func TestObjectCache_Invalidate(t *testing.T) {
	c, err := NewObjectCache(10)
	require.NoError(t, err)

	c.Add(camp("c1"))
	c.Invalidate(model.TypeCamp, "c1")

	_, ok := c.Get(model.TypeCamp, "c1")
	assert.False(t, ok)
}

func TestObjectCache_InvalidateType(t *testing.T) {
	c, err := NewObjectCache(10)
	require.NoError(t, err)

	c.Add(camp("c1"))
	c.Add(camp("c2"))
	c.Add(model.Art{DataObject: model.DataObject{UID: "a1"}})

	assert.Equal(t, 2, c.InvalidateType(model.TypeCamp))
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get(model.TypeArt, "a1")
	assert.True(t, ok)
}

func TestObjectCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewObjectCache(2)
	require.NoError(t, err)

	c.Add(camp("c1"))
	c.Add(camp("c2"))
	c.Get(model.TypeCamp, "c1")
	c.Add(camp("c3"))

	_, ok := c.Get(model.TypeCamp, "c2")
	assert.False(t, ok, "c2 was least recently used")
	_, ok = c.Get(model.TypeCamp, "c1")
	assert.True(t, ok)
}

func TestObjectCache_Resize(t *testing.T) {
	c, err := NewObjectCache(1000)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		c.Add(camp(fmt.Sprintf("c%d", i)))
	}

	evicted := c.Resize(250)
	assert.Equal(t, 50, evicted)
	assert.Equal(t, 250, c.Len())
	assert.Equal(t, 250, c.Size())
}

func TestObjectCache_Purge(t *testing.T) {
	c, err := NewObjectCache(10)
	require.NoError(t, err)
	c.Add(camp("c1"))
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestObjectCache_ConcurrentAccess(t *testing.T) {
	c, err := NewObjectCache(100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Add(camp(fmt.Sprintf("c%d", n)))
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(model.TypeCamp, fmt.Sprintf("c%d", n))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}
