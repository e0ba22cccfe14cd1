package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fix struct {
	Lat, Lon float64
}

func TestQueue_PushPop(t *testing.T) {
	q := New[fix]()
	assert.True(t, q.Empty())

	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(fix{1, 1}, fix{2, 2})
	assert.Equal(t, 2, q.Len())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, fix{1, 1}, got)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[fix]()
	q.Push(fix{1, 1}, fix{2, 2}, fix{3, 3})

	items := q.GetAndEmpty()
	assert.Len(t, items, 3)
	assert.True(t, q.Empty())

	q.Push(fix{4, 4})
	assert.Equal(t, fix{1, 1}, items[0], "drained slice must not alias the new buffer")
}

func TestQueue_Clear(t *testing.T) {
	q := New[fix]()
	q.Push(fix{1, 1})
	q.Clear()
	assert.Equal(t, 0, q.Len())
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[int](3)
	q.Push(1, 2, 3, 4, 5)

	assert.Equal(t, []int{3, 4, 5}, q.GetAndEmpty())
	assert.Equal(t, 2, q.Dropped())
}

func TestQueue_Requeue(t *testing.T) {
	q := New[int]()
	q.Push(3, 4)
	q.Requeue([]int{1, 2})
	assert.Equal(t, []int{1, 2, 3, 4}, q.GetAndEmpty())

	b := NewBounded[int](3)
	b.Push(3, 4)
	b.Requeue([]int{1, 2})
	assert.Equal(t, []int{2, 3, 4}, b.GetAndEmpty())
	assert.Equal(t, 1, b.Dropped())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, q.Len())
}
