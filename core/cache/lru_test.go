package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRU_Eviction(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 2})
	defer l.Close()

	l.Put("Target/DBServers", 1)
	l.Put("Plan/DBServers", 2)

	// promote Target so Plan is the eviction candidate
	val, ok := l.Get("Target/DBServers")
	require.True(t, ok)
	require.Equal(t, 1, val)

	l.Put("Current/DBServers", 3)

	_, ok = l.Get("Plan/DBServers")
	require.False(t, ok, "expected Plan to be evicted")

	val, ok = l.Get("Current/DBServers")
	require.True(t, ok)
	require.Equal(t, 3, val)
}

func TestLRU_Update(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 2})
	defer l.Close()

	l.Put("a", 1)
	l.Put("a", 2)

	val, ok := l.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, val)
}

func TestLRU_Delete(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 2})
	defer l.Close()

	l.Put("a", 1)
	l.Put("b", 2)
	l.Delete("a")
	l.Delete("nonexistent")

	_, ok := l.Get("a")
	require.False(t, ok)

	val, ok := l.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, val)
}

func TestLRU_Concurrent(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 100})
	defer l.Close()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				key := fmt.Sprintf("Plan/Databases/db%d", j%20)
				l.Put(key, j)
				l.Get(key)
			}
		}(w)
	}
	wg.Wait()
}

func TestLRU_Close(t *testing.T) {
	l := NewLRU(LRUOpts{Size: 2})
	l.Put("a", 1)
	l.Close()
	l.Close()

	_, ok := l.Get("a")
	require.False(t, ok)

	l.Put("b", 2)
	l.Delete("a")
}

func TestTypedCache(t *testing.T) {
	l := NewLRU(LRUOpts{})
	defer l.Close()

	typed := NewTyped[string](l)
	typed.Put("k", "v")
	v, ok := typed.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	l.Put("other", 42)
	_, ok = typed.Get("other")
	require.False(t, ok, "wrong type must miss")
}
