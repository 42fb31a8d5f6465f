package dedup

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreMarkThenSeen(t *testing.T) {
	store := NewMemoryStore()

	assert.False(t, store.Seen("msg-1"))
	store.Mark("msg-1")
	assert.True(t, store.Seen("msg-1"))
	assert.False(t, store.Seen("msg-2"))
	assert.Equal(t, 1, store.Count())
}

func TestMemoryStoreMarkIfUnseen(t *testing.T) {
	store := NewMemoryStore()

	assert.True(t, store.MarkIfUnseen("msg-1"))
	assert.False(t, store.MarkIfUnseen("msg-1"))
	assert.True(t, store.Seen("msg-1"))
	assert.Equal(t, 1, store.Count())
}

func TestMemoryStoreConcurrentMark(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	wins := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			wins <- store.MarkIfUnseen(fmt.Sprintf("msg-%d", n%10))
		}(i)
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 10, won, "each id should be claimed exactly once")
	assert.Equal(t, 10, store.Count())
}
