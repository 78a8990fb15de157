package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIDUnique(t *testing.T) {
	const n = 10000
	seen := make(map[int64]struct{}, n)
	for i := 0; i < n; i++ {
		id := NextID()
		_, dup := seen[id]
		assert.False(t, dup, "ID 重复: %d", id)
		seen[id] = struct{}{}
	}
}

func TestNextIDConcurrent(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 1000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				ids = append(ids, NextID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				_, dup := seen[id]
				assert.False(t, dup, "并发生成出现重复ID: %d", id)
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()
}

func TestBusinessNoPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateNodeNo(), "NODE"))
	assert.True(t, strings.HasPrefix(GenerateEventNo(), "EVT"))
	assert.True(t, strings.HasPrefix(GenerateClaimNo(), "CLM"))
}

func TestBusinessNoUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		no := GenerateEventNo()
		_, dup := seen[no]
		assert.False(t, dup, "流水号重复: %s", no)
		seen[no] = struct{}{}
	}
}
