package ids

import (
	"sync"
	"testing"
)

func TestGenerateMonotonicAndUnique(t *testing.T) {
	prev := Generate()
	for i := 0; i < 10_000; i++ {
		id := Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestGenerateConcurrentUnique(t *testing.T) {
	const workers, per = 8, 2000
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, Generate())
			}
			mu.Lock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
}

func TestSetNodeIDClampsRange(t *testing.T) {
	SetNodeID(2048) // out of range falls back to default
	if defaultGen.nodeID != 1 {
		t.Fatalf("nodeID = %d, want clamp to 1", defaultGen.nodeID)
	}
	SetNodeID(100)
	if defaultGen.nodeID != 100 {
		t.Fatalf("nodeID = %d, want 100", defaultGen.nodeID)
	}
}
