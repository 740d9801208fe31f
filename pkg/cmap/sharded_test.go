package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if len(m.shards) != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d", tt.input, len(m.shards), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[int]()

	m.Set("a", 1)
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if !m.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if m.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
	if m.Has("a") {
		t.Error("Has(a) after delete = true")
	}
}

func TestSwap(t *testing.T) {
	m := New[[]byte]()

	prev, existed := m.Swap("k", []byte("v1"))
	if existed || prev != nil {
		t.Errorf("first Swap = %q, %v; want nil, false", prev, existed)
	}

	prev, existed = m.Swap("k", []byte{})
	if !existed || string(prev) != "v1" {
		t.Errorf("second Swap = %q, %v; want v1, true", prev, existed)
	}

	prev, existed = m.Swap("k", []byte("v2"))
	if !existed || prev == nil || len(prev) != 0 {
		t.Errorf("third Swap = %#v, %v; want empty, true", prev, existed)
	}
}

func TestCountAndClear(t *testing.T) {
	m := NewWithShards[int](4)
	for i := 0; i < 100; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}
	if m.Count() != 100 {
		t.Errorf("Count = %d, want 100", m.Count())
	}
	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count after Clear = %d", m.Count())
	}
}

func TestConcurrentSwap(t *testing.T) {
	m := New[[]byte]()
	m.Set("k", []byte("value"))

	const workers = 50
	var wg sync.WaitGroup
	winners := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev, _ := m.Swap("k", []byte{})
			if len(prev) > 0 {
				winners <- string(prev)
			}
		}()
	}
	wg.Wait()
	close(winners)

	n := 0
	for range winners {
		n++
	}
	if n != 1 {
		t.Errorf("%d goroutines observed the value, want exactly 1", n)
	}
}
