package cmap

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
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

	m.Set("key1", 100)
	m.Set("key1", 200)

	val, ok := m.Get("key1")
	if !ok || val != 200 {
		t.Errorf("Get(key1) = (%d, %v), want (200, true)", val, ok)
	}
	if !m.Has("key1") || m.Has("nonexistent") {
		t.Error("Has() mismatch")
	}

	if !m.Delete("key1") {
		t.Error("Delete(key1) = false, want true")
	}
	if m.Delete("key1") {
		t.Error("second Delete(key1) = true, want false")
	}
	if _, ok := m.Get("key1"); ok {
		t.Error("key1 should not exist after deletion")
	}
}

func TestSetIfAbsent(t *testing.T) {
	m := New[string]()

	if !m.SetIfAbsent("k", "first") {
		t.Fatal("SetIfAbsent on empty map = false")
	}
	if m.SetIfAbsent("k", "second") {
		t.Fatal("SetIfAbsent on existing key = true")
	}
	if v, _ := m.Get("k"); v != "first" {
		t.Errorf("Get(k) = %q, want first", v)
	}
}

func TestSetIfAbsent_Concurrent(t *testing.T) {
	m := New[int]()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if m.SetIfAbsent("contended", i) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("SetIfAbsent winners = %d, want 1", wins.Load())
	}
}

func TestModify(t *testing.T) {
	m := New[int]()
	errStop := errors.New("stop")

	err := m.Modify("counter", func(old int, exists bool) (int, error) {
		if exists {
			t.Error("exists = true for missing key")
		}
		return old + 1, nil
	})
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}

	err = m.Modify("counter", func(old int, _ bool) (int, error) {
		return old + 100, errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("Modify() error = %v, want errStop", err)
	}
	if v, _ := m.Get("counter"); v != 1 {
		t.Errorf("Get(counter) = %d, want 1 (failed Modify must not write)", v)
	}
}

func TestModify_Concurrent(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Modify("counter", func(old int, _ bool) (int, error) {
					return old + 1, nil
				})
			}
		}()
	}
	wg.Wait()

	if v, _ := m.Get("counter"); v != 10000 {
		t.Errorf("Get(counter) = %d, want 10000", v)
	}
}

func TestDeleteIf(t *testing.T) {
	m := NewWithShards[int](4)
	for i := 0; i < 100; i++ {
		m.Set(strconv.Itoa(i), i)
	}

	removed := m.DeleteIf(func(_ string, v int) bool { return v%2 == 0 })
	if removed != 50 {
		t.Errorf("DeleteIf() = %d, want 50", removed)
	}
	if m.Count() != 50 {
		t.Errorf("Count() = %d, want 50", m.Count())
	}
	m.Range(func(_ string, v int) bool {
		if v%2 == 0 {
			t.Errorf("even value %d survived DeleteIf", v)
		}
		return true
	})
}

func TestRange_Stop(t *testing.T) {
	m := New[int]()
	for i := 0; i < 10; i++ {
		m.Set(strconv.Itoa(i), i)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("visited = %d, want 3", visited)
	}
}

func TestCountAndClear(t *testing.T) {
	m := New[int]()
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}

	m.Set("a", 1)
	m.Set("b", 2)
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", m.Count())
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	numGoroutines := 50
	numOps := 200

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := strconv.Itoa(base*numOps + j)
				m.Set(key, j)
				m.Get(key)
				m.Has(key)
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != numGoroutines*numOps {
		t.Errorf("Count() = %d, want %d", m.Count(), numGoroutines*numOps)
	}
}

func BenchmarkSetIfAbsent(b *testing.B) {
	m := New[int]()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.SetIfAbsent(strconv.Itoa(i), i)
			i++
		}
	})
}
