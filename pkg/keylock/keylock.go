// Package keylock provides striped per-key mutual exclusion.
//
// Keys are mapped onto a fixed set of mutexes by murmur3 hash. Two
// different keys may share a stripe; the same key always maps to the
// same stripe.
package keylock

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultStripes is the default number of stripes.
const DefaultStripes = 256

// Striped is a fixed pool of mutexes addressed by key.
type Striped struct {
	stripes []sync.Mutex
	mask    uint32
}

// New creates a Striped lock with n stripes, rounded up to a power of 2.
// Non-positive n selects DefaultStripes.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return &Striped{
		stripes: make([]sync.Mutex, size),
		mask:    uint32(size - 1),
	}
}

// Lock acquires the stripe for key and returns its release function.
//
//	unlock := locks.Lock(hash)
//	defer unlock()
func (s *Striped) Lock(key string) (unlock func()) {
	mu := &s.stripes[murmur3.Sum32([]byte(key))&s.mask]
	mu.Lock()
	return mu.Unlock
}

// Stripes returns the number of stripes.
func (s *Striped) Stripes() int {
	return len(s.stripes)
}
