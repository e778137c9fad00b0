// Package cmap provides a sharded, string-keyed concurrent map.
//
// Keys are spread over a power-of-two number of shards by their
// murmur3 hash; each shard is guarded by its own RWMutex. Compound
// operations (SetIfAbsent, Modify, DeleteIf) run entirely under the
// shard's write lock and are therefore atomic with respect to every
// other operation on the same key.
//
// Usage:
//
//	m := cmap.New[*domain.Tan]()
//	if !m.SetIfAbsent(hash, tan) {
//		// already present
//	}
package cmap
