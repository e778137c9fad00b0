// Package memory provides in-memory TAN storage.
//
// Records live in a sharded concurrent map keyed by hash. Create and
// Update run under the owning shard's write lock, which gives
// insert-if-absent and version compare-and-set without a global lock.
// Contents are lost on restart.
package memory
