// Package storage selects and opens the TAN record store.
//
// Engines:
//
//   - memory: sharded in-process map, lost on restart
//   - badger: embedded LSM store with transactional conflict detection
//   - redis: shared store, SETNX for inserts and WATCH/MULTI for updates
//   - sqlite: embedded SQL file, conditional UPDATE for version checks
//   - postgres: shared SQL store via gorm, conditional UPDATE for version checks
//
// Every engine satisfies service.TanRepository and is verified by the
// storetest conformance suite.
package storage
