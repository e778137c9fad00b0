package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwa-verification/tanserver/internal/core/domain"
)

// tanKeyPrefix namespaces TAN records inside the Badger keyspace.
const tanKeyPrefix = "tan/"

// purgeBatchSize bounds the number of deletes per purge transaction.
const purgeBatchSize = 1000

// BadgerConfig configures the Badger store.
type BadgerConfig struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in memory. Intended for tests.
	InMemory bool

	// CacheSize is the block cache size in bytes.
	CacheSize int64

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCInterval is the value log GC period (default: 10m).
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC (default: 0.5).
	GCThreshold float64
}

// DefaultBadgerConfig returns defaults rooted at dir.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:         dir,
		CacheSize:   64 << 20,
		SyncWrites:  true,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
	}
}

// BadgerStore persists TAN records in Badger.
//
// Each record is one JSON value under "tan/<hash>". Create and Update run
// inside read-write transactions with conflict detection, so two writers
// racing on the same key cannot both commit.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	lastGCTime       atomic.Int64 // Unix milliseconds
	gcBytesReclaimed atomic.Uint64

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerStore opens a Badger store.
func NewBadgerStore(cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.DetectConflicts = true
	opts.SyncWrites = cfg.SyncWrites
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go s.gcLoop()

	logger.Info("badger store started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

func tanKey(hash string) []byte {
	return []byte(tanKeyPrefix + hash)
}

// Get retrieves a record by hash.
func (s *BadgerStore) Get(ctx context.Context, hash string) (*domain.Tan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tan *domain.Tan
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		tan, err = readTan(txn, hash)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tan, nil
}

// Exists reports whether a record is stored.
func (s *BadgerStore) Exists(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(tanKey(hash))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("badger: exists: %w", err)
	}
}

// Create stores a new record unless the hash is taken.
func (s *BadgerStore) Create(ctx context.Context, tan *domain.Tan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tan.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(tan)
	if err != nil {
		return fmt.Errorf("badger: encode: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(tanKey(tan.Hash))
		if err == nil {
			return domain.ErrTanHashConflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(tanKey(tan.Hash), value)
	})
	if errors.Is(err, badger.ErrConflict) {
		return domain.ErrTanHashConflict
	}
	return wrapBadger("create", err)
}

// Update replaces a record with optimistic locking.
func (s *BadgerStore) Update(ctx context.Context, tan *domain.Tan, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tan.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(tan)
	if err != nil {
		return fmt.Errorf("badger: encode: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		existing, err := readTan(txn, tan.Hash)
		if err != nil {
			return err
		}
		if existing.Version != expectedVersion {
			return domain.ErrTanVersionConflict
		}
		return txn.Set(tanKey(tan.Hash), value)
	})
	if errors.Is(err, badger.ErrConflict) {
		return domain.ErrTanVersionConflict
	}
	return wrapBadger("update", err)
}

// Delete removes a record. Absent records are ignored.
func (s *BadgerStore) Delete(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(tanKey(hash))
	})
	return wrapBadger("delete", err)
}

// DeleteCreatedBefore removes records created before cutoff.
//
// Matching keys are collected in a read transaction and deleted in
// batches; each delete re-checks the record so one that was replaced in
// between is left alone.
func (s *BadgerStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var hashes []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(tanKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var tan domain.Tan
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &tan)
			}); err != nil {
				return err
			}
			if tan.CreatedAt.Before(cutoff) {
				hashes = append(hashes, tan.Hash)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger: scan: %w", err)
	}

	deleted := 0
	for start := 0; start < len(hashes); start += purgeBatchSize {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		end := min(start+purgeBatchSize, len(hashes))

		n := 0
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, hash := range hashes[start:end] {
				tan, err := readTan(txn, hash)
				if errors.Is(err, domain.ErrTanNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if !tan.CreatedAt.Before(cutoff) {
					continue
				}
				if err := txn.Delete(tanKey(hash)); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("badger: purge: %w", err)
		}
		deleted += n
	}

	return deleted, nil
}

func readTan(txn *badger.Txn, hash string) (*domain.Tan, error) {
	item, err := txn.Get(tanKey(hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrTanNotFound
	}
	if err != nil {
		return nil, err
	}

	var tan domain.Tan
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &tan)
	}); err != nil {
		return nil, fmt.Errorf("badger: decode %s: %w", hash, err)
	}
	return &tan, nil
}

// wrapBadger passes domain errors through and annotates the rest.
func wrapBadger(op string, err error) error {
	if err == nil || domain.IsDomainError(err, "") {
		return err
	}
	return fmt.Errorf("badger: %s: %w", op, err)
}

// GC runs value log GC until nothing is left to rewrite.
func (s *BadgerStore) GC() error {
	runs := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return fmt.Errorf("badger: gc: %w", err)
		}
		runs++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	if s.metricsGCRuns != nil {
		s.metricsGCRuns.Add(float64(runs))
	}
	if runs > 0 {
		s.logger.Debug("badger gc completed", "rewrites", runs)
	}
	return nil
}

// Size returns the LSM and value log sizes in bytes.
func (s *BadgerStore) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// Close stops background work and closes the database.
func (s *BadgerStore) Close() error {
	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badger: close db: %w", err)
	}
	s.logger.Info("badger store closed")
	return nil
}

// RegisterMetrics registers store gauges with reg.
func (s *BadgerStore) RegisterMetrics(reg prometheus.Registerer) *BadgerStore {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tanserver",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tanserver",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	s.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tanserver",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})
	s.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tanserver",
		Subsystem: "badger",
		Name:      "gc_rewrites_total",
		Help:      "Value log files rewritten by Badger GC",
	})

	reg.MustRegister(
		s.metricsLSMSize,
		s.metricsValueLogSize,
		s.metricsLastGCTime,
		s.metricsGCRuns,
	)
	s.updateMetrics()
	return s
}

func (s *BadgerStore) updateMetrics() {
	if s.metricsLSMSize == nil {
		return
	}
	lsm, vlog := s.db.Size()
	s.metricsLSMSize.Set(float64(lsm))
	s.metricsValueLogSize.Set(float64(vlog))
	if ts := s.lastGCTime.Load(); ts > 0 {
		s.metricsLastGCTime.Set(float64(ts) / 1000.0)
	}
}

// gcLoop runs periodic garbage collection and refreshes gauges.
func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.cfg.InMemory {
				if err := s.GC(); err != nil {
					s.logger.Error("auto gc failed", "error", err)
				}
			}
			s.updateMetrics()
		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
