// Package redisstore stores TAN records in Redis.
//
// Each record is a JSON string under <prefix><hash>. Create uses SETNX;
// Update runs inside WATCH/MULTI so a concurrent writer aborts the
// transaction and the caller sees a version conflict.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cwa-verification/tanserver/internal/core/domain"
)

// DefaultKeyPrefix namespaces record keys.
const DefaultKeyPrefix = "tan:"

const scanBatch = 500

// Config configures the Redis store.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to every hash (default: "tan:").
	KeyPrefix string

	// TTL expires records after creation. Zero keeps them until purged.
	TTL time.Duration

	// DialTimeout bounds connection setup (default: 5s).
	DialTimeout time.Duration
}

// Store is a Redis-backed TAN repository.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: addr is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	logger.Info("connected to redis", "addr", cfg.Addr, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return &Store{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (s *Store) key(hash string) string {
	return s.prefix + hash
}

// Get retrieves a record by hash.
func (s *Store) Get(ctx context.Context, hash string) (*domain.Tan, error) {
	data, err := s.client.Get(ctx, s.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrTanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get: %w", err)
	}
	return decode(hash, data)
}

// Exists reports whether a record is stored.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(hash)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists: %w", err)
	}
	return n > 0, nil
}

// Create stores a new record unless the hash is taken.
func (s *Store) Create(ctx context.Context, tan *domain.Tan) error {
	if err := tan.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(tan)
	if err != nil {
		return fmt.Errorf("redis: encode: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(tan.Hash), value, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: setnx: %w", err)
	}
	if !ok {
		return domain.ErrTanHashConflict
	}
	return nil
}

// Update replaces a record with optimistic locking. The key's remaining
// TTL is preserved.
func (s *Store) Update(ctx context.Context, tan *domain.Tan, expectedVersion uint64) error {
	if err := tan.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(tan)
	if err != nil {
		return fmt.Errorf("redis: encode: %w", err)
	}
	key := s.key(tan.Hash)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrTanNotFound
		}
		if err != nil {
			return err
		}
		existing, err := decode(tan.Hash, data)
		if err != nil {
			return err
		}
		if existing.Version != expectedVersion {
			return domain.ErrTanVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, redis.KeepTTL)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrTanVersionConflict
	case domain.IsDomainError(err, ""):
		return err
	default:
		return fmt.Errorf("redis: update: %w", err)
	}
}

// Delete removes a record. Absent records are ignored.
func (s *Store) Delete(ctx context.Context, hash string) error {
	if err := s.client.Del(ctx, s.key(hash)).Err(); err != nil {
		return fmt.Errorf("redis: del: %w", err)
	}
	return nil
}

// DeleteCreatedBefore scans the key prefix and removes records created
// before cutoff.
func (s *Store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis: scan: %w", err)
		}

		n, err := s.purgeKeys(ctx, keys, cutoff)
		deleted += n
		if err != nil {
			return deleted, err
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *Store) purgeKeys(ctx context.Context, keys []string, cutoff time.Time) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: mget: %w", err)
	}

	var stale []string
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var tan domain.Tan
		if err := json.Unmarshal([]byte(str), &tan); err != nil {
			s.logger.Warn("skipping undecodable record", "key", keys[i], "error", err)
			continue
		}
		if tan.CreatedAt.Before(cutoff) {
			stale = append(stale, keys[i])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := s.client.Del(ctx, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: del: %w", err)
	}
	return int(n), nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(hash string, data []byte) (*domain.Tan, error) {
	var tan domain.Tan
	if err := json.Unmarshal(data, &tan); err != nil {
		return nil, fmt.Errorf("redis: decode %s: %w", hash, err)
	}
	return &tan, nil
}
