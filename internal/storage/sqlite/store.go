// Package sqlite stores TAN records in an embedded SQLite database
// through database/sql and the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cwa-verification/tanserver/internal/core/domain"
)

// timeLayout is fixed-width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS verification_tan (
  tan_hash TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  source_of_trust TEXT NOT NULL,
  redeemed INTEGER NOT NULL DEFAULT 0,
  valid_from TEXT NOT NULL,
  valid_until TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  version INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verification_tan_created_at ON verification_tan (created_at);
`

const selectColumns = `tan_hash, type, source_of_trust, redeemed, valid_from, valid_until, created_at, updated_at, version`

// Config configures the SQLite store.
type Config struct {
	// Path is the database file. Parent directories are created.
	Path string
}

// Store is a SQLite-backed TAN repository.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database and ensures the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	dsn := "file:" + cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection serializes writers inside this process.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	logger.Info("sqlite store opened", "path", cfg.Path)
	return &Store{db: db, logger: logger}, nil
}

// Get retrieves a record by hash.
func (s *Store) Get(ctx context.Context, hash string) (*domain.Tan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM verification_tan WHERE tan_hash = ?`, hash)
	tan, err := scanTan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get: %w", err)
	}
	return tan, nil
}

// Exists reports whether a record is stored.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM verification_tan WHERE tan_hash = ?`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: exists: %w", err)
	}
	return true, nil
}

// Create stores a new record unless the hash is taken.
func (s *Store) Create(ctx context.Context, tan *domain.Tan) error {
	if err := tan.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_tan (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tan.Hash, string(tan.Type), string(tan.SourceOfTrust), tan.Redeemed,
		formatTime(tan.ValidFrom), formatTime(tan.ValidUntil),
		formatTime(tan.CreatedAt), formatTime(tan.UpdatedAt),
		int64(tan.Version))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return domain.ErrTanHashConflict
		}
		return fmt.Errorf("sqlite: insert: %w", err)
	}
	return nil
}

// Update replaces a record with optimistic locking.
func (s *Store) Update(ctx context.Context, tan *domain.Tan, expectedVersion uint64) error {
	if err := tan.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE verification_tan
SET type = ?, source_of_trust = ?, redeemed = ?, valid_from = ?, valid_until = ?,
    created_at = ?, updated_at = ?, version = ?
WHERE tan_hash = ? AND version = ?`,
		string(tan.Type), string(tan.SourceOfTrust), tan.Redeemed,
		formatTime(tan.ValidFrom), formatTime(tan.ValidUntil),
		formatTime(tan.CreatedAt), formatTime(tan.UpdatedAt),
		int64(tan.Version), tan.Hash, int64(expectedVersion))
	if err != nil {
		return fmt.Errorf("sqlite: update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	ok, err := s.Exists(ctx, tan.Hash)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrTanNotFound
	}
	return domain.ErrTanVersionConflict
}

// Delete removes a record. Absent records are ignored.
func (s *Store) Delete(ctx context.Context, hash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM verification_tan WHERE tan_hash = ?`, hash); err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	return nil
}

// DeleteCreatedBefore removes records created before cutoff.
func (s *Store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM verification_tan WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return int(n), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTan(row rowScanner) (*domain.Tan, error) {
	var (
		tan                   domain.Tan
		typ, sot              string
		validFrom, validUntil string
		createdAt, updatedAt  string
		version               int64
	)
	if err := row.Scan(&tan.Hash, &typ, &sot, &tan.Redeemed,
		&validFrom, &validUntil, &createdAt, &updatedAt, &version); err != nil {
		return nil, err
	}
	tan.Type = domain.TanType(typ)
	tan.SourceOfTrust = domain.SourceOfTrust(sot)
	tan.Version = uint64(version)

	var err error
	if tan.ValidFrom, err = parseTime(validFrom); err != nil {
		return nil, err
	}
	if tan.ValidUntil, err = parseTime(validUntil); err != nil {
		return nil, err
	}
	if tan.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if tan.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &tan, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// isUniqueConstraintErr matches the driver's constraint message.
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
