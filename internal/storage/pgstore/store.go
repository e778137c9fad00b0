// Package pgstore stores TAN records in PostgreSQL through gorm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cwa-verification/tanserver/internal/core/domain"
)

// Config configures the PostgreSQL store.
type Config struct {
	// DSN is a libpq connection string or URL.
	DSN string

	// MaxOpenConns caps the connection pool (default: 10).
	MaxOpenConns int
}

// tanModel is the row layout of verification_tan.
type tanModel struct {
	Hash          string    `gorm:"column:tan_hash;primaryKey;size:64"`
	Type          string    `gorm:"column:type;size:16;not null"`
	SourceOfTrust string    `gorm:"column:source_of_trust;size:32;not null"`
	Redeemed      bool      `gorm:"column:redeemed;not null;default:false"`
	ValidFrom     time.Time `gorm:"column:valid_from;not null"`
	ValidUntil    time.Time `gorm:"column:valid_until;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index;autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
	Version       int64     `gorm:"column:version;not null"`
}

func (tanModel) TableName() string {
	return "verification_tan"
}

func toModel(t *domain.Tan) tanModel {
	return tanModel{
		Hash:          t.Hash,
		Type:          string(t.Type),
		SourceOfTrust: string(t.SourceOfTrust),
		Redeemed:      t.Redeemed,
		ValidFrom:     t.ValidFrom.UTC(),
		ValidUntil:    t.ValidUntil.UTC(),
		CreatedAt:     t.CreatedAt.UTC(),
		UpdatedAt:     t.UpdatedAt.UTC(),
		Version:       int64(t.Version),
	}
}

func (m tanModel) toDomain() *domain.Tan {
	return &domain.Tan{
		Hash:          m.Hash,
		Type:          domain.TanType(m.Type),
		SourceOfTrust: domain.SourceOfTrust(m.SourceOfTrust),
		Redeemed:      m.Redeemed,
		ValidFrom:     m.ValidFrom.UTC(),
		ValidUntil:    m.ValidUntil.UTC(),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
		Version:       uint64(m.Version),
	}
}

// Store is a PostgreSQL-backed TAN repository.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects, verifies the connection and migrates the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&tanModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	logger.Info("connected to postgres")
	return &Store{db: db, logger: logger}, nil
}

// Get retrieves a record by hash.
func (s *Store) Get(ctx context.Context, hash string) (*domain.Tan, error) {
	var m tanModel
	err := s.db.WithContext(ctx).Where("tan_hash = ?", hash).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get: %w", err)
	}
	return m.toDomain(), nil
}

// Exists reports whether a record is stored.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&tanModel{}).Where("tan_hash = ?", hash).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("postgres: exists: %w", err)
	}
	return n > 0, nil
}

// Create stores a new record unless the hash is taken.
func (s *Store) Create(ctx context.Context, tan *domain.Tan) error {
	if err := tan.Validate(); err != nil {
		return err
	}
	m := toModel(tan)
	err := s.db.WithContext(ctx).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrTanHashConflict
	}
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

// Update replaces a record with optimistic locking. The version check is
// part of the UPDATE's WHERE clause.
func (s *Store) Update(ctx context.Context, tan *domain.Tan, expectedVersion uint64) error {
	if err := tan.Validate(); err != nil {
		return err
	}
	m := toModel(tan)

	res := s.db.WithContext(ctx).Model(&tanModel{}).
		Where("tan_hash = ? AND version = ?", m.Hash, int64(expectedVersion)).
		Updates(map[string]any{
			"type":            m.Type,
			"source_of_trust": m.SourceOfTrust,
			"redeemed":        m.Redeemed,
			"valid_from":      m.ValidFrom,
			"valid_until":     m.ValidUntil,
			"created_at":      m.CreatedAt,
			"updated_at":      m.UpdatedAt,
			"version":         m.Version,
		})
	if res.Error != nil {
		return fmt.Errorf("postgres: update: %w", res.Error)
	}
	if res.RowsAffected == 1 {
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
	if err := s.db.WithContext(ctx).Where("tan_hash = ?", hash).Delete(&tanModel{}).Error; err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	return nil
}

// DeleteCreatedBefore removes records created before cutoff.
func (s *Store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&tanModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("postgres: purge: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
