// Package storetest provides a conformance suite for TanRepository
// implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// Factory returns an empty repository. Cleanup is the factory's concern.
type Factory func(t *testing.T) service.TanRepository

var base = time.Date(2026, 5, 4, 10, 30, 0, 123456000, time.UTC)

// NewRecord returns a valid record whose hash is derived from seed.
func NewRecord(seed string, created time.Time) *domain.Tan {
	return domain.NewTan(token.Hash(seed), domain.TanTypeTan, domain.SourceConnectedLab, created, time.Hour)
}

// Run exercises the full repository contract against newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newRepo(t)) })
	t.Run("CreateConflict", func(t *testing.T) { testCreateConflict(t, newRepo(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newRepo(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newRepo(t)) })
	t.Run("UpdateConflict", func(t *testing.T) { testUpdateConflict(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("DeleteCreatedBefore", func(t *testing.T) { testDeleteCreatedBefore(t, newRepo(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newRepo(t)) })
	t.Run("ConcurrentUpdate", func(t *testing.T) { testConcurrentUpdate(t, newRepo(t)) })
}

func testCreateGet(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()
	rec := domain.NewTan(token.Hash("R3ZNUeV"), domain.TanTypeTeleTan, domain.SourceTeleTan, base, time.Hour)

	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(ctx, rec.Hash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Equal(rec) {
		t.Errorf("Get() = %+v, want %+v", got, rec)
	}

	ok, err := repo.Exists(ctx, rec.Hash)
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want true", ok, err)
	}

	// Mutating the returned record must not reach the store.
	got.Redeemed = true
	again, _ := repo.Get(ctx, rec.Hash)
	if again.Redeemed {
		t.Error("store returned a shared record")
	}
}

func testCreateConflict(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()
	rec := NewRecord("conflict", base)

	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := rec.Clone()
	dup.Type = domain.TanTypeTeleTan
	if err := repo.Create(ctx, dup); !errors.Is(err, domain.ErrTanHashConflict) {
		t.Fatalf("Create(duplicate) error = %v, want ErrTanHashConflict", err)
	}

	got, _ := repo.Get(ctx, rec.Hash)
	if got.Type != domain.TanTypeTan {
		t.Error("duplicate Create overwrote the stored record")
	}
}

func testGetMissing(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()
	hash := token.Hash("missing")

	if _, err := repo.Get(ctx, hash); !errors.Is(err, domain.ErrTanNotFound) {
		t.Errorf("Get() error = %v, want ErrTanNotFound", err)
	}
	if ok, err := repo.Exists(ctx, hash); ok || err != nil {
		t.Errorf("Exists() = %v, %v; want false, nil", ok, err)
	}
}

func testUpdate(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()
	rec := NewRecord("update", base)
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	next := rec.Clone()
	next.MarkRedeemed(base.Add(time.Minute))
	if err := repo.Update(ctx, next, rec.Version); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.Get(ctx, rec.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(next) {
		t.Errorf("Get() after Update = %+v, want %+v", got, next)
	}
}

func testUpdateConflict(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()
	rec := NewRecord("update-conflict", base)
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	stale := rec.Clone()
	stale.MarkRedeemed(base)
	if err := repo.Update(ctx, stale, rec.Version+1); !errors.Is(err, domain.ErrTanVersionConflict) {
		t.Errorf("Update(stale) error = %v, want ErrTanVersionConflict", err)
	}

	absent := NewRecord("never-created", base)
	if err := repo.Update(ctx, absent, 1); !errors.Is(err, domain.ErrTanNotFound) {
		t.Errorf("Update(absent) error = %v, want ErrTanNotFound", err)
	}

	got, _ := repo.Get(ctx, rec.Hash)
	if got.Redeemed || got.Version != rec.Version {
		t.Errorf("stored record changed by a rejected Update: %+v", got)
	}
}

func testDelete(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()
	rec := NewRecord("delete", base)
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, rec.Hash); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, rec.Hash); !errors.Is(err, domain.ErrTanNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrTanNotFound", err)
	}
	if err := repo.Delete(ctx, rec.Hash); err != nil {
		t.Errorf("Delete(absent) error = %v", err)
	}

	// The hash is free again.
	if err := repo.Create(ctx, rec); err != nil {
		t.Errorf("Create() after Delete error = %v", err)
	}
}

func testDeleteCreatedBefore(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()

	old := []*domain.Tan{
		NewRecord("old-1", base.Add(-72*time.Hour)),
		NewRecord("old-2", base.Add(-25*time.Hour)),
	}
	fresh := []*domain.Tan{
		NewRecord("fresh-1", base),
		NewRecord("fresh-2", base.Add(time.Hour)),
	}
	for _, rec := range append(append([]*domain.Tan{}, old...), fresh...) {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.DeleteCreatedBefore(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteCreatedBefore() error = %v", err)
	}
	if n != len(old) {
		t.Errorf("DeleteCreatedBefore() = %d, want %d", n, len(old))
	}
	for _, rec := range old {
		if ok, _ := repo.Exists(ctx, rec.Hash); ok {
			t.Errorf("record created %v survived purge", rec.CreatedAt)
		}
	}
	for _, rec := range fresh {
		if ok, _ := repo.Exists(ctx, rec.Hash); !ok {
			t.Errorf("record created %v was purged", rec.CreatedAt)
		}
	}

	// The cutoff itself is exclusive.
	n, err = repo.DeleteCreatedBefore(ctx, base)
	if err != nil || n != 0 {
		t.Errorf("DeleteCreatedBefore(exact) = %d, %v; want 0", n, err)
	}
}

func testConcurrentCreate(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()
	rec := NewRecord("race", base)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, rec.Clone())
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, domain.ErrTanHashConflict):
				t.Errorf("Create() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("successful creates = %d, want 1", wins.Load())
	}
}

func testConcurrentUpdate(t *testing.T, repo service.TanRepository) {
	ctx := context.Background()
	rec := NewRecord("race-update", base)
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := rec.Clone()
			next.MarkRedeemed(base.Add(time.Duration(i) * time.Second))
			err := repo.Update(ctx, next, rec.Version)
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, domain.ErrTanVersionConflict):
				t.Errorf("Update() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("successful updates = %d, want 1", wins.Load())
	}
	got, err := repo.Get(ctx, rec.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != rec.Version+1 {
		t.Errorf("Version = %d, want %d", got.Version, rec.Version+1)
	}
}

// Seed creates n records and fails the test on error.
func Seed(t *testing.T, repo service.TanRepository, n int) []*domain.Tan {
	t.Helper()
	out := make([]*domain.Tan, 0, n)
	for i := 0; i < n; i++ {
		rec := NewRecord(fmt.Sprintf("seed-%d", i), base)
		if err := repo.Create(context.Background(), rec); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		out = append(out, rec)
	}
	return out
}
