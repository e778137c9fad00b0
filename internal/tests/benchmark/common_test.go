package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/internal/storage/memory"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// StoreSizes are the prefilled record counts benchmarks run against.
var StoreSizes = []int{1000, 10000, 100000}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newService returns a service over a fresh memory store.
func newService(opts ...service.Option) (*service.TanService, *memory.Store) {
	store := memory.New()
	opts = append([]service.Option{service.WithLogger(quietLogger())}, opts...)
	return service.NewTanService(store, nil, opts...), store
}

// prefill stores count standard TANs directly and returns their plaintexts.
func prefill(b *testing.B, store *memory.Store, count int) []string {
	b.Helper()
	ctx := context.Background()
	gen := token.DefaultGenerator()
	now := time.Now()

	plaintexts := make([]string, count)
	for i := range plaintexts {
		tan, err := gen.GenerateTan()
		if err != nil {
			b.Fatalf("GenerateTan() error = %v", err)
		}
		rec := domain.NewTan(token.Hash(tan), domain.TanTypeTan, domain.SourceConnectedLab, now, 14*24*time.Hour)
		if err := store.Create(ctx, rec); err != nil {
			b.Fatalf("Create() error = %v", err)
		}
		plaintexts[i] = tan
	}
	return plaintexts
}

// reportMemory reports heap usage after a forced GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
}

// runWithStoreSizes runs benchFn once per prefilled store size.
func runWithStoreSizes(b *testing.B, sizes []int, benchFn func(b *testing.B, size int)) {
	for _, size := range sizes {
		b.Run(fmt.Sprintf("tans_%d", size), func(b *testing.B) {
			benchFn(b, size)
		})
	}
}
