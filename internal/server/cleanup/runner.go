package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Purger removes records created before a cutoff.
// service.TanService implements it.
type Purger interface {
	PurgeCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Config holds runner settings.
type Config struct {
	// Interval between purge passes.
	Interval time.Duration

	// Retention is how long a record is kept after creation.
	Retention time.Duration

	// Timeout bounds a single pass (default: 5m).
	Timeout time.Duration
}

// Runner purges expired records periodically.
type Runner struct {
	purger Purger
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Runner. Interval and Retention must be positive.
func New(purger Purger, cfg Config, logger *slog.Logger) (*Runner, error) {
	if purger == nil {
		return nil, errors.New("cleanup: purger is required")
	}
	if cfg.Interval <= 0 || cfg.Retention <= 0 {
		return nil, errors.New("cleanup: interval and retention must be positive")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		purger: purger,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}, nil
}

// RunOnce purges records created before now minus the retention.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cutoff := r.now().Add(-r.cfg.Retention)
	start := time.Now()
	n, err := r.purger.PurgeCreatedBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("tan purge failed", "error", err, "removed", n)
		return n, err
	}
	r.logger.Debug("tan purge completed",
		"removed", n,
		"cutoff", cutoff,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}

// Start launches the background loop. A pass runs immediately, then once
// per interval. Calling Start twice is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.loop(r.stopCh, r.doneCh)
	r.logger.Info("tan cleanup started",
		"interval", r.cfg.Interval.String(),
		"retention", r.cfg.Retention.String(),
	)
}

func (r *Runner) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		r.RunOnce(ctx)

		select {
		case <-ticker.C:
		case <-stopCh:
			return
		}
	}
}

// Stop ends the loop and waits for an in-flight pass to return.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	doneCh := r.doneCh
	r.mu.Unlock()

	select {
	case <-doneCh:
		r.logger.Info("tan cleanup stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
