package service

import (
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// TeleTanLimiter bounds TeleTAN issuance to a budget per period.
//
// The budget is a token bucket holding count tokens that refills at
// count/period. A warning is logged once when the share of the budget in
// use reaches the threshold; it re-arms after usage falls back below it.
type TeleTanLimiter struct {
	limiter   *rate.Limiter
	burst     int
	threshold float64
	warned    atomic.Bool
	logger    *slog.Logger
}

// NewTeleTanLimiter creates a limiter allowing count issuances per period.
// Returns nil (no limit) when count or period is not positive.
// thresholdPercent outside 1..100 disables the warning.
func NewTeleTanLimiter(count int, period time.Duration, thresholdPercent int, logger *slog.Logger) *TeleTanLimiter {
	if count <= 0 || period <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &TeleTanLimiter{
		limiter: rate.NewLimiter(rate.Every(period/time.Duration(count)), count),
		burst:   count,
		logger:  logger,
	}
	if thresholdPercent > 0 && thresholdPercent <= 100 {
		l.threshold = float64(count) * float64(thresholdPercent) / 100
	}
	return l
}

// Allow consumes one issuance at now and reports whether it was permitted.
func (l *TeleTanLimiter) Allow(now time.Time) bool {
	if !l.limiter.AllowN(now, 1) {
		return false
	}

	if l.threshold > 0 {
		used := float64(l.burst) - l.limiter.TokensAt(now)
		if used >= l.threshold {
			if l.warned.CompareAndSwap(false, true) {
				l.logger.Warn("teletan issuance budget threshold reached",
					"used", int(used),
					"budget", l.burst,
				)
			}
		} else {
			l.warned.Store(false)
		}
	}
	return true
}

// Remaining returns the issuances still available at now.
func (l *TeleTanLimiter) Remaining(now time.Time) int {
	return int(l.limiter.TokensAt(now))
}
