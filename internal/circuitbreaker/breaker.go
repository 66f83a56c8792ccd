package circuitbreaker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Breaker halts opportunity admission after sustained losses. It trips
// on either a run of consecutive failures or cumulative realized loss
// inside a trailing window, and stays tripped until an operator calls
// Reset.
type Breaker struct {
	enabled atomic.Bool // Atomic for lock-free reads on the hot path

	// Configuration
	consecutiveLimit int
	maxLossUSD       float64
	lossWindow       time.Duration
	logger           *zap.Logger

	// Protected by mutex
	mu          sync.RWMutex
	consecutive int
	losses      []lossSample
	trippedAt   time.Time
	tripReason  string
	totalTrips  int
}

// lossSample is one realized loss inside the trailing window.
type lossSample struct {
	at  time.Time
	usd float64
}

// Config holds circuit breaker configuration.
type Config struct {
	ConsecutiveFailureLimit int
	MaxLossWindowUSD        float64
	LossWindow              time.Duration
	Logger                  *zap.Logger
}

// Status holds current circuit breaker status for debugging and HTTP
// endpoints.
type Status struct {
	Enabled             bool      `json:"enabled"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	WindowLossUSD       float64   `json:"window_loss_usd"`
	TrippedAt           time.Time `json:"tripped_at,omitempty"`
	TripReason          string    `json:"trip_reason,omitempty"`
	TotalTrips          int       `json:"total_trips"`
}

// New creates a circuit breaker with the given configuration.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.ConsecutiveFailureLimit <= 0 {
		return nil, fmt.Errorf("consecutive failure limit must be positive")
	}
	if cfg.MaxLossWindowUSD <= 0 {
		return nil, fmt.Errorf("max loss window must be positive")
	}
	if cfg.LossWindow <= 0 {
		return nil, fmt.Errorf("loss window must be positive")
	}

	breaker := &Breaker{
		consecutiveLimit: cfg.ConsecutiveFailureLimit,
		maxLossUSD:       cfg.MaxLossWindowUSD,
		lossWindow:       cfg.LossWindow,
		logger:           cfg.Logger,
	}

	// Start enabled
	breaker.enabled.Store(true)
	BreakerEnabled.Set(1)

	return breaker, nil
}

// IsEnabled returns true if executions may be admitted. Lock-free and
// safe to call from hot paths.
func (b *Breaker) IsEnabled() bool {
	return b.enabled.Load()
}

// RecordSuccess resets the consecutive failure run.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	ConsecutiveFailures.Set(0)
}

// RecordFailure registers one failed execution and its realized loss in
// USD (gas burned plus any flash-loan fee paid). A zero loss still
// counts toward the consecutive run.
func (b *Breaker) RecordFailure(lossUSD float64) {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	if lossUSD > 0 {
		b.losses = append(b.losses, lossSample{at: now, usd: lossUSD})
	}
	b.pruneLocked(now)

	windowLoss := b.windowLossLocked()
	ConsecutiveFailures.Set(float64(b.consecutive))
	WindowLoss.Set(windowLoss)

	if !b.enabled.Load() {
		return
	}

	switch {
	case b.consecutive >= b.consecutiveLimit:
		b.tripLocked(now, fmt.Sprintf("%d consecutive failures", b.consecutive))
	case windowLoss > b.maxLossUSD:
		b.tripLocked(now, fmt.Sprintf("window loss %.2f USD exceeds limit", windowLoss))
	}
}

// tripLocked disables admission. Caller holds b.mu.
func (b *Breaker) tripLocked(now time.Time, reason string) {
	b.enabled.Store(false)
	b.trippedAt = now
	b.tripReason = reason
	b.totalTrips++

	BreakerEnabled.Set(0)
	TripsTotal.Inc()

	b.logger.Warn("circuit-breaker-tripped",
		zap.String("reason", reason),
		zap.Int("consecutive_failures", b.consecutive),
		zap.Float64("window_loss_usd", b.windowLossLocked()))
}

// Reset re-enables admission and clears the failure run. The loss
// window is cleared too: a reset is an operator statement that the
// losses have been reviewed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	b.losses = nil
	b.trippedAt = time.Time{}
	b.tripReason = ""
	b.enabled.Store(true)

	BreakerEnabled.Set(1)
	ConsecutiveFailures.Set(0)
	WindowLoss.Set(0)

	b.logger.Info("circuit-breaker-reset")
}

// pruneLocked drops loss samples older than the window. Caller holds
// b.mu.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.lossWindow)
	i := 0
	for i < len(b.losses) && b.losses[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.losses = b.losses[i:]
	}
}

// windowLossLocked sums the surviving samples. Caller holds b.mu.
func (b *Breaker) windowLossLocked() float64 {
	sum := 0.0
	for _, s := range b.losses {
		sum += s.usd
	}

	return sum
}

// GetStatus returns current breaker status.
func (b *Breaker) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(time.Now())

	return Status{
		Enabled:             b.enabled.Load(),
		ConsecutiveFailures: b.consecutive,
		WindowLossUSD:       b.windowLossLocked(),
		TrippedAt:           b.trippedAt,
		TripReason:          b.tripReason,
		TotalTrips:          b.totalTrips,
	}
}
