// Package health tracks per-component success rates and latencies and
// classifies each component on a fixed status ladder.
package health

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/types"
)

// Status is a rung on the health ladder, ordered worst-last.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusCritical  Status = "critical"
)

// rank orders statuses for worst-of aggregation.
func (s Status) rank() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	case StatusCritical:
		return 3
	default:
		return 0
	}
}

// Failure-rate thresholds for the ladder. A component with no
// observations is healthy.
const (
	degradedRate  = 0.05
	unhealthyRate = 0.20
	criticalRate  = 0.50
)

// Error-rate anomaly baseline. The EWMA trails the window's failure
// rate; the floor keeps a pristine baseline from turning the first
// failure into an alert.
const (
	rateBaselineAlpha = 0.1
	rateBaselineFloor = degradedRate
)

// Publisher receives monitor events. The orchestrator's event bus
// satisfies it.
type Publisher interface {
	Publish(event types.Event)
}

// observation is one recorded outcome.
type observation struct {
	ok      bool
	latency time.Duration
}

// window is a fixed-size ring of the most recent observations for one
// component.
type window struct {
	obs      []observation
	next     int
	filled   bool
	failures int
	// latency baseline over the window, maintained incrementally
	latencySum time.Duration
	// trailing EWMA of the failure rate, updated before each insert
	rateBaseline float64
}

func newWindow(size int) *window {
	return &window{obs: make([]observation, size)}
}

func (w *window) add(o observation) {
	// Evict the slot being overwritten once the ring wraps.
	if w.filled {
		old := w.obs[w.next]
		if !old.ok {
			w.failures--
		}
		w.latencySum -= old.latency
	}

	w.obs[w.next] = o
	if !o.ok {
		w.failures++
	}
	w.latencySum += o.latency

	w.next++
	if w.next == len(w.obs) {
		w.next = 0
		w.filled = true
	}
}

func (w *window) count() int {
	if w.filled {
		return len(w.obs)
	}

	return w.next
}

func (w *window) failureRate() float64 {
	n := w.count()
	if n == 0 {
		return 0
	}

	return float64(w.failures) / float64(n)
}

func (w *window) meanLatency() time.Duration {
	n := w.count()
	if n == 0 {
		return 0
	}

	return w.latencySum / time.Duration(n)
}

// ComponentHealth is a point-in-time snapshot for one component.
type ComponentHealth struct {
	Component    string        `json:"component"`
	Status       Status        `json:"status"`
	FailureRate  float64       `json:"failure_rate"`
	Observations int           `json:"observations"`
	MeanLatency  time.Duration `json:"mean_latency"`
}

// Config bounds the monitor.
type Config struct {
	CheckInterval          time.Duration
	WindowSize             int
	AnomalyDeviationFactor float64
	Publisher              Publisher
	Logger                 *zap.Logger
}

// Monitor keeps rolling windows per component and publishes periodic
// health-check events plus anomaly and critical-health alerts.
type Monitor struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	windows map[string]*window

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewMonitor creates a health monitor.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if cfg.AnomalyDeviationFactor <= 1.0 {
		return nil, fmt.Errorf("anomaly deviation factor must be > 1.0")
	}

	return &Monitor{
		cfg:     cfg,
		logger:  cfg.Logger,
		windows: make(map[string]*window),
	}, nil
}

// Record adds one outcome for a component. Latencies or failure rates
// well above their rolling baselines raise an anomaly event; both
// baselines are taken before the observation joins the window, so a
// sample cannot mask itself.
func (m *Monitor) Record(component string, success bool, latency time.Duration) {
	m.mu.Lock()

	w, ok := m.windows[component]
	if !ok {
		w = newWindow(m.cfg.WindowSize)
		m.windows[component] = w
	}

	var slowLatency bool
	if baseline := w.meanLatency(); baseline > 0 && w.count() >= 10 {
		if float64(latency) > m.cfg.AnomalyDeviationFactor*float64(baseline) {
			slowLatency = true
		}
	}

	// The EWMA absorbs the pre-insertion rate, so a burst of failures
	// cannot lift its own reference point.
	if w.count() >= 10 {
		w.rateBaseline = (1-rateBaselineAlpha)*w.rateBaseline + rateBaselineAlpha*w.failureRate()
	}

	w.add(observation{ok: success, latency: latency})
	rate := w.failureRate()

	var rateSpike bool
	if w.count() >= 10 {
		limit := m.cfg.AnomalyDeviationFactor * math.Max(w.rateBaseline, rateBaselineFloor)
		if rate > limit {
			rateSpike = true
		}
	}
	m.mu.Unlock()

	ObservationsTotal.WithLabelValues(component, outcomeLabel(success)).Inc()
	FailureRateGauge.WithLabelValues(component).Set(rate)

	if slowLatency {
		AnomaliesTotal.WithLabelValues(component).Inc()
		m.logger.Warn("latency-anomaly-detected",
			zap.String("component", component),
			zap.Duration("latency", latency))
		m.cfg.Publisher.Publish(types.Event{
			Kind:        types.EventAnomalyDetected,
			Component:   component,
			Description: fmt.Sprintf("latency %s exceeds rolling baseline", latency),
			At:          time.Now(),
		})
	}

	if rateSpike {
		AnomaliesTotal.WithLabelValues(component).Inc()
		m.logger.Warn("error-rate-anomaly-detected",
			zap.String("component", component),
			zap.Float64("failure-rate", rate))
		m.cfg.Publisher.Publish(types.Event{
			Kind:        types.EventAnomalyDetected,
			Component:   component,
			Description: fmt.Sprintf("failure rate %.0f%% exceeds rolling baseline", rate*100),
			At:          time.Now(),
		})
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}

// Status classifies one component.
func (m *Monitor) Status(component string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.windows[component]
	if !ok {
		return StatusHealthy
	}

	return statusFor(w.failureRate())
}

func statusFor(rate float64) Status {
	switch {
	case rate > criticalRate:
		return StatusCritical
	case rate > unhealthyRate:
		return StatusUnhealthy
	case rate > degradedRate:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Overall is the worst status across all components.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	worst := StatusHealthy
	for _, w := range m.windows {
		if s := statusFor(w.failureRate()); s.rank() > worst.rank() {
			worst = s
		}
	}

	return worst
}

// Snapshot returns the current health of every tracked component.
func (m *Monitor) Snapshot() []ComponentHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ComponentHealth, 0, len(m.windows))
	for name, w := range m.windows {
		out = append(out, ComponentHealth{
			Component:    name,
			Status:       statusFor(w.failureRate()),
			FailureRate:  w.failureRate(),
			Observations: w.count(),
			MeanLatency:  w.meanLatency(),
		})
	}

	return out
}

// Start launches the periodic check loop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.checkLoop(ctx)

	m.logger.Info("health-monitor-started",
		zap.Duration("interval", m.cfg.CheckInterval),
		zap.Int("window-size", m.cfg.WindowSize))
}

// Close stops the check loop.
func (m *Monitor) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) checkLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runCheck()
		}
	}
}

// runCheck publishes one health-check event and, when the worst
// component crosses the critical threshold, a critical-health alert.
func (m *Monitor) runCheck() {
	overall := m.Overall()
	m.cfg.Publisher.Publish(types.Event{
		Kind:        types.EventHealthCheck,
		Description: string(overall),
		At:          time.Now(),
	})

	if overall == StatusCritical {
		m.logger.Error("system-health-critical")
		CriticalChecksTotal.Inc()
		m.cfg.Publisher.Publish(types.Event{
			Kind:        types.EventCriticalHealth,
			Description: "failure rate above critical threshold",
			At:          time.Now(),
		})
	}
}
