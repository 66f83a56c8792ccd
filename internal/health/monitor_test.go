package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/axionmev/flasharb/pkg/types"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []types.Event
}

func (p *capturePublisher) Publish(event types.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
}

func (p *capturePublisher) byKind(kind types.EventKind) []types.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []types.Event
	for _, e := range p.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}

	return out
}

func newTestMonitor(t *testing.T, pub *capturePublisher) *Monitor {
	t.Helper()

	monitor, err := NewMonitor(Config{
		CheckInterval:          10 * time.Millisecond,
		WindowSize:             100,
		AnomalyDeviationFactor: 3.0,
		Publisher:              pub,
		Logger:                 zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return monitor
}

func TestNewMonitorValidation(t *testing.T) {
	t.Parallel()

	base := Config{
		CheckInterval:          time.Second,
		WindowSize:             100,
		AnomalyDeviationFactor: 3.0,
		Publisher:              &capturePublisher{},
		Logger:                 zaptest.NewLogger(t),
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil logger", func(c *Config) { c.Logger = nil }},
		{"nil publisher", func(c *Config) { c.Publisher = nil }},
		{"zero interval", func(c *Config) { c.CheckInterval = 0 }},
		{"zero window", func(c *Config) { c.WindowSize = 0 }},
		{"deviation factor too small", func(c *Config) { c.AnomalyDeviationFactor = 1.0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base
			tt.mutate(&cfg)

			_, err := NewMonitor(cfg)
			require.Error(t, err)
		})
	}
}

func TestStatusLadder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		failures int
		total    int
		want     Status
	}{
		{0, 100, StatusHealthy},
		{5, 100, StatusHealthy},  // exactly 5% stays healthy
		{6, 100, StatusDegraded}, // above 5%
		{20, 100, StatusDegraded},
		{21, 100, StatusUnhealthy},
		{50, 100, StatusUnhealthy},
		{51, 100, StatusCritical},
		{100, 100, StatusCritical},
	}

	for _, tt := range tests {
		tt := tt
		monitor := newTestMonitor(t, &capturePublisher{})
		for i := 0; i < tt.total; i++ {
			monitor.Record("executor", i >= tt.failures, time.Millisecond)
		}
		require.Equal(t, tt.want, monitor.Status("executor"),
			"%d/%d failures", tt.failures, tt.total)
	}
}

func TestUnknownComponentIsHealthy(t *testing.T) {
	t.Parallel()

	monitor := newTestMonitor(t, &capturePublisher{})
	require.Equal(t, StatusHealthy, monitor.Status("never-seen"))
	require.Equal(t, StatusHealthy, monitor.Overall())
}

func TestOverallIsWorstComponent(t *testing.T) {
	t.Parallel()

	monitor := newTestMonitor(t, &capturePublisher{})

	for i := 0; i < 100; i++ {
		monitor.Record("rpc", true, time.Millisecond)
	}
	for i := 0; i < 100; i++ {
		monitor.Record("executor", i%2 == 0, time.Millisecond) // 50%: unhealthy
	}

	require.Equal(t, StatusHealthy, monitor.Status("rpc"))
	require.Equal(t, StatusUnhealthy, monitor.Status("executor"))
	require.Equal(t, StatusUnhealthy, monitor.Overall())
}

func TestWindowEvictsOldFailures(t *testing.T) {
	t.Parallel()

	monitor, err := NewMonitor(Config{
		CheckInterval:          time.Second,
		WindowSize:             10,
		AnomalyDeviationFactor: 3.0,
		Publisher:              &capturePublisher{},
		Logger:                 zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		monitor.Record("executor", false, time.Millisecond)
	}
	require.Equal(t, StatusCritical, monitor.Status("executor"))

	// A full window of successes pushes every failure out.
	for i := 0; i < 10; i++ {
		monitor.Record("executor", true, time.Millisecond)
	}
	require.Equal(t, StatusHealthy, monitor.Status("executor"))
}

func TestAnomalyDetection(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	monitor := newTestMonitor(t, pub)

	// Establish a ~10ms baseline.
	for i := 0; i < 20; i++ {
		monitor.Record("rpc", true, 10*time.Millisecond)
	}
	require.Empty(t, pub.byKind(types.EventAnomalyDetected))

	// 3x the baseline within tolerance, above it is not.
	monitor.Record("rpc", true, 29*time.Millisecond)
	require.Empty(t, pub.byKind(types.EventAnomalyDetected))

	monitor.Record("rpc", true, 100*time.Millisecond)
	anomalies := pub.byKind(types.EventAnomalyDetected)
	require.Len(t, anomalies, 1)
	require.Equal(t, "rpc", anomalies[0].Component)
}

func TestErrorRateSpikeRaisesAnomaly(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	monitor := newTestMonitor(t, pub)

	// A clean trailing baseline: steady successes at steady latency.
	for i := 0; i < 30; i++ {
		monitor.Record("broadcast", true, 10*time.Millisecond)
	}
	require.Empty(t, pub.byKind(types.EventAnomalyDetected))

	// A sudden run of failures at unchanged latency must still raise
	// an anomaly once the rate deviates from the baseline.
	for i := 0; i < 10; i++ {
		monitor.Record("broadcast", false, 10*time.Millisecond)
	}

	anomalies := pub.byKind(types.EventAnomalyDetected)
	require.NotEmpty(t, anomalies)
	require.Equal(t, "broadcast", anomalies[0].Component)
	require.Contains(t, anomalies[0].Description, "failure rate")
}

func TestAnomalyNeedsBaseline(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	monitor := newTestMonitor(t, pub)

	// Too few observations for a baseline: no anomaly however slow.
	monitor.Record("rpc", true, time.Millisecond)
	monitor.Record("rpc", true, 10*time.Second)

	require.Empty(t, pub.byKind(types.EventAnomalyDetected))
}

func TestCheckLoopPublishesHealthChecks(t *testing.T) {
	pub := &capturePublisher{}
	monitor := newTestMonitor(t, pub)

	monitor.Start(context.Background())
	defer monitor.Close()

	require.Eventually(t, func() bool {
		return len(pub.byKind(types.EventHealthCheck)) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestCheckLoopRaisesCriticalHealth(t *testing.T) {
	pub := &capturePublisher{}
	monitor := newTestMonitor(t, pub)

	for i := 0; i < 20; i++ {
		monitor.Record("executor", false, time.Millisecond)
	}

	monitor.Start(context.Background())
	defer monitor.Close()

	require.Eventually(t, func() bool {
		return len(pub.byKind(types.EventCriticalHealth)) >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	monitor := newTestMonitor(t, &capturePublisher{})

	for i := 0; i < 10; i++ {
		monitor.Record("executor", i != 0, 20*time.Millisecond)
	}

	snap := monitor.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "executor", snap[0].Component)
	require.Equal(t, 10, snap[0].Observations)
	require.InDelta(t, 0.1, snap[0].FailureRate, 1e-9)
	require.Equal(t, 20*time.Millisecond, snap[0].MeanLatency)
}
