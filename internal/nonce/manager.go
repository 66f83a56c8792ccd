package nonce

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ChainNonceReader reads the authoritative pending nonce for a wallet.
type ChainNonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Manager is the single nonce authority for one wallet. All outbound
// transactions serialize through it: allocation is mutually exclusive,
// so two concurrent pipelines can never observe the same "next" value.
// The raw counter is never exposed.
type Manager struct {
	reader  ChainNonceReader
	address common.Address
	logger  *zap.Logger

	mu          sync.Mutex
	initialized bool
	next        uint64
	inFlight    map[uint64]bool
	freed       []uint64 // released, never-broadcast nonces, kept sorted
}

// Config holds nonce manager configuration.
type Config struct {
	Reader  ChainNonceReader
	Address common.Address
	Logger  *zap.Logger
}

// New creates a nonce manager. Call Init before allocating.
func New(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("chain nonce reader cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Manager{
		reader:   cfg.Reader,
		address:  cfg.Address,
		logger:   cfg.Logger,
		inFlight: make(map[uint64]bool),
	}, nil
}

// Init seeds the local counter from the chain's pending nonce.
func (m *Manager) Init(ctx context.Context) error {
	chainNonce, err := m.reader.PendingNonceAt(ctx, m.address)
	if err != nil {
		return fmt.Errorf("read pending nonce: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.next = chainNonce
	m.initialized = true
	m.inFlight = make(map[uint64]bool)
	m.freed = nil

	m.logger.Info("nonce-manager-initialized",
		zap.String("address", m.address.Hex()),
		zap.Uint64("next-nonce", chainNonce))

	return nil
}

// Allocate hands out the next nonce. Previously released nonces are
// reused lowest-first before the counter advances, keeping the
// sequence contiguous.
func (m *Manager) Allocate() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return 0, fmt.Errorf("nonce manager not initialized")
	}

	var n uint64
	if len(m.freed) > 0 {
		n = m.freed[0]
		m.freed = m.freed[1:]
	} else {
		n = m.next
		m.next++
	}

	m.inFlight[n] = true
	AllocationsTotal.Inc()
	InFlightGauge.Set(float64(len(m.inFlight)))

	m.logger.Debug("nonce-allocated", zap.Uint64("nonce", n))

	return n, nil
}

// Release returns a nonce that never reached the network to the free
// pool. Releasing a nonce that was broadcast would fork the sequence,
// so callers own that distinction.
func (m *Manager) Release(n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inFlight[n] {
		return fmt.Errorf("nonce %d is not in flight", n)
	}

	delete(m.inFlight, n)
	m.freed = append(m.freed, n)
	sort.Slice(m.freed, func(i, j int) bool { return m.freed[i] < m.freed[j] })

	ReleasesTotal.Inc()
	InFlightGauge.Set(float64(len(m.inFlight)))

	m.logger.Debug("nonce-released", zap.Uint64("nonce", n))

	return nil
}

// MarkBroadcast records that a nonce reached the network. The sequence
// has permanently advanced past it; any resubmission needs a new
// nonce or an explicit replace-by-fee of this one.
func (m *Manager) MarkBroadcast(n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inFlight[n] {
		return fmt.Errorf("nonce %d is not in flight", n)
	}

	delete(m.inFlight, n)
	InFlightGauge.Set(float64(len(m.inFlight)))

	return nil
}

// Resync re-reads the authoritative on-chain nonce and rebases the
// local counter. Used exclusively by error recovery after a detected
// mismatch; pending allocations below the chain nonce are abandoned.
func (m *Manager) Resync(ctx context.Context) error {
	chainNonce, err := m.reader.PendingNonceAt(ctx, m.address)
	if err != nil {
		return fmt.Errorf("read pending nonce: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if chainNonce > m.next {
		m.next = chainNonce
	}

	// Drop freed nonces the chain has already consumed.
	kept := m.freed[:0]
	for _, n := range m.freed {
		if n >= chainNonce {
			kept = append(kept, n)
		}
	}
	m.freed = kept

	ResyncsTotal.Inc()
	m.logger.Info("nonce-resynced",
		zap.Uint64("chain-nonce", chainNonce),
		zap.Uint64("next-nonce", m.next))

	return nil
}

// InFlight returns the number of allocated, unresolved nonces.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.inFlight)
}
