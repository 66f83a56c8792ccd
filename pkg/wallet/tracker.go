// Package wallet tracks the engine wallet's native balance. Every
// transaction burns gas from the same account, so a draining balance
// is the earliest warning that executions are about to start failing
// at submission.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const pollTimeout = 15 * time.Second

// BalanceReader reads on-chain native balances. The chain client
// satisfies it.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// Config holds tracker configuration.
type Config struct {
	Reader        BalanceReader
	Address       common.Address
	PollInterval  time.Duration
	MinBalanceWei *big.Int // warn threshold, nil disables the check
	Logger        *zap.Logger
}

// Tracker periodically reads the wallet balance and updates metrics.
type Tracker struct {
	cfg    Config
	logger *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a wallet balance tracker.
func New(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Reader == nil {
		return nil, errors.New("balance reader cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	return &Tracker{cfg: *cfg, logger: cfg.Logger}, nil
}

// Start launches the polling loop.
func (t *Tracker) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.logger.Info("wallet-tracker-starting",
		zap.String("address", t.cfg.Address.Hex()),
		zap.Duration("poll-interval", t.cfg.PollInterval))

	t.wg.Add(1)
	go t.run(runCtx)
}

// Close stops the polling loop and waits for it to exit.
func (t *Tracker) Close() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	err := t.poll(ctx)
	if err != nil {
		t.logger.Error("initial-balance-poll-failed", zap.Error(err))
		UpdateErrorsTotal.Inc()
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("wallet-tracker-stopping")
			return
		case <-ticker.C:
			err = t.poll(ctx)
			if err != nil {
				t.logger.Error("balance-poll-failed", zap.Error(err))
				UpdateErrorsTotal.Inc()
			}
		}
	}
}

func (t *Tracker) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	balCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	balance, err := t.cfg.Reader.BalanceAt(balCtx, t.cfg.Address)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	NativeBalance.Set(weiToNative(balance))
	LastUpdateTimestamp.Set(float64(time.Now().Unix()))

	if t.cfg.MinBalanceWei != nil && balance.Cmp(t.cfg.MinBalanceWei) < 0 {
		LowBalance.Set(1)
		t.logger.Warn("low-gas-balance",
			zap.String("balance-wei", balance.String()),
			zap.String("min-wei", t.cfg.MinBalanceWei.String()))
	} else {
		LowBalance.Set(0)
	}

	t.logger.Debug("balance-poll-complete",
		zap.String("balance-wei", balance.String()),
		zap.Duration("duration", time.Since(start)))

	return nil
}

func weiToNative(wei *big.Int) float64 {
	out, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		big.NewFloat(1e18)).Float64()

	return out
}
