package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeReader struct {
	mu      sync.Mutex
	balance *big.Int
	err     error
	calls   int
}

func (r *fakeReader) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return new(big.Int).Set(r.balance), nil
}

func (r *fakeReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func testAddress() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000AA")
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	reader := &fakeReader{balance: big.NewInt(1)}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: "config cannot be nil",
		},
		{
			name: "nil reader",
			cfg: &Config{
				PollInterval: time.Second,
				Logger:       logger,
			},
			wantErr: "balance reader cannot be nil",
		},
		{
			name: "nil logger",
			cfg: &Config{
				Reader:       reader,
				PollInterval: time.Second,
			},
			wantErr: "logger cannot be nil",
		},
		{
			name: "zero poll interval",
			cfg: &Config{
				Reader: reader,
				Logger: logger,
			},
			wantErr: "poll interval must be positive",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTracker_PollsBalance(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{balance: big.NewInt(5e17)}

	tracker, err := New(&Config{
		Reader:       reader,
		Address:      testAddress(),
		PollInterval: 10 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	tracker.Start(context.Background())
	defer tracker.Close()

	require.Eventually(t, func() bool {
		return reader.callCount() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestTracker_SurvivesReadErrors(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{err: errors.New("rpc down")}

	tracker, err := New(&Config{
		Reader:       reader,
		Address:      testAddress(),
		PollInterval: 10 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	tracker.Start(context.Background())

	require.Eventually(t, func() bool {
		return reader.callCount() >= 3
	}, time.Second, 5*time.Millisecond)

	tracker.Close()
}

func TestTracker_CloseWithoutStart(t *testing.T) {
	t.Parallel()

	tracker, err := New(&Config{
		Reader:       &fakeReader{balance: big.NewInt(1)},
		Address:      testAddress(),
		PollInterval: time.Second,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	tracker.Close()
}

func TestWeiToNative(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 1.0, weiToNative(big.NewInt(1e18)), 1e-9)
	require.InDelta(t, 0.5, weiToNative(big.NewInt(5e17)), 1e-9)
	require.InDelta(t, 0.0, weiToNative(big.NewInt(0)), 1e-9)
}
