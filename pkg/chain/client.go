package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when a call is made before Dial.
var ErrNotConnected = errors.New("chain client not connected")

// Client wraps an ethclient connection with the narrow surface the
// engine needs: gas quotes, nonce reads, submission, and receipts.
type Client struct {
	rpcURL  string
	chainID *big.Int
	eth     *ethclient.Client
	logger  *zap.Logger
}

// NewClient creates a chain client. Call Dial before use.
func NewClient(rpcURL string, chainID int64, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Client{
		rpcURL:  rpcURL,
		chainID: big.NewInt(chainID),
		logger:  logger,
	}, nil
}

// Dial establishes the RPC connection.
func (c *Client) Dial(ctx context.Context) error {
	eth, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return fmt.Errorf("dial RPC: %w", err)
	}

	c.eth = eth
	c.logger.Info("chain-client-connected",
		zap.String("rpc-url", c.rpcURL),
		zap.Int64("chain-id", c.chainID.Int64()))

	return nil
}

// ChainID returns the configured chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// SuggestGasPrice fetches the current gas price from the node.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.eth == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	price, err := c.eth.SuggestGasPrice(ctx)
	RPCCallDuration.WithLabelValues("suggest_gas_price").Observe(time.Since(start).Seconds())

	if err != nil {
		RPCErrorsTotal.WithLabelValues("suggest_gas_price").Inc()
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	return price, nil
}

// SuggestGasTipCap fetches the suggested EIP-1559 priority fee.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if c.eth == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	tip, err := c.eth.SuggestGasTipCap(ctx)
	RPCCallDuration.WithLabelValues("suggest_gas_tip_cap").Observe(time.Since(start).Seconds())

	if err != nil {
		RPCErrorsTotal.WithLabelValues("suggest_gas_tip_cap").Inc()
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}

	return tip, nil
}

// BaseFee reads the latest block's base fee. Returns nil on chains
// without EIP-1559.
func (c *Client) BaseFee(ctx context.Context) (*big.Int, error) {
	if c.eth == nil {
		return nil, ErrNotConnected
	}

	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		RPCErrorsTotal.WithLabelValues("header_by_number").Inc()
		return nil, fmt.Errorf("latest header: %w", err)
	}

	return header.BaseFee, nil
}

// PendingNonceAt reads the authoritative pending nonce for an account.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if c.eth == nil {
		return 0, ErrNotConnected
	}

	start := time.Now()
	nonce, err := c.eth.PendingNonceAt(ctx, account)
	RPCCallDuration.WithLabelValues("pending_nonce_at").Observe(time.Since(start).Seconds())

	if err != nil {
		RPCErrorsTotal.WithLabelValues("pending_nonce_at").Inc()
		return 0, fmt.Errorf("pending nonce: %w", err)
	}

	return nonce, nil
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *coretypes.Transaction) error {
	if c.eth == nil {
		return ErrNotConnected
	}

	start := time.Now()
	err := c.eth.SendTransaction(ctx, tx)
	RPCCallDuration.WithLabelValues("send_transaction").Observe(time.Since(start).Seconds())

	if err != nil {
		RPCErrorsTotal.WithLabelValues("send_transaction").Inc()
		return fmt.Errorf("send transaction: %w", err)
	}

	TransactionsSentTotal.Inc()
	c.logger.Debug("transaction-broadcast",
		zap.String("tx-hash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()))

	return nil
}

// TransactionReceipt fetches the receipt for a transaction hash.
// Returns ethereum.NotFound (wrapped) while the transaction is pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	if c.eth == nil {
		return nil, ErrNotConnected
	}

	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("transaction receipt: %w", err)
	}

	return receipt, nil
}

// CallContract executes a read-only call. The executor replays
// reverted transactions through it to recover the revert reason; the
// raw node error is kept in the chain so callers can unpack its data.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if c.eth == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	out, err := c.eth.CallContract(ctx, msg, blockNumber)
	RPCCallDuration.WithLabelValues("call_contract").Observe(time.Since(start).Seconds())

	if err != nil {
		RPCErrorsTotal.WithLabelValues("call_contract").Inc()
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return out, nil
}

// BalanceAt reads the native-token balance of an account.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if c.eth == nil {
		return nil, ErrNotConnected
	}

	balance, err := c.eth.BalanceAt(ctx, account, nil)
	if err != nil {
		RPCErrorsTotal.WithLabelValues("balance_at").Inc()
		return nil, fmt.Errorf("balance at: %w", err)
	}

	return balance, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
		c.logger.Info("chain-client-closed")
	}
}
