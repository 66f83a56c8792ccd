package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionRequest is a fully built, nonce-stamped, gas-priced payload
// ready for signing and submission.
type TransactionRequest struct {
	OpportunityID string
	To            common.Address // flash-loan entry contract
	Calldata      []byte
	Nonce         uint64
	GasLimit      uint64
	GasPrice      *big.Int // wei per gas
	GasTipCap     *big.Int // EIP-1559 priority fee, nil for legacy pricing
	Value         *big.Int
	Source        FlashLoanSource
	NetProfit     float64 // USD, after gas and flash-loan premium
	Deadline      time.Time
}

// TransactionResult is the on-chain outcome of a submitted request.
type TransactionResult struct {
	Success      bool
	TxHash       common.Hash
	GasUsed      uint64
	RevertReason string
	ConfirmedAt  time.Time
}
