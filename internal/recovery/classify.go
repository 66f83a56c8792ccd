package recovery

import (
	"context"
	"errors"
	"strings"

	"github.com/axionmev/flasharb/pkg/types"
)

// signaturePatterns maps node error substrings to codes. Geth and most
// forks keep these strings stable across versions; order matters where
// signatures overlap.
var signaturePatterns = []struct {
	substr string
	code   types.ErrorCode
}{
	{"nonce too low", types.ErrCodeNonceTooLow},
	{"already known", types.ErrCodeNonceConflict},
	{"replacement transaction underpriced", types.ErrCodeUnderpriced},
	{"transaction underpriced", types.ErrCodeUnderpriced},
	{"max fee per gas less than block base fee", types.ErrCodeUnderpriced},
	{"insufficient funds for gas", types.ErrCodeGasCostTooHigh},
	{"out of gas", types.ErrCodeOutOfGas},
	{"execution reverted", types.ErrCodeReverted},
	{"connection refused", types.ErrCodeRPCUnreachable},
	{"no such host", types.ErrCodeRPCUnreachable},
	{"txpool is full", types.ErrCodeCongestion},
}

// revertReasonCodes refines a revert into a more specific code when the
// executor contract surfaces a reason string.
var revertReasonCodes = []struct {
	substr string
	code   types.ErrorCode
}{
	{"insufficient output", types.ErrCodeSlippageExceeded},
	{"slippage", types.ErrCodeSlippageExceeded},
	{"too little received", types.ErrCodeSlippageExceeded},
}

// ClassifyError wraps a raw node error in a classified ExecutionError
// for the given stage. Already-classified errors pass through
// unchanged.
func ClassifyError(err error, stage string) *types.ExecutionError {
	if err == nil {
		return nil
	}

	var execErr *types.ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}

	code := types.ErrCodeUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = types.ErrCodeRPCTimeout
	case errors.Is(err, context.Canceled):
		code = types.ErrCodeTimeout
	default:
		msg := strings.ToLower(err.Error())
		for _, p := range signaturePatterns {
			if strings.Contains(msg, p.substr) {
				code = p.code

				break
			}
		}
	}

	return types.NewExecutionError(code, stage, err.Error(), err)
}

// ClassifyRevert maps an on-chain revert reason to a code. An empty or
// unrecognized reason stays a plain revert.
func ClassifyRevert(reason string) types.ErrorCode {
	lowered := strings.ToLower(reason)
	for _, p := range revertReasonCodes {
		if strings.Contains(lowered, p.substr) {
			return p.code
		}
	}

	return types.ErrCodeReverted
}
