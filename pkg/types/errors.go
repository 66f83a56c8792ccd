package types

import "fmt"

// ErrorCode classifies an execution failure. The recovery engine's
// strategy table is keyed on these codes, so classification must be
// deterministic: one code per failure signature.
type ErrorCode string

const (
	// Validation failures. Produced before any chain interaction and
	// never retried automatically.
	ErrCodeInvalidPath        ErrorCode = "invalid_path"
	ErrCodeProfitBelowMin     ErrorCode = "profit_below_minimum"
	ErrCodeGasCostTooHigh     ErrorCode = "gas_cost_too_high"
	ErrCodeNoFlashLoanSource  ErrorCode = "no_flash_loan_source"
	ErrCodeCircuitBreakerOpen ErrorCode = "circuit_breaker_tripped"
	ErrCodePositionTooLarge   ErrorCode = "position_too_large"
	ErrCodeCapacityExhausted  ErrorCode = "capacity_exhausted"
	ErrCodeHealthCritical     ErrorCode = "health_critical"

	// Execution failures. Classified into a recovery strategy.
	ErrCodeRPCTimeout       ErrorCode = "rpc_timeout"
	ErrCodeRPCUnreachable   ErrorCode = "rpc_unreachable"
	ErrCodeNonceTooLow      ErrorCode = "nonce_too_low"
	ErrCodeNonceConflict    ErrorCode = "nonce_conflict"
	ErrCodeUnderpriced      ErrorCode = "transaction_underpriced"
	ErrCodeGasSpike         ErrorCode = "gas_price_spike"
	ErrCodeCongestion       ErrorCode = "network_congestion"
	ErrCodeReverted         ErrorCode = "execution_reverted"
	ErrCodeOutOfGas         ErrorCode = "out_of_gas"
	ErrCodeSlippageExceeded ErrorCode = "slippage_exceeded"
	ErrCodeConfirmTimeout   ErrorCode = "confirmation_timeout"
	ErrCodeTimeout          ErrorCode = "timeout"
	ErrCodeUnknown          ErrorCode = "unknown"
)

// ExecutionError is a classified failure from any pipeline stage.
// Errors are data, not control flow: the recovery table operates on the
// Code, and every error is archived in the execution context history.
type ExecutionError struct {
	Code      ErrorCode
	Stage     string // pipeline stage name at time of failure
	Message   string
	Broadcast bool // whether the transaction reached the network
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Code, e.Stage, e.Message, e.Err)
	}

	return fmt.Sprintf("%s at %s: %s", e.Code, e.Stage, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError builds a classified error for a pipeline stage.
func NewExecutionError(code ErrorCode, stage, message string, err error) *ExecutionError {
	return &ExecutionError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// IsValidationCode reports whether the code belongs to the validation
// class (rejected before chain interaction, never auto-retried).
func IsValidationCode(code ErrorCode) bool {
	switch code {
	case ErrCodeInvalidPath, ErrCodeProfitBelowMin, ErrCodeGasCostTooHigh,
		ErrCodeNoFlashLoanSource, ErrCodeCircuitBreakerOpen,
		ErrCodePositionTooLarge, ErrCodeCapacityExhausted, ErrCodeHealthCritical:
		return true
	}

	return false
}
