package httpserver

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/types"
)

// Ingress accepts opportunities for execution.
type Ingress interface {
	ProcessOpportunity(opp *types.Opportunity) error
}

// OpportunityHandler accepts detector output over HTTP. Detection
// itself lives outside the engine; this is its injection point.
type OpportunityHandler struct {
	ingress Ingress
	logger  *zap.Logger
}

// NewOpportunityHandler creates a new opportunity ingress handler.
func NewOpportunityHandler(ingress Ingress, logger *zap.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		ingress: ingress,
		logger:  logger,
	}
}

// SwapStepRequest is one hop of a submitted path. Amounts are decimal
// strings in token base units.
type SwapStepRequest struct {
	Pool     string `json:"pool"`
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
	FeeTier  uint32 `json:"fee_tier,omitempty"`
	DEXKind  string `json:"dex_kind"`
	AmountIn string `json:"amount_in"`
	MinOut   string `json:"min_out"`
}

// OpportunityRequest is the HTTP body for POST /api/opportunities.
type OpportunityRequest struct {
	Steps                  []SwapStepRequest `json:"steps"`
	BorrowToken            string            `json:"borrow_token"`
	BorrowAmount           string            `json:"borrow_amount"`
	MinFinalAmount         string            `json:"min_final_amount"`
	ExpectedGrossProfitUSD float64           `json:"expected_gross_profit_usd"`
	BorrowNotionalUSD      float64           `json:"borrow_notional_usd"`
	Block                  uint64            `json:"block"`
}

// OpportunityResponse acknowledges an admitted opportunity.
type OpportunityResponse struct {
	ID string `json:"id"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HandleSubmit handles POST /api/opportunities requests.
func (h *OpportunityHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req OpportunityRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.writeError(w, "invalid request body: "+err.Error(), "", http.StatusBadRequest)
		return
	}

	opp, err := req.ToOpportunity()
	if err != nil {
		h.writeError(w, err.Error(), string(types.ErrCodeInvalidPath), http.StatusBadRequest)
		return
	}

	err = h.ingress.ProcessOpportunity(opp)
	if err != nil {
		var execErr *types.ExecutionError
		if errors.As(err, &execErr) {
			h.writeError(w, execErr.Message, string(execErr.Code), http.StatusConflict)
			return
		}

		h.writeError(w, err.Error(), "", http.StatusInternalServerError)
		return
	}

	h.logger.Info("opportunity-admitted-via-http",
		zap.String("opportunity-id", opp.ID),
		zap.Int("hops", opp.Path.HopCount()))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	err = json.NewEncoder(w).Encode(OpportunityResponse{ID: opp.ID})
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// ToOpportunity validates the request and builds the engine-side
// opportunity. Shared with the simulate command.
func (r *OpportunityRequest) ToOpportunity() (*types.Opportunity, error) {
	borrowToken, err := parseAddress(r.BorrowToken, "borrow_token")
	if err != nil {
		return nil, err
	}

	borrowAmount, err := parseAmount(r.BorrowAmount, "borrow_amount")
	if err != nil {
		return nil, err
	}

	minFinal, err := parseAmount(r.MinFinalAmount, "min_final_amount")
	if err != nil {
		return nil, err
	}

	steps := make([]types.SwapStep, 0, len(r.Steps))
	for i, hop := range r.Steps {
		step, err := hop.toStep()
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		steps = append(steps, step)
	}

	path := &types.ArbitragePath{
		Steps:          steps,
		BorrowToken:    borrowToken,
		BorrowAmount:   borrowAmount,
		MinFinalAmount: minFinal,
	}

	return types.NewOpportunity(path, r.ExpectedGrossProfitUSD, r.BorrowNotionalUSD, r.Block)
}

func (s *SwapStepRequest) toStep() (types.SwapStep, error) {
	pool, err := parseAddress(s.Pool, "pool")
	if err != nil {
		return types.SwapStep{}, err
	}

	tokenIn, err := parseAddress(s.TokenIn, "token_in")
	if err != nil {
		return types.SwapStep{}, err
	}

	tokenOut, err := parseAddress(s.TokenOut, "token_out")
	if err != nil {
		return types.SwapStep{}, err
	}

	amountIn, err := parseAmount(s.AmountIn, "amount_in")
	if err != nil {
		return types.SwapStep{}, err
	}

	minOut, err := parseAmount(s.MinOut, "min_out")
	if err != nil {
		return types.SwapStep{}, err
	}

	return types.SwapStep{
		Pool:     pool,
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		FeeTier:  s.FeeTier,
		DEXKind:  types.DEXKind(s.DEXKind),
		AmountIn: amountIn,
		MinOut:   minOut,
	}, nil
}

func parseAddress(raw, field string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}

	return common.HexToAddress(raw), nil
}

func parseAmount(raw, field string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}

	return amount, nil
}

func (h *OpportunityHandler) writeError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
