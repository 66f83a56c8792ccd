package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Opportunity is the detector's output and the engine's read-only input.
// The engine re-validates profitability independently; the detector's
// gross profit estimate is a starting point, never trusted blindly.
type Opportunity struct {
	ID                  string
	Path                *ArbitragePath
	ExpectedGrossProfit float64 // USD
	BorrowNotionalUSD   float64 // USD value of the borrow principal
	DiscoveredAtBlock   uint64
	DetectedAt          time.Time
}

// NewOpportunity builds an opportunity around a path. The path must
// already satisfy its structural invariants.
func NewOpportunity(path *ArbitragePath, expectedGrossProfit, borrowNotionalUSD float64, block uint64) (*Opportunity, error) {
	if path == nil {
		return nil, fmt.Errorf("path cannot be nil")
	}
	if borrowNotionalUSD < 0 {
		return nil, fmt.Errorf("borrow notional cannot be negative")
	}

	err := path.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate path: %w", err)
	}

	return &Opportunity{
		ID:                  uuid.New().String(),
		Path:                path,
		ExpectedGrossProfit: expectedGrossProfit,
		BorrowNotionalUSD:   borrowNotionalUSD,
		DiscoveredAtBlock:   block,
		DetectedAt:          time.Now(),
	}, nil
}

// String returns a human-readable summary of the opportunity.
func (o *Opportunity) String() string {
	return fmt.Sprintf(
		"Opportunity[%s] hops=%d borrow=%s gross=$%.2f block=%d",
		o.ID[:8],
		o.Path.HopCount(),
		o.Path.BorrowAmount.String(),
		o.ExpectedGrossProfit,
		o.DiscoveredAtBlock,
	)
}
