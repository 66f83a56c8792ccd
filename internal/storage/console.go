package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/pipeline"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// SaveExecution pretty-prints a finished execution to console.
func (c *ConsoleStorage) SaveExecution(ctx context.Context, ectx *pipeline.Context) error {
	opp := ectx.Opportunity

	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("EXECUTION %s\n", ectx.State)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:        %s\n", opp.ID[:8])
	fmt.Printf("Path:      %d hops, borrow %s of %s\n",
		opp.Path.HopCount(), opp.Path.BorrowAmount.String(), opp.Path.BorrowToken.Hex())
	fmt.Printf("Attempts:  %d (%d gas bumps)\n", ectx.Attempts, ectx.GasBumps)
	fmt.Printf("Duration:  %s\n", ectx.Duration())

	if ectx.Request != nil {
		fmt.Printf("Source:    %s\n", ectx.Request.Source)
		fmt.Printf("Net:       $%.2f forecast\n", ectx.Request.NetProfit)
	}
	if ectx.Result != nil {
		fmt.Printf("Tx:        %s\n", ectx.Result.TxHash.Hex())
		fmt.Printf("Gas used:  %d\n", ectx.Result.GasUsed)
	}
	if last := ectx.LastError(); last != nil {
		fmt.Printf("Error:     %s\n", last.Code)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
