package storage

import (
	"context"

	"github.com/axionmev/flasharb/internal/pipeline"
)

// Storage archives terminal execution contexts.
type Storage interface {
	// SaveExecution persists one finished execution.
	SaveExecution(ctx context.Context, ectx *pipeline.Context) error

	// Close closes the storage connection.
	Close() error
}
