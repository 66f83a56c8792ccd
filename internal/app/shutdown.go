package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. In-flight executions
// are drained, never aborted mid-pipeline.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop the HTTP ingress first so no new work arrives
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Close the admission gate and wait for in-flight executions
	a.orchestrator.Stop()

	// Stop periodic health checks and balance polling
	a.monitor.Close()
	a.walletTracker.Close()

	// Close the event stream
	a.bus.Close()

	err = a.storage.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.chainClient.Close()
	a.quoteCache.Close()

	// Cancel context and wait for remaining goroutines
	a.cancel()
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
