package shutdown

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker tracks in-flight work (requests, jobs, etc.) to ensure
// graceful shutdown waits for work to complete
type InFlightTracker struct {
	wg         sync.WaitGroup
	shutdownCh chan struct{}
	logger     *zap.Logger
	name       string
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		shutdownCh: make(chan struct{}),
		logger:     logger,
		name:       name,
	}
}

// Add increments the in-flight work counter
// Returns false if shutdown has been initiated (don't start new work)
func (ift *InFlightTracker) Add() bool {
	select {
	case <-ift.shutdownCh:
		// Shutdown initiated - don't accept new work
		return false
	default:
		ift.wg.Add(1)
		return true
	}
}

// Done decrements the in-flight work counter
// Call this when work is complete (typically via defer)
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// Shutdown initiates shutdown and waits for all in-flight work to complete
// Returns error if context times out before all work completes
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	// Signal that we're shutting down (reject new work)
	close(ift.shutdownCh)

	ift.logger.Info("Waiting for in-flight work to complete",
		zap.String("tracker", ift.name),
	)

	// Wait for all in-flight work with timeout
	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ift.logger.Info("All in-flight work completed",
			zap.String("tracker", ift.name),
		)
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Shutdown timeout - some work may be incomplete",
			zap.String("tracker", ift.name),
		)
		return ctx.Err()
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (ift *InFlightTracker) IsShuttingDown() bool {
	select {
	case <-ift.shutdownCh:
		return true
	default:
		return false
	}
}
