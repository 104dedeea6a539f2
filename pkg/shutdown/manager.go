package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc shuts down one component. It must respect ctx: the manager
// shares one deadline across the whole sequence.
type ShutdownFunc func(context.Context) error

type component struct {
	name string
	fn   ShutdownFunc
}

// Manager coordinates graceful shutdown. Components stop strictly in
// REVERSE registration order, one at a time: the HTTP server must stop
// accepting settlement triggers and the scheduler must stop firing before
// the engine drains, and the engine must be drained before the broker
// connection and database pool close underneath it.
type Manager struct {
	logger     *zap.Logger
	components []component
	mu         sync.Mutex
	timeout    time.Duration
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a shutdown function. Register dependencies first: the last
// component registered is the first one stopped.
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.components = append(sm.components, component{name: name, fn: fn})

	sm.logger.Debug("Registered shutdown component",
		zap.String("component", name),
		zap.Int("registration_order", len(sm.components)),
	)
}

// RegisterHTTPServer registers an HTTP server's Shutdown method.
func (sm *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	sm.Register(name, server.Shutdown)
}

// RegisterNoErr registers a shutdown function with no error return, such as
// a broker connection close.
func (sm *Manager) RegisterNoErr(name string, fn func()) {
	sm.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs Shutdown.
func (sm *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	sm.logger.Info("Received shutdown signal",
		zap.String("signal", sig.String()),
		zap.Duration("timeout", sm.timeout),
	)

	sm.Shutdown()
}

// Shutdown stops every registered component in reverse registration order.
// The timeout covers the whole sequence; once it expires the remaining
// components still get called, with an already-cancelled context.
func (sm *Manager) Shutdown() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	components := make([]component, len(sm.components))
	copy(components, sm.components)
	sm.mu.Unlock()

	sm.logger.Info("Starting graceful shutdown",
		zap.Int("component_count", len(components)),
		zap.Duration("timeout", sm.timeout),
	)

	failed := 0
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		compStart := time.Now()

		sm.logger.Info("Shutting down component", zap.String("component", comp.name))

		if err := comp.fn(ctx); err != nil {
			failed++
			shutdownErrors.WithLabelValues(comp.name).Inc()
			sm.logger.Error("Component shutdown failed",
				zap.String("component", comp.name),
				zap.Error(err),
				zap.Duration("elapsed", time.Since(compStart)),
			)
			continue
		}

		sm.logger.Info("Component shut down",
			zap.String("component", comp.name),
			zap.Duration("elapsed", time.Since(compStart)),
		)
	}

	elapsed := time.Since(start)
	shutdownDuration.Observe(elapsed.Seconds())

	if failed > 0 {
		sm.logger.Error("Graceful shutdown completed with errors",
			zap.Int("error_count", failed),
			zap.Duration("elapsed", elapsed),
		)
		return
	}
	sm.logger.Info("Graceful shutdown completed",
		zap.Duration("elapsed", elapsed),
	)
}
