// Package reconciler periodically recomputes every tenant's usage
// aggregate from the entry store and overwrites the stored stats,
// correcting the drift accumulated by the approximate counters.
package reconciler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/internal/storage"
)

// Reconciler is the background stats reconciliation loop.
type Reconciler struct {
	storage  storage.Storage
	stats    storage.StatsStorage
	interval time.Duration
	logger   *zap.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Reconciler instance.
func New(store storage.Storage, stats storage.StatsStorage, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		storage:  store,
		stats:    stats,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the loop. Starting a running reconciler is a no-op.
func (r *Reconciler) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop cancels the loop's scheduling and waits for the pass in flight
// to finish. A pass already iterating tenants completes its current
// tenant before exiting, so no per-tenant update is left half-applied.
func (r *Reconciler) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.ReconcileAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ReconcileAll runs a single pass over every known tenant. A failure
// for one tenant is logged and does not stop the pass.
func (r *Reconciler) ReconcileAll(ctx context.Context) {
	r.logger.Info("updating stats")
	tenants, err := r.stats.ListTenants(ctx)
	if err != nil {
		r.logger.Error("failed to list tenants", zap.Error(err))
		return
	}
	for _, tenantID := range tenants {
		select {
		case <-ctx.Done():
			r.logger.Info("stats update interrupted")
			return
		default:
		}
		if err := r.reconcileTenant(ctx, tenantID); err != nil {
			r.logger.Error("failed to update tenant stats",
				zap.String("tenantId", tenantID),
				zap.Error(err),
			)
		}
	}
	r.logger.Info("stats updated", zap.Int("tenants", len(tenants)))
}

func (r *Reconciler) reconcileTenant(ctx context.Context, tenantID string) error {
	usage, err := r.storage.Usage(ctx, tenantID, "")
	if err != nil {
		return err
	}
	return r.stats.Overwrite(ctx, tenantID, usage.Count, usage.Size)
}
