// internal/app/system/workers/orphansweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Sweeper removes membership rows whose group is gone.
type Sweeper interface {
	SweepOrphans(ctx context.Context) (int64, error)
}

// OrphanSweep periodically runs a Sweeper in the background. Join-request
// decisions repair orphans inline; the sweep catches the rest.
type OrphanSweep struct {
	sweeper  Sweeper
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOrphanSweep creates a sweep worker that runs every interval.
func NewOrphanSweep(sweeper Sweeper, logger *zap.Logger, interval time.Duration) *OrphanSweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrphanSweep{
		sweeper:  sweeper,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *OrphanSweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("orphan sweep worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *OrphanSweep) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("orphan sweep worker stopped")
	})
}

func (w *OrphanSweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single sweep and returns the rows removed.
func (w *OrphanSweep) RunOnce() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	defer cancel()

	n, err := w.sweeper.SweepOrphans(ctx)
	if err != nil {
		w.log.Error("orphan sweep failed", zap.Int64("removed", n), zap.Error(err))
		return n
	}
	if n > 0 {
		w.log.Info("removed orphan memberships", zap.Int64("count", n))
	}
	return n
}
