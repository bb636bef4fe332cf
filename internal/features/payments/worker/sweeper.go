package worker

import (
	"context"
	"time"

	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/payments/ports"

	"go.uber.org/zap"
)

// Sweeper periodically retries parked payment events.
type Sweeper struct {
	svc      ports.Reconciler
	interval time.Duration
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(svc ports.Reconciler, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	log := logger.Named("sweeper")
	log.Info("Sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Sweeper is done")
			return
		case <-ticker.C:
			if _, err := s.svc.Sweep(ctx); err != nil && ctx.Err() == nil {
				log.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

// Start runs the sweeper in the background. The returned stop cancels it and
// blocks until any sweep in progress has returned.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	return func() {
		cancel()
		<-done
	}
}
