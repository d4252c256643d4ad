package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically purges expired conversations from the store. It
// implements the worker.Worker contract.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper that runs on the given interval
func NewSweeper(store *Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the worker name
func (s *Sweeper) Name() string {
	return "session-sweeper"
}

// Start launches the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Session sweeper started", zap.Duration("interval", s.interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.store.Sweep()
			}
		}
	}()

	return nil
}

// Stop stops the sweep loop and waits for it to exit
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}
