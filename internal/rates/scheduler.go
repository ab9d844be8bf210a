package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taxledger/internal/log"
)

// Refresher is the part of Service the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) (Result, error)
}

// Scheduler refreshes rates on a fixed interval in the background.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(refresher Refresher, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		logger:    logger.WithComponent(log.ComponentRates),
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("rate refresh interval must be positive, got %v", s.interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("rate scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Rate scheduler started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for it, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.InfoContext(ctx, "Rate scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Rate scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.refresher.Refresh(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Scheduled rate refresh failed", log.FieldError, err)
			}
		}
	}
}
