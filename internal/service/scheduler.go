package service

import (
	"context"
	"sync"
	"time"

	"github.com/folio-cms/folio/internal/pkg/logger"
)

// Scheduler runs the retention sweeper on a fixed interval inside the server.
type Scheduler struct {
	sweeper    *RetentionSweeper
	interval   time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

func NewScheduler(sweeper *RetentionSweeper, interval time.Duration) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	logger.Info("sweep scheduler started", "module", "scheduler", "action", "sweep", "interval_ms", s.interval.Milliseconds())
}

// Stop cancels a running sweep and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	logger.Info("sweep scheduler stopped", "module", "scheduler", "action", "sweep")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)

	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancelFunc = nil
		s.mu.Unlock()
	}()

	// failures are logged by the sweeper; the next tick retries
	_, _ = s.sweeper.Sweep(ctx)
}
