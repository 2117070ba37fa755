package calls

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs the resolution engine on a fixed interval in the background.
// The HTTP resolve endpoint stays available as a manual trigger; concurrent
// ticks are safe because the store serializes commits, but the scheduler
// never overlaps its own ticks.
type Scheduler struct {
	resolver *Resolver
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a background tick scheduler
func NewScheduler(resolver *Resolver, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		resolver: resolver,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the tick loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("resolution scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{}) // reinitialize for restart capability
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.interval).Msg("starting resolution scheduler")

	s.wg.Add(1)
	go s.runLoop()

	return nil
}

// Stop stops the tick loop and waits for an in-flight tick to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("resolution scheduler stopped")
}

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			_, err := s.resolver.ResolveTick(ctx)
			cancel()
			if err != nil {
				s.logger.Error().Err(err).Msg("scheduled resolution tick failed")
			}
		}
	}
}
