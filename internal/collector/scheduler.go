package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs collections at a fixed interval
type Scheduler struct {
	collector  *Collector
	interval   time.Duration
	runOnStart bool
	logger     zerolog.Logger
	stopChan   chan struct{}
	done       chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScheduler creates a new collection scheduler
func NewScheduler(collector *Collector, interval time.Duration, runOnStart bool, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		collector:  collector,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.With().Str("component", "collect-scheduler").Logger(),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the scheduler. Calls after the first, or after Stop, are no-ops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
	s.logger.Info().
		Dur("interval", s.interval).
		Bool("run_on_start", s.runOnStart).
		Msg("Collection scheduler started")
}

// Stop stops the scheduler and waits for a running collection to finish.
// It is safe to call more than once and without a prior Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	close(s.stopChan)
	if started {
		<-s.done
	}
	s.logger.Info().Msg("Collection scheduler stopped")
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.runOnStart {
		s.collect(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.collect(ctx)
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) collect(ctx context.Context) {
	// Errors are recorded as health events by the collector.
	if _, err := s.collector.Collect(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Scheduled collection failed")
	}
}
