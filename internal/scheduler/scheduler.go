// Package scheduler drives the detection pipeline on a fixed interval,
// with a shortened retry delay after failed cycles.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridwatch/sentinel/internal/config"
	"github.com/gridwatch/sentinel/internal/notify"
	"github.com/gridwatch/sentinel/internal/pipeline"
)

// State is the scheduler lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Scheduler runs pipeline cycles until stopped. The first cycle fires
// immediately on start; later cycles follow the configured interval, or
// the fallback delay after a failed cycle.
type Scheduler struct {
	pipeline *pipeline.Pipeline
	cfg      config.ProcessingConfig
	bus      *notify.Bus

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a stopped Scheduler.
func New(p *pipeline.Pipeline, cfg config.ProcessingConfig, bus *notify.Bus) *Scheduler {
	return &Scheduler{
		pipeline: p,
		cfg:      cfg,
		bus:      bus,
		state:    StateStopped,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the cycle loop. Starting a scheduler that is not stopped
// is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return eris.Errorf("scheduler: cannot start while %s", s.state)
	}
	s.state = StateRunning
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	zap.L().Info("scheduler: starting",
		zap.Duration("interval", s.cfg.BatchInterval()),
		zap.Duration("fallback_delay", s.cfg.FallbackDelay()),
	)
	go s.loop(ctx, s.stopCh, s.done)
	return nil
}

// Stop requests shutdown and blocks until the in-flight cycle, if any,
// has finished. Stopping an already stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return
	case StateStopping:
		done := s.done
		s.mu.Unlock()
		<-done
		return
	}
	s.state = StateStopping
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		if s.bus != nil {
			s.bus.Publish(notify.NewEvent(notify.EventStopped, 0, 0))
		}
		zap.L().Info("scheduler: stopped")
		close(done)
	}()

	interval := s.cfg.BatchInterval()
	fallback := s.cfg.FallbackDelay()

	timer := time.NewTimer(0) // first cycle fires immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-timer.C:
		}

		if _, err := s.pipeline.Cycle(ctx); err != nil {
			zap.L().Error("scheduler: cycle failed, retrying after fallback delay",
				zap.Duration("delay", fallback),
				zap.Error(err),
			)
			timer.Reset(fallback)
			continue
		}
		timer.Reset(interval)
	}
}
