package currency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// minLead is how far in the future the next update must be. It keeps a
// restart at an update hour from firing the same slot twice.
const minLead = 30 * time.Minute

// Refresher runs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Scheduler fires the currency refresh at the configured wall-clock hours.
// Update hours at 00:00, 06:00, 12:00 and 18:00 Europe/Riga by default.
type Scheduler struct {
	hours   []int
	loc     *time.Location
	service Refresher
	lg      zerolog.Logger

	now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(hours []int, loc *time.Location, service Refresher, lg zerolog.Logger) *Scheduler {
	return &Scheduler{
		hours:   hours,
		loc:     loc,
		service: service,
		lg:      lg.With().Str("component", "currency_scheduler").Logger(),
		now:     time.Now,
	}
}

// NextFire returns the first instant whose local hour is one of hours and
// which lies strictly more than 30 minutes past now. Scanning three days
// always yields a candidate, even right before a lone midnight slot.
func NextFire(now time.Time, hours []int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Time{}
	for day := 0; day < 3; day++ {
		for _, h := range hours {
			candidate := time.Date(local.Year(), local.Month(), local.Day()+day, h, 0, 0, 0, loc)
			if candidate.Sub(now) <= minLead {
				continue
			}
			if next.IsZero() || candidate.Before(next) {
				next = candidate
			}
		}
		if !next.IsZero() {
			return next
		}
	}
	return next
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if len(s.hours) == 0 {
		return fmt.Errorf("scheduler has no update hours")
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx)
	return nil
}

// Stop interrupts a pending sleep and waits for the loop to exit. A refresh
// already in flight finishes first.
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
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		close(s.doneCh)
		s.mu.Unlock()
		s.lg.Info().Msg("scheduler stopped")
	}()

	for {
		if ctx.Err() != nil || !s.isRunning() {
			return
		}

		next := NextFire(s.now(), s.hours, s.loc)
		s.lg.Info().Time("next_update", next).Msg("currency update scheduled")

		if !s.sleepUntil(ctx, next) {
			return
		}
		s.runCycle(ctx)
	}
}

// runCycle shields the loop from a panicking refresh, the loop must survive
// any single bad cycle.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.lg.Error().Interface("panic", r).Msg("currency refresh panicked")
		}
	}()
	s.service.Refresh(ctx)
}

func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil && s.isRunning()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	case <-timer.C:
		return true
	}
}
