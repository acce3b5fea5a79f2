// Package scheduler emits candidate time segments on a cron cadence.
//
// A Scheduler holds a single one-shot timer. Each time it fires, every
// cron point that has passed since the last firing produces its own
// segment spanning [previous point, point), so intervals missed while the
// process was asleep are emitted one by one instead of being collapsed.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/timerange"
)

// MinDelay is the shortest delay the timer is ever armed with.
const MinDelay = time.Second

// Handler receives segments in chronological order.
type Handler func(seg entry.ScheduledSegment)

// Scheduler arms a timer for the next fire time of a cron expression.
type Scheduler struct {
	mu       sync.Mutex
	expr     string
	schedule cron.Schedule
	clock    Clock
	logger   *slog.Logger

	timer Timer
	next  time.Time // zero when idle
	gen   uint64    // bumped on disarm so stale timer callbacks are ignored

	// anchor is the last cron point already emitted, or the time the
	// current schedule started. Stop keeps it so a later Start catches up
	// on the points crossed while stopped.
	anchor time.Time

	handlers []Handler
	changed  []func(expr string)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock (tests).
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Parse parses a standard 5-field cron expression.
func Parse(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, apperr.Validation("scheduler.parse", "invalid cron expression %q: %v", expr, err)
	}
	return sched, nil
}

// ValidateExpression reports whether expr is a usable cron expression.
func ValidateExpression(expr string) error {
	_, err := Parse(expr)
	return err
}

// New builds an idle scheduler. An invalid expression fails here rather
// than at the first scheduling attempt.
func New(expr string, opts ...Option) (*Scheduler, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		expr:     expr,
		schedule: sched,
		clock:    SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OnSegment registers a handler for emitted segments.
func (s *Scheduler) OnSegment(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// OnScheduleChanged registers a callback run after UpdateExpression swaps
// the expression.
func (s *Scheduler) OnScheduleChanged(f func(expr string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = append(s.changed, f)
}

// Start arms the timer for the first cron point after the anchor: now on
// the first start, or the last emitted point when resuming after Stop. Points
// crossed while stopped fire right away, one segment each. It is a no-op if
// the scheduler is already armed.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		return
	}
	s.logger.Info("Prompt scheduler starting", "event", "scheduler_start", "cron", s.expr)
	if s.anchor.IsZero() {
		s.anchor = s.clock.Now()
	}
	s.next = s.schedule.Next(s.anchor)
	s.arm()
}

// Stop disarms the timer and forgets the pending fire time. Segments
// already emitted are unaffected, and the anchor is kept for the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.logger.Info("Prompt scheduler stopping", "event", "scheduler_stop")
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.next = time.Time{}
}

// Run starts the scheduler and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// UpdateExpression switches to a new cron expression. The next fire time is
// recomputed from now; intervals of the old schedule that have not fired
// yet are dropped, including those a resumed Start would have caught up on.
// An unchanged expression is a no-op.
func (s *Scheduler) UpdateExpression(expr string) error {
	s.mu.Lock()
	if expr == s.expr {
		s.mu.Unlock()
		return nil
	}
	sched, err := Parse(expr)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.logger.Info("Updating scheduler cron",
		"event", "scheduler_cron_update", "old_cron", s.expr, "new_cron", expr)
	s.expr = expr
	s.schedule = sched
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.gen++
		s.anchor = s.clock.Now()
		s.next = s.schedule.Next(s.anchor)
		s.arm()
	} else {
		s.anchor = time.Time{}
		s.next = time.Time{}
	}
	listeners := append([]func(string){}, s.changed...)
	s.mu.Unlock()

	for _, f := range listeners {
		f(expr)
	}
	return nil
}

// NextFire returns the armed fire time. ok is false when idle.
func (s *Scheduler) NextFire() (t time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, !s.next.IsZero()
}

// Expression returns the current cron expression.
func (s *Scheduler) Expression() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expr
}

// arm must be called with mu held and s.next set.
func (s *Scheduler) arm() {
	delay := s.next.Sub(s.clock.Now())
	if delay < MinDelay {
		delay = MinDelay
	}
	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
	s.logger.Debug("Scheduler next fire",
		"event", "scheduler_next_fire", "fire_at", s.next.Format(time.RFC3339), "delay", delay)
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.next.IsZero() {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	now := s.clock.Now()
	var due []entry.ScheduledSegment
	for !s.next.After(now) {
		seg := entry.NewSegment(timerange.Range{Start: previous(s.schedule, s.next), End: s.next})
		due = append(due, seg)
		s.logger.Info("Scheduled segment ready",
			"event", "segment_ready",
			"segment_id", seg.ID,
			"start", seg.Start.Format(time.RFC3339),
			"end", seg.End.Format(time.RFC3339),
			"minutes", seg.Minutes)
		s.anchor = s.next
		s.next = s.schedule.Next(s.next)
	}
	if len(due) == 0 {
		s.logger.Debug("Timer fired but no due segments; rescheduling", "event", "scheduler_reschedule_no_due")
	}
	s.arm()
	handlers := append([]Handler{}, s.handlers...)
	s.mu.Unlock()

	for _, seg := range due {
		for _, h := range handlers {
			h(seg)
		}
	}
}

// lookbacks are the windows searched for the cron point preceding a fire
// time, from cheapest to widest.
var lookbacks = []time.Duration{
	time.Hour,
	24 * time.Hour,
	32 * 24 * time.Hour,
	367 * 24 * time.Hour,
	5 * 367 * 24 * time.Hour,
}

// previous returns the latest point of sched strictly before t.
func previous(sched cron.Schedule, t time.Time) time.Time {
	for _, back := range lookbacks {
		cursor := sched.Next(t.Add(-back))
		if cursor.IsZero() || !cursor.Before(t) {
			continue
		}
		for {
			n := sched.Next(cursor)
			if n.IsZero() || !n.Before(t) {
				return cursor
			}
			cursor = n
		}
	}
	return t.Add(-time.Minute)
}
