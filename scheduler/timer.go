package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Timer is a periodic task created by Schedule. The callback runs on a
// worker of the target context; the next firing is armed only after the
// callback returns, so firings of one Timer never overlap.
type Timer struct {
	s      *Scheduler
	period time.Duration
	fn     func() bool
	ctx    int

	mu        sync.Mutex
	t         *time.Timer
	cancelled atomic.Bool
}

// Schedule runs fn on target every period for as long as fn returns true.
// The target is resolved once, at call time: round-robin and random
// targets pin the timer to one context, and Current requires a worker.
func (s *Scheduler) Schedule(period time.Duration, fn func() bool, target Target) (*Timer, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	ctx, err := s.resolve(target)
	if err != nil {
		return nil, err
	}

	tm := &Timer{s: s, period: period, fn: fn, ctx: ctx}
	s.timersMu.Lock()
	s.timers[tm] = struct{}{}
	s.timersMu.Unlock()

	tm.arm()
	return tm, nil
}

// ScheduleFunc runs fn on target every period until the timer is cancelled.
func (s *Scheduler) ScheduleFunc(period time.Duration, fn func(), target Target) (*Timer, error) {
	return s.Schedule(period, func() bool {
		fn()
		return true
	}, target)
}

func (tm *Timer) arm() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.cancelled.Load() {
		return
	}
	tm.t = time.AfterFunc(tm.period, tm.fire)
}

func (tm *Timer) fire() {
	if tm.cancelled.Load() {
		return
	}
	tm.s.enqueue(tm.ctx, tm.run)
}

func (tm *Timer) run() {
	if tm.cancelled.Load() {
		return
	}
	if tm.fn() {
		tm.arm()
		return
	}
	tm.s.logger.Debug("Timer finished", zap.String("scheduler", tm.s.name), zap.Duration("period", tm.period))
	tm.release()
}

// Cancel prevents every future firing. A firing already running completes.
func (tm *Timer) Cancel() {
	tm.cancelled.Store(true)
	tm.mu.Lock()
	if tm.t != nil {
		tm.t.Stop()
	}
	tm.mu.Unlock()
	tm.release()
}

// Cancelled reports whether Cancel was called.
func (tm *Timer) Cancelled() bool { return tm.cancelled.Load() }

func (tm *Timer) release() {
	tm.s.timersMu.Lock()
	delete(tm.s.timers, tm)
	tm.s.timersMu.Unlock()
}

func (s *Scheduler) cancelTimers() {
	s.timersMu.Lock()
	timers := make([]*Timer, 0, len(s.timers))
	for tm := range s.timers {
		timers = append(timers, tm)
	}
	s.timersMu.Unlock()

	for _, tm := range timers {
		tm.Cancel()
	}
}
