package instrument

import (
	"sync/atomic"
	"time"
)

// Recorder receives timing observations, typically a reservoir.
type Recorder interface {
	Push(v float64)
}

// TimeScope measures the time between StartTimer and Stop and pushes it into
// a Recorder in the configured unit.
type TimeScope struct {
	rec   Recorder
	unit  time.Duration
	start time.Time
	done  atomic.Bool
}

// StartTimer starts measuring. unit is the precision of the pushed value,
// e.g. time.Microsecond; zero means nanoseconds.
func StartTimer(rec Recorder, unit time.Duration) *TimeScope {
	if unit <= 0 {
		unit = time.Nanosecond
	}
	return &TimeScope{rec: rec, unit: unit, start: time.Now()}
}

// Stop pushes the elapsed time and returns it. Only the first Stop or
// Discard has an effect.
func (s *TimeScope) Stop() time.Duration {
	elapsed := time.Since(s.start)
	if s.done.CompareAndSwap(false, true) && s.rec != nil {
		s.rec.Push(float64(elapsed) / float64(s.unit))
	}
	return elapsed
}

// Discard abandons the measurement.
func (s *TimeScope) Discard() {
	s.done.Store(true)
}
