// Package scheduler is a small worker pool with periodic timers.
//
// A Scheduler owns threads worker goroutines partitioned into contexts. Each
// context has one FIFO queue; with one worker per context, work queued on
// that context runs serially in submission order.
//
//	s, err := scheduler.New(4, 2)
//	if err != nil {
//		return err
//	}
//	s.Start(nil, scheduler.PlacementNone)
//	defer s.Stop()
//
//	_ = s.Submit(func() { ... }, scheduler.RoundRobin)
//	t, _ := s.ScheduleFunc(time.Second, flush, scheduler.OnContext(0))
//	defer t.Cancel()
//
// # Placement
//
// On Linux workers can be pinned to CPUs with PlacementPhysicalCores or
// PlacementAllCores. Pinning locks the worker goroutine to its OS thread
// for the worker's lifetime. Elsewhere, or when the CPU topology cannot be
// read, placement is skipped with a warning.
//
// # Panics
//
// Work items are not wrapped in recover: a panicking item takes the process
// down, as it would on any other goroutine.
package scheduler
