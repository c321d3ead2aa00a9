package scheduler

import (
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"go.uber.org/zap"
)

// Scheduler runs work items on a fixed set of worker goroutines split into
// contexts. Every context owns one FIFO queue and threads/contexts workers
// consume it, so work submitted to a context with a single worker runs
// serially.
type Scheduler struct {
	name     string
	threads  int
	contexts int
	logger   *zap.Logger

	lifecycle sync.Mutex
	running   atomic.Bool
	workers   sync.WaitGroup

	queuesMu sync.RWMutex
	queues   []*workQueue

	next   atomic.Uint64
	owners sync.Map // goroutine id -> context index

	timersMu sync.Mutex
	timers   map[*Timer]struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithName sets the name used in log fields.
func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New validates the layout and returns a stopped scheduler. threads must be
// a positive multiple of contexts.
func New(threads, contexts int, opts ...Option) (*Scheduler, error) {
	if err := validate(threads, contexts); err != nil {
		return nil, err
	}
	s := &Scheduler{
		name:     "scheduler",
		threads:  threads,
		contexts: contexts,
		logger:   zap.NewNop(),
		timers:   make(map[*Timer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queues = newQueues(contexts)
	return s, nil
}

func newQueues(n int) []*workQueue {
	qs := make([]*workQueue, n)
	for i := range qs {
		qs[i] = newWorkQueue()
	}
	return qs
}

// Threads returns the number of workers.
func (s *Scheduler) Threads() int { return s.threads }

// Contexts returns the number of contexts.
func (s *Scheduler) Contexts() int { return s.contexts }

// Name returns the scheduler name.
func (s *Scheduler) Name() string { return s.name }

// Running reports whether Start has completed and Stop has not been called.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Start spawns the workers. Worker i serves context i%contexts; each runs
// init (when non-nil) once before taking work. Start returns after every
// worker has finished init. Calling Start on a running scheduler does
// nothing.
func (s *Scheduler) Start(init func(), placement Placement) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.running.Load() {
		return
	}

	cpus, err := placement.cpus()
	if err != nil {
		s.logger.Warn("Thread placement unavailable, workers are not pinned",
			zap.String("scheduler", s.name),
			zap.Stringer("placement", placement),
			zap.Error(err))
		cpus = nil
	}

	s.queuesMu.RLock()
	queues := s.queues
	s.queuesMu.RUnlock()

	var ready sync.WaitGroup
	ready.Add(s.threads)
	for i := 0; i < s.threads; i++ {
		ctx := i % s.contexts
		cpu := -1
		if len(cpus) > 0 {
			cpu = cpus[i%len(cpus)]
		}
		s.workers.Add(1)
		go s.work(i, ctx, cpu, queues[ctx], init, &ready)
	}
	ready.Wait()
	s.running.Store(true)

	s.logger.Debug("Scheduler started",
		zap.String("scheduler", s.name),
		zap.Int("threads", s.threads),
		zap.Int("contexts", s.contexts),
		zap.Stringer("placement", placement))
}

func (s *Scheduler) work(worker, ctx, cpu int, q *workQueue, init func(), ready *sync.WaitGroup) {
	defer s.workers.Done()

	id := goid.Get()
	s.owners.Store(id, ctx)
	defer s.owners.Delete(id)

	if cpu >= 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := bindThread(cpu); err != nil {
			s.logger.Warn("Failed to pin worker",
				zap.String("scheduler", s.name),
				zap.Int("worker", worker),
				zap.Int("cpu", cpu),
				zap.Error(err))
		}
	}

	if init != nil {
		init()
	}
	ready.Done()

	for {
		fn, ok := q.pop()
		if !ok {
			return
		}
		fn()
	}
}

// Stop cancels every timer, lets the workers finish the items already
// queued, and joins them. New submissions are dropped while stopping. The
// scheduler can be started again afterwards. Stop is idempotent and must not
// be called from a worker.
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.cancelTimers()
	if !s.running.Load() {
		return
	}
	s.running.Store(false)

	s.queuesMu.RLock()
	for _, q := range s.queues {
		q.close()
	}
	s.queuesMu.RUnlock()

	s.workers.Wait()

	s.queuesMu.Lock()
	s.queues = newQueues(s.contexts)
	s.queuesMu.Unlock()

	s.logger.Debug("Scheduler stopped", zap.String("scheduler", s.name))
}

// InPool reports whether the caller is one of this scheduler's workers.
func (s *Scheduler) InPool() bool {
	_, ok := s.owners.Load(goid.Get())
	return ok
}

// CurrentContext returns the context of the calling worker.
func (s *Scheduler) CurrentContext() (int, error) {
	v, ok := s.owners.Load(goid.Get())
	if !ok {
		return 0, ErrNotInPool
	}
	return v.(int), nil
}

func (s *Scheduler) resolve(t Target) (int, error) {
	switch t.kind {
	case targetRoundRobin:
		return int((s.next.Add(1) - 1) % uint64(s.contexts)), nil
	case targetRandom:
		return rand.IntN(s.contexts), nil
	case targetCurrent:
		return s.CurrentContext()
	default:
		if t.index < 0 || t.index >= s.contexts {
			return 0, ErrNoSuchContext
		}
		return t.index, nil
	}
}

// Submit queues work on the context chosen by target. Work submitted before
// Start runs once the workers are up; work submitted while stopping is
// dropped.
func (s *Scheduler) Submit(work func(), target Target) error {
	ctx, err := s.resolve(target)
	if err != nil {
		return err
	}
	s.enqueue(ctx, work)
	return nil
}

func (s *Scheduler) enqueue(ctx int, work func()) {
	s.queuesMu.RLock()
	q := s.queues[ctx]
	s.queuesMu.RUnlock()
	if !q.push(work) {
		s.logger.Debug("Dropped work submitted while stopping",
			zap.String("scheduler", s.name), zap.Int("context", ctx))
	}
}

// Pending returns the number of queued, not yet started items.
func (s *Scheduler) Pending() int {
	s.queuesMu.RLock()
	defer s.queuesMu.RUnlock()
	n := 0
	for _, q := range s.queues {
		n += q.len()
	}
	return n
}
