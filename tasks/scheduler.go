// Package tasks runs background work on a fixed worker pool and
// delivers completions back to the render goroutine.
//
// Work functions run on pool goroutines and must not touch render
// state. Completion callbacks run only inside Drain, which the render
// loop calls at a safe point, so callbacks may freely mutate caches
// and trigger repaints without locking.
package tasks

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultWorkers is the pool size used when the caller passes 0.
const DefaultWorkers = 4

// Handle identifies a submitted task and allows best-effort
// cancellation.
type Handle struct {
	cancelled atomic.Bool
	done      atomic.Bool
}

// Cancel marks the task cancelled. Work already running is not
// interrupted, but its callbacks will not fire.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Done reports whether the task's completion has been delivered (or
// dropped due to cancellation).
func (h *Handle) Done() bool {
	return h.done.Load()
}

type job struct {
	handle *Handle
	work   func() (any, error)
	onDone func(any)
	onErr  func(error)
}

type completion struct {
	handle *Handle
	result any
	err    error
	onDone func(any)
	onErr  func(error)
	direct func()
}

// Scheduler owns the worker pool and the completion queue.
type Scheduler struct {
	jobs   chan *job
	wg     sync.WaitGroup
	logger *slog.Logger

	// closeMu serializes submission against Close so a send never
	// races the channel close.
	closeMu sync.RWMutex
	closed  bool

	mu          sync.Mutex
	completions []completion
}

// NewScheduler starts a scheduler with the given number of workers.
// workers <= 0 selects DefaultWorkers.
func NewScheduler(workers int, logger *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		jobs:   make(chan *job, 64),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		if j.handle.Cancelled() {
			j.handle.done.Store(true)
			continue
		}
		result, err := j.work()
		s.mu.Lock()
		s.completions = append(s.completions, completion{
			handle: j.handle,
			result: result,
			err:    err,
			onDone: j.onDone,
			onErr:  j.onErr,
		})
		s.mu.Unlock()
	}
}

// Submit queues work for the pool. onDone receives the work's result
// and onErr its error; exactly one of them runs, during a later
// Drain, unless the task is cancelled first. Either callback may be
// nil. Submit after Close returns a pre-cancelled handle.
func (s *Scheduler) Submit(work func() (any, error), onDone func(any), onErr func(error)) *Handle {
	h := &Handle{}
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		h.Cancel()
		h.done.Store(true)
		return h
	}
	s.jobs <- &job{handle: h, work: work, onDone: onDone, onErr: onErr}
	return h
}

// Post queues fn to run during the next Drain, bypassing the worker
// pool. Use it for work that is already complete but whose effects
// must land on the render goroutine.
func (s *Scheduler) Post(fn func()) {
	s.closeMu.RLock()
	closed := s.closed
	s.closeMu.RUnlock()
	if closed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, completion{direct: fn})
}

// Pending reports whether any completions are waiting for Drain.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completions) > 0
}

// Drain runs all queued completion callbacks on the calling
// goroutine and reports how many ran. The render loop calls this at
// the top of each frame.
func (s *Scheduler) Drain() int {
	s.mu.Lock()
	pending := s.completions
	s.completions = nil
	s.mu.Unlock()

	ran := 0
	for _, c := range pending {
		if c.direct != nil {
			c.direct()
			ran++
			continue
		}
		if c.handle.Cancelled() {
			c.handle.done.Store(true)
			continue
		}
		if c.err != nil {
			if c.onErr != nil {
				c.onErr(c.err)
			} else {
				s.logger.Warn("task failed", "error", c.err)
			}
		} else if c.onDone != nil {
			c.onDone(c.result)
		}
		c.handle.done.Store(true)
		ran++
	}
	return ran
}

// Close stops accepting work and waits for in-flight work to finish.
// Completions queued by that work are discarded.
func (s *Scheduler) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.closeMu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.completions = nil
	s.mu.Unlock()
}
