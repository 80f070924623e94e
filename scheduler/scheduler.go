/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package scheduler drives one worker's fibers. It owns a run queue and a
// thread-local "current" pointer, and exposes exactly three self-transitions
// -- Yield, Block and Abort -- reachable only from the fiber currently
// running on this scheduler, plus Cancel, the one operation that targets a
// fiber other than current. Scheduler is single-threaded by construction:
// every exported method here must be called from the worker goroutine that
// owns it, so none of its bookkeeping needs a lock or an atomic.
package scheduler

import (
	"fmt"
	"sync/atomic"

	libfbr "github.com/sabouaram/fibercore/fiber"
	liberr "github.com/sabouaram/fibercore/errors"
	librqu "github.com/sabouaram/fibercore/runqueue"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgScheduler
	ErrorFiberForeign
)

func init() {
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorParamEmpty:
		return "given parameter is empty"
	case ErrorFiberForeign:
		return "fiber does not belong to this scheduler"
	}
	return ""
}

// abortSignal is the panic payload used to unwind a fiber's goroutine stack
// when Abort is called on it. The per-fiber wrapper is the only place that
// recovers it -- the same "something only our own Fail-alike ever throws,
// and only our own wrapper ever catches" shape used by ginkgo's Fail/recover
// pair to give a test body a "never returns" call.
type abortSignal struct {
	result libfbr.Result
}

// Scheduler runs the fibers owned by a single worker. A worker allocates
// exactly one Scheduler and drives it from a single OS thread.
type Scheduler struct {
	workerID uint64
	runq     *librqu.Queue
	boot     *libfbr.Fiber
	current  *libfbr.Fiber
	nextID   atomic.Uint64
}

// New creates a scheduler for workerID, along with its boot fiber -- the
// fiber that represents "nothing else to run", parked at the reserved
// event-loop priority.
func New(workerID uint64) *Scheduler {
	s := &Scheduler{
		workerID: workerID,
		runq:     librqu.New(),
	}
	s.boot = libfbr.New(s.allocID(), workerID, "boot", librqu.EventLoopPriority, nil)
	s.boot.MarkRunning()
	s.current = s.boot
	return s
}

func (s *Scheduler) allocID() libfbr.ID {
	return libfbr.ID(s.nextID.Add(1))
}

// Current returns the fiber presently running on this scheduler.
func (s *Scheduler) Current() *libfbr.Fiber { return s.current }

// WorkerID returns the id this scheduler is bound to.
func (s *Scheduler) WorkerID() uint64 { return s.workerID }

// RunQueueLen reports how many fibers are presently runnable but not yet
// running, for a metrics collector to sample as run-queue depth -- it does
// not include the fiber currently executing.
func (s *Scheduler) RunQueueLen() int { return s.runq.Len() }

// Spawn allocates a new fiber bound to this scheduler's worker, starts its
// goroutine wrapper, and enqueues it as runnable. The fiber does not begin
// executing entry until the scheduler hands it the baton.
func (s *Scheduler) Spawn(name string, priority uint8, entry libfbr.Entry) (*libfbr.Fiber, error) {
	if entry == nil {
		return nil, ErrorParamEmpty.Error(fmt.Errorf("scheduler: nil fiber entry"))
	}

	f := libfbr.New(s.allocID(), s.workerID, name, priority, entry)
	go s.runFiberGoroutine(f)
	s.Run(f)
	return f, nil
}

// Run makes f runnable, mirroring fiber_run: a fiber in Created or Blocked
// state is marked Pending and appended to the run queue. Running or already
// Pending fibers are left untouched.
func (s *Scheduler) Run(f *libfbr.Fiber) {
	switch f.State() {
	case libfbr.StateCreated, libfbr.StateBlocked:
		f.SetWaiting(false)
		f.MarkPending()
		s.runq.Put(f)
	}
}

// Yield suspends the calling fiber (which must be s.current), re-enqueues it
// as runnable, and switches to the next fiber. It returns once this fiber is
// resumed.
func (s *Scheduler) Yield() {
	cur := s.current
	cur.MarkPending()
	s.runq.Put(cur)
	s.switchAway(cur)
}

// Block suspends the calling fiber without re-enqueueing it. The caller is
// responsible for arranging a later Run(cur) -- every real wakeup in this
// runtime is one fiber parked on exactly one event (a socket sink direction,
// a timer entry, a dispatcher self-pipe slot), so a single stashed *Fiber
// pointer is always enough; nothing here needs a multi-waiter queue.
func (s *Scheduler) Block() {
	cur := s.current
	cur.MarkBlocked()
	s.switchAway(cur)
}

// Abort unwinds the calling fiber's stack immediately via panic/recover and
// never returns to its caller. The fiber's deferred cleanup still runs, and
// its result is recorded before the owning goroutine exits.
func (s *Scheduler) Abort(result libfbr.Result) {
	panic(abortSignal{result: result})
}

// Cancel implements fiber_cancel: it marks f cancel-requested so the next
// time f reaches a test point (typically a blocking socket call) it unwinds
// itself via Abort(Canceled). If f is presently blocked and was opted into
// CancelAsynchronous, Cancel also makes it runnable immediately rather than
// waiting indefinitely for whatever woke it normally -- the only way to
// terminate a fiber parked on a connection nobody else is ever going to
// touch again, as happens when a worker is draining its connections on
// shutdown.
func (s *Scheduler) Cancel(f *libfbr.Fiber) {
	f.RequestCancel()
	if f.CancelType() == libfbr.CancelAsynchronous && f.State() == libfbr.StateBlocked {
		s.Run(f)
	}
}

// Step drives the boot fiber's single iteration: pick the next runnable
// fiber and hand it the baton, blocking until it yields or blocks back to
// boot; or, if the run queue is empty, call poll (the worker's dispatcher
// poll step) inline and return. Step must be called from the same goroutine
// that constructed the Scheduler -- it stands in for the native OS-thread
// stack the boot fiber represents.
//
// Step returns true if it ran a fiber, false if it only polled.
func (s *Scheduler) Step(poll func()) bool {
	next := s.runq.Get()
	if next == nil {
		if poll != nil {
			poll()
		}
		return false
	}

	s.current = next
	next.MarkRunning()
	next.Resume()
	s.boot.AwaitResume()
	s.current = s.boot
	return true
}

// RunLoop repeatedly calls Step until stop returns true. poll and stop are
// both called inline on the boot goroutine, never concurrently with a
// running fiber.
func (s *Scheduler) RunLoop(poll func(), stop func() bool) {
	for stop == nil || !stop() {
		s.Step(poll)
	}
}

// switchAway parks `from` and hands the baton to the next runnable fiber, or
// to the boot fiber if the run queue is empty. It blocks until some other
// fiber switches back to `from`.
func (s *Scheduler) switchAway(from *libfbr.Fiber) {
	next := s.runq.Get()
	if next == nil {
		next = s.boot
	}
	if next == from {
		// Switching to the fiber that just yielded/blocked with nothing
		// else runnable and itself re-enqueued is the same-stack case: a
		// real stack switch would land right back at this call site
		// without ever handing control to anyone else, so there is
		// nothing to wait for.
		s.current = from
		from.MarkRunning()
		return
	}

	s.current = next
	next.MarkRunning()
	next.Resume()
	from.AwaitResume()
	s.current = from
}

// runFiberGoroutine is the dedicated goroutine backing one fiber. It parks
// immediately, waiting for this scheduler to schedule the fiber for the
// first time, then runs the entry under recover so Abort's panic-based
// unwind terminates only this fiber, and finally retires the fiber and
// switches to whatever runs next.
func (s *Scheduler) runFiberGoroutine(f *libfbr.Fiber) {
	f.AwaitResume()

	result := s.runEntryRecovered(f)

	f.SetResult(result)
	f.RunCleanup()
	f.MarkInvalid()

	s.retire(f)
}

func (s *Scheduler) runEntryRecovered(f *libfbr.Fiber) (result libfbr.Result) {
	defer func() {
		if r := recover(); r != nil {
			if a, ok := r.(abortSignal); ok {
				result = a.result
				f.MarkCancelOccurred()
				return
			}
			// A fiber entry panicked for a reason we don't own: let it
			// surface as this fiber's result rather than crashing the
			// worker goroutine, mirroring the original design's loose
			// discipline around an unhandled longjmp out of a fiber.
			result = fmt.Errorf("fiber %q panicked: %v", f.Name(), r)
		}
	}()
	return f.RunEntry()
}

// retire hands control to whatever the scheduler should run once a fiber's
// goroutine has nothing left to do. It never returns to the retiring
// goroutine.
func (s *Scheduler) retire(f *libfbr.Fiber) {
	next := s.runq.Get()
	if next == nil {
		next = s.boot
	}
	s.current = next
	next.MarkRunning()
	if next != f {
		next.Resume()
	}
}
