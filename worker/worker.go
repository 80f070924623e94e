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

// Package worker binds one OS thread to exactly one scheduler, dispatcher,
// timer queue and pair of work queues, per spec.md §4.K's per-thread
// runtime. Nothing in this package is safe to call from a foreign thread --
// the whole point of the fiber/dispatcher/workqueue stack built earlier is
// that a worker never needs a lock to touch its own state.
package worker

import (
	"runtime"
	"time"

	liberr "github.com/sabouaram/fibercore/errors"

	libdsp "github.com/sabouaram/fibercore/dispatcher"
	libfbr "github.com/sabouaram/fibercore/fiber"
	liblog "github.com/sabouaram/fibercore/logger"
	loglvl "github.com/sabouaram/fibercore/logger/level"
	libmet "github.com/sabouaram/fibercore/metrics"
	librqu "github.com/sabouaram/fibercore/runqueue"
	libsch "github.com/sabouaram/fibercore/scheduler"
	libsem "github.com/sabouaram/fibercore/semaphore"
	libsfp "github.com/sabouaram/fibercore/selfpipe"
	libtmr "github.com/sabouaram/fibercore/timer"
	libwq "github.com/sabouaram/fibercore/workqueue"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgWorker
	ErrorSelfPipe
)

func init() {
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorParamEmpty:
		return "given parameter is empty"
	case ErrorSelfPipe:
		return "failed to create worker self-pipe"
	}
	return ""
}

// maxPollTimeout bounds how long a single Tick may block in the kernel even
// with no timer scheduled, so a worker still notices process-level signals
// (e.g. a Stop request) within a bounded interval.
const maxPollTimeout = 3 * time.Second

// defaultItemPriority is the run queue lane a workqueue.Item lands on when
// spawned as a fiber; cross-worker submissions carry no priority of their
// own in spec.md §4.H, so every spawned item runs at the default lane.
const defaultItemPriority = librqu.Priorities / 2

// Worker owns one thread's entire runtime: its scheduler, its dispatcher,
// its timer queue, and the two work queues spec.md §4.H describes. ID is
// its index within the owning Domain, used both for affinity routing and
// as the scheduler's workerID.
type Worker struct {
	ID uint64

	Scheduler  *libsch.Scheduler
	Dispatcher *libdsp.Dispatcher
	Timers     *libtmr.Queue

	shared  *libwq.Shared
	private *libwq.Private

	pipe     *libsfp.SelfPipe
	pipeSink *libdsp.Sink

	now time.Time

	// Log is consulted by Tick's error paths (a failed Poll, a failed
	// self-pipe drain); nil means silent, matching the rest of this
	// package's "every exported constructor works with zero configuration"
	// posture.
	Log liblog.FuncLog

	// Limiter, when set, bounds how many cross-worker Submit calls may be
	// in flight on this worker at once, giving a bursty fleet of producers
	// backpressure instead of an unbounded pile-up on the shared queue.
	// nil means unlimited, matching Log's zero-configuration posture.
	Limiter libsem.Semaphore

	// Metrics, when set, receives a poll-duration observation, a run-queue
	// depth and active-sink gauge sample every Tick, and a counter increment
	// on every cross-worker Submit. nil skips all of it, matching Log and
	// Limiter's zero-configuration posture.
	Metrics *libmet.Runtime

	// conns tracks every connection-reader fiber currently spawned on this
	// worker, so RunLoop can cancel them on shutdown instead of abandoning
	// whichever ones are parked in a socket Read/Write at the time. Touched
	// only from the worker's own goroutine, same as everything else here.
	conns map[libfbr.ID]*libfbr.Fiber
}

// logError emits msg/err at error level through Log, the same
// Entry(level, msg).ErrorAdd(...).Log() chain used throughout the teacher's
// own packages, and is a silent no-op when no logger has been attached.
func (w *Worker) logError(msg string, err error) {
	if w.Log == nil || err == nil {
		return
	}
	w.Log().Entry(loglvl.ErrorLevel, msg).ErrorAdd(true, err).Log()
}

// New wires a complete worker runtime for id: a scheduler, an epoll-backed
// dispatcher whose RunFunc feeds runnable fibers back to that scheduler, a
// timer queue, both work queues, and a registered self-pipe so cross-worker
// Submit calls can wake this worker out of a kernel poll.
func New(id uint64) (*Worker, error) {
	w := &Worker{
		ID:      id,
		Timers:  libtmr.New(),
		shared:  libwq.NewShared(),
		private: libwq.NewPrivate(),
		conns:   make(map[libfbr.ID]*libfbr.Fiber),
	}
	w.Scheduler = libsch.New(id)

	disp, err := libdsp.New(func(f *libfbr.Fiber) { w.Scheduler.Run(f) })
	if err != nil {
		return nil, err
	}
	w.Dispatcher = disp

	pipe, err := libsfp.New()
	if err != nil {
		return nil, ErrorSelfPipe.Error(err)
	}
	w.pipe = pipe

	w.pipeSink = libdsp.NewSink(pipe.FD(), id)
	w.pipeSink.InputMode = libdsp.ModeLevel
	if err := disp.Register(w.pipeSink); err != nil {
		return nil, err
	}

	return w, nil
}

// Target exposes this worker as a cross-worker submission destination for
// workqueue.Submit: its id, its shared inbound queue, and its self-pipe's
// Notify as the wakeup.
func (w *Worker) Target() libwq.Target {
	return libwq.Target{WorkerID: w.ID, Shared: w.shared, Notify: w.pipe.Notify}
}

// Submit routes it to this worker following spec.md §4.H's policy: a
// self-submission (fromWorkerID == w.ID) lands directly on the private
// queue, any other origin goes through the shared queue and a self-pipe
// notify. A cross-worker submission first acquires a slot from Limiter (if
// set), so a burst of producers is serialized into the shared queue rather
// than racing to push and notify all at once.
func (w *Worker) Submit(fromWorkerID uint64, it *libwq.Item) error {
	if fromWorkerID != w.ID {
		if w.Limiter != nil {
			if err := w.Limiter.NewWorker(); err != nil {
				return err
			}
			defer w.Limiter.DeferWorker()
		}
		if w.Metrics != nil {
			w.Metrics.IncCrossWorkerSubmit(fromWorkerID, w.ID)
		}
	}
	return libwq.Submit(fromWorkerID, w.Target(), w.private, it)
}

// TrackConn registers f as a live connection-reader fiber, opting it into
// CancelAsynchronous so a later CancelConns can wake it out of a parked
// Read/Write rather than waiting for traffic that may never arrive. The
// caller owns unregistering it again, normally via a deferred UntrackConn in
// the fiber's own entry.
func (w *Worker) TrackConn(f *libfbr.Fiber) {
	f.SetCancelType(libfbr.CancelAsynchronous)
	w.conns[f.ID()] = f
}

// UntrackConn removes f from the set CancelConns sweeps; it is a no-op if f
// was never tracked or already removed.
func (w *Worker) UntrackConn(f *libfbr.Fiber) {
	delete(w.conns, f.ID())
}

// CancelConns requests cancellation on every tracked connection fiber. Each
// one still needs its own turn on the scheduler to actually unwind, so the
// caller must keep stepping until ConnCount reaches zero.
func (w *Worker) CancelConns() {
	for _, f := range w.conns {
		w.Scheduler.Cancel(f)
	}
}

// ConnCount reports how many connection fibers are still tracked.
func (w *Worker) ConnCount() int { return len(w.conns) }

// Close releases the worker's self-pipe eventfd. The dispatcher's epoll fd
// is not closed.
func (w *Worker) Close() error {
	_ = w.pipe.Close()
	return nil
}

// WakeUp forces the worker's self-pipe to fire even with nothing
// cross-submitted, so a worker parked in Poll re-checks the domain's exit
// flag within bounded time rather than waiting out maxPollTimeout.
func (w *Worker) WakeUp() error { return w.pipe.Notify() }

func (w *Worker) nowMicro() int64 { return w.now.UnixMicro() }

// Bind pins the calling goroutine to its current OS thread for the
// lifetime of the worker's run loop, matching spec.md §4.K's one-thread-
// per-worker invariant: a fiber's raw stack and any thread-local state a
// protocol's Create hook sets up must never migrate between calls.
func (w *Worker) Bind() func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}
