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

package worker

import (
	"time"

	libfbr "github.com/sabouaram/fibercore/fiber"
	libtmr "github.com/sabouaram/fibercore/timer"
	libwq "github.com/sabouaram/fibercore/workqueue"
)

// RunLoop drives the worker's main loop until stop returns true, or forever
// if stop is nil. It must run on the thread Bind pinned. Once stop fires it
// calls drainConns so a connection fiber parked in Read/Write at the moment
// of shutdown gets cancelled and unwound before the worker goroutine
// returns, instead of being abandoned mid-park.
func (w *Worker) RunLoop(stop func() bool) {
	for stop == nil || !stop() {
		w.Tick()
	}
	w.drainConns()
}

// drainConns cancels every tracked connection fiber and keeps stepping the
// scheduler until each has unwound and untracked itself, or the run queue
// runs dry -- whichever comes first, so a hung protocol Reader that never
// checks ShouldTestCancel cannot keep the worker goroutine from returning.
func (w *Worker) drainConns() {
	if w.ConnCount() == 0 {
		return
	}
	w.CancelConns()
	for w.ConnCount() > 0 && w.Scheduler.Step(nil) {
	}
}

// Tick runs exactly one iteration of spec.md §4.K step 3's (a)-(g)
// sequence: drain shared work into private, run everything private holds,
// refresh cached time, fire due timers, poll the dispatcher for at most
// the time until the next deadline (capped at maxPollTimeout), and finally
// let every fiber that became runnable run to quiescence before returning.
func (w *Worker) Tick() {
	w.drainSelfPipe()
	w.drainSharedIntoPrivate()
	w.drainPrivate()

	w.now = time.Now()
	w.Timers.Expire(w.nowMicro(), w.fireTimer)

	pollStart := w.now
	err := w.Dispatcher.Poll(w.pollTimeout())
	if w.Metrics != nil {
		w.Metrics.ObservePoll(w.ID, time.Since(pollStart))
		w.Metrics.SetRunQueueDepth(w.ID, w.Scheduler.RunQueueLen())
		w.Metrics.SetActiveSinks(w.ID, w.Dispatcher.SinkCount())
	}
	if err != nil {
		w.logError("dispatcher poll failed", err)
	}

	for w.Scheduler.Step(nil) {
	}
}

// drainSelfPipe acknowledges a cross-worker wakeup, matching the same
// read-until-EAGAIN-then-clear discipline the socket layer applies to
// every other input source.
func (w *Worker) drainSelfPipe() {
	if !w.pipeSink.InputReady() {
		return
	}
	if err := w.pipe.Drain(); err != nil {
		w.logError("self-pipe drain failed", err)
	}
	w.pipeSink.ClearInputReady()
}

// drainSharedIntoPrivate moves every item another worker has cross-
// submitted onto this worker's private queue, so the rest of this tick
// only ever has to look at one, unsynchronized, queue.
func (w *Worker) drainSharedIntoPrivate() {
	w.shared.DrainInto(func(it *libwq.Item) { w.private.Push(it) })
}

// drainPrivate runs every item currently queued, per its Tag, following
// workqueue.Item's own documented contract.
func (w *Worker) drainPrivate() {
	for {
		it, ok := w.private.Pop()
		if !ok {
			return
		}
		w.dispatchItem(it)
	}
}

func (w *Worker) dispatchItem(it *libwq.Item) {
	switch it.Tag {
	case libwq.TagSpawn:
		_, _ = w.Scheduler.Spawn("workitem", defaultItemPriority, func(f *libfbr.Fiber) libfbr.Result {
			it.Routine(it.Arg)
			return nil
		})
	default: // TagRun, TagJoin: both invoke Routine(Arg) inline.
		if it.Routine != nil {
			it.Routine(it.Arg)
		}
	}
}

// fireTimer handles one expired timer.Entry per its Tag: a TagSleep entry
// wakes the fiber parked in Arg; a TagUserTimer entry runs the work item
// stashed in Arg inline, since firing is itself happening on this worker's
// own thread already.
func (w *Worker) fireTimer(e *libtmr.Entry) {
	switch e.Tag {
	case libtmr.TagSleep:
		if f, ok := e.Arg.(*libfbr.Fiber); ok {
			w.Scheduler.Run(f)
		}
	case libtmr.TagUserTimer:
		if it, ok := e.Arg.(*libwq.Item); ok {
			w.dispatchItem(it)
		}
	}
}

// pollTimeout caps the dispatcher's kernel wait at the time remaining until
// the next timer deadline, or maxPollTimeout if no timer is scheduled --
// bounding how long a worker can stay blocked in the kernel with nothing
// to do before it next notices a stop request.
func (w *Worker) pollTimeout() time.Duration {
	deadline, ok := w.Timers.NextDeadline()
	if !ok {
		return maxPollTimeout
	}
	remaining := time.Duration(deadline-w.nowMicro()) * time.Microsecond
	if remaining < 0 {
		return 0
	}
	if remaining > maxPollTimeout {
		return maxPollTimeout
	}
	return remaining
}
