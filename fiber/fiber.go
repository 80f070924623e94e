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

// Package fiber implements the stackful-coroutine abstraction re-expressed over
// goroutines: each Fiber owns a dedicated goroutine and a resume baton, and only
// one Fiber per owning worker ever runs at a time. The Go runtime's own stack
// management replaces the manual stack-switch primitive of the original design;
// the scheduler still enforces the single-runner invariant by never releasing a
// second baton before the first is returned.
package fiber

import (
	"sync/atomic"

	libatm "github.com/sabouaram/fibercore/atomic"
)

// State is the lifecycle state of a Fiber.
type State int32

const (
	StateCreated State = iota
	StatePending
	StateRunning
	StateBlocked
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// CancelType selects when a cancellation request becomes observable.
type CancelType int32

const (
	// CancelDeferred observes cancellation only at explicit test points and
	// blocking calls. This is the default.
	CancelDeferred CancelType = iota
	// CancelAsynchronous additionally observes cancellation on every stack
	// switch (every scheduler hand-off, in this re-expression).
	CancelAsynchronous
)

// Result is the word-sized value a fiber delivers to a joiner, or nil.
type Result any

// Canceled is the sentinel result of a fiber that exited via cancellation.
var Canceled Result = canceledResult{}

type canceledResult struct{}

// Entry is a fiber's body. It receives the fiber so it can call back into
// Yield/Block/TestCancel via the owning scheduler.
type Entry func(f *Fiber) Result

// CleanupFunc runs on termination or cancellation, LIFO, exactly once.
type CleanupFunc func(arg any)

type cleanupRecord struct {
	fn  CleanupFunc
	arg any
}

// ID is a handle unique within a worker.
type ID uint64

// Fiber is a stackful coroutine: identity, priority, flags, and the goroutine
// that carries its actual call stack.
//
// All fields except the atomic ones are touched only by the fiber's owning
// worker goroutine, matching the "no lock on data owned by the worker"
// invariant of the scheduler.
type Fiber struct {
	id       ID
	name     string
	priority uint8
	entry    Entry
	owner    uint64 // id of the owning worker, for wrong-worker assertions

	state atomic.Int32

	cancelEnabled   atomic.Bool
	cancelType      atomic.Int32
	cancelRequested atomic.Bool
	cancelOccurred  atomic.Bool
	isWaiting       atomic.Bool

	cleanup []cleanupRecord

	result libatm.Value[Result]

	// resume is the baton: the scheduler sends on it to hand control to this
	// fiber's goroutine; the fiber blocks reading it whenever parked.
	resume chan struct{}

	// next links this fiber into at most one of {run queue, wait queue} at a
	// time -- the shared link field called out by the data model.
	next *Fiber
}

// New allocates a fiber bound to owner (a worker id). The fiber is not yet
// runnable; Scheduler.Spawn (or equivalent) must enqueue it.
func New(id ID, owner uint64, name string, priority uint8, entry Entry) *Fiber {
	f := &Fiber{
		id:       id,
		name:     name,
		priority: priority,
		entry:    entry,
		owner:    owner,
		resume:   make(chan struct{}),
		result:   libatm.NewValue[Result](),
	}
	f.cancelEnabled.Store(true)
	f.state.Store(int32(StateCreated))
	return f
}

func (f *Fiber) ID() ID          { return f.id }
func (f *Fiber) Name() string    { return f.name }
func (f *Fiber) Priority() uint8 { return f.priority }
func (f *Fiber) Owner() uint64   { return f.owner }

func (f *Fiber) State() State { return State(f.state.Load()) }

// MarkPending, MarkRunning, MarkBlocked and MarkInvalid are the only legal
// state transitions; they exist so the owning scheduler -- and nothing else
// -- can drive a fiber's lifecycle.
func (f *Fiber) MarkPending() { f.state.Store(int32(StatePending)) }
func (f *Fiber) MarkRunning() { f.state.Store(int32(StateRunning)) }
func (f *Fiber) MarkBlocked() { f.state.Store(int32(StateBlocked)) }
func (f *Fiber) MarkInvalid() { f.state.Store(int32(StateInvalid)) }

func (f *Fiber) IsWaiting() bool  { return f.isWaiting.Load() }
func (f *Fiber) SetWaiting(w bool) { f.isWaiting.Store(w) }

// Next and SetNext expose the single shared run/wait-queue link field.
func (f *Fiber) Next() *Fiber     { return f.next }
func (f *Fiber) SetNext(n *Fiber) { f.next = n }

// Result returns the value delivered by Exit, or nil before termination.
func (f *Fiber) Result() Result { return f.result.Load() }

// CleanupPush pushes a cleanup record, to be matched by CleanupPop.
func (f *Fiber) CleanupPush(fn CleanupFunc, arg any) {
	f.cleanup = append(f.cleanup, cleanupRecord{fn: fn, arg: arg})
}

// CleanupPop pops the most recent cleanup record. If execute is true it runs
// immediately; otherwise it is discarded without running.
func (f *Fiber) CleanupPop(execute bool) {
	n := len(f.cleanup)
	if n == 0 {
		return
	}
	r := f.cleanup[n-1]
	f.cleanup = f.cleanup[:n-1]
	if execute {
		r.fn(r.arg)
	}
}

// runCleanup unwinds every remaining cleanup record, LIFO, exactly once.
func (f *Fiber) runCleanup() {
	for i := len(f.cleanup) - 1; i >= 0; i-- {
		r := f.cleanup[i]
		r.fn(r.arg)
	}
	f.cleanup = nil
}

// SetCancelState enables or disables cancellation observation.
func (f *Fiber) SetCancelState(enabled bool) (old bool) {
	return f.cancelEnabled.Swap(enabled)
}

func (f *Fiber) CancelState() bool { return f.cancelEnabled.Load() }

// SetCancelType selects deferred vs asynchronous cancellation.
func (f *Fiber) SetCancelType(t CancelType) (old CancelType) {
	return CancelType(f.cancelType.Swap(int32(t)))
}

func (f *Fiber) CancelType() CancelType { return CancelType(f.cancelType.Load()) }

// RequestCancel sets the cancel-requested flag. It does not, by itself, make
// a blocked fiber runnable -- that is the scheduler's job when the target is
// asynchronous-cancellable.
func (f *Fiber) RequestCancel() { f.cancelRequested.Store(true) }

func (f *Fiber) CancelRequested() bool { return f.cancelRequested.Load() }

func (f *Fiber) markCancelOccurred() { f.cancelOccurred.Store(true) }

func (f *Fiber) CancelOccurred() bool { return f.cancelOccurred.Load() }

// ShouldTestCancel reports whether a cancellation is pending and observable.
func (f *Fiber) ShouldTestCancel() bool {
	return f.cancelRequested.Load() && f.cancelEnabled.Load()
}

// MarkCancelOccurred records that this fiber actually unwound via
// cancellation, for CancelOccurred().
func (f *Fiber) MarkCancelOccurred() { f.markCancelOccurred() }

// RunEntry invokes the fiber's body. Only the owning scheduler's per-fiber
// goroutine wrapper calls this, exactly once.
func (f *Fiber) RunEntry() Result {
	if f.entry == nil {
		return nil
	}
	return f.entry(f)
}

// RunCleanup unwinds every remaining cleanup record, LIFO, exactly once.
// Only the owning scheduler calls this, on termination or cancellation.
func (f *Fiber) RunCleanup() { f.runCleanup() }

// SetResult stores the value a joiner will observe.
func (f *Fiber) SetResult(r Result) { f.result.Store(r) }

// Resume hands the baton to this fiber's goroutine: it is the only
// permitted way to let a parked fiber run again.
func (f *Fiber) Resume() { f.resume <- struct{}{} }

// AwaitResume blocks the calling goroutine (which must be this fiber's own)
// until the scheduler calls Resume.
func (f *Fiber) AwaitResume() { <-f.resume }
