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

// Package semaphore bounds how many callers may hold a slot at once: a
// fixed weighted limit, or an unlimited WaitGroup-backed counter when the
// caller asks for no limit at all. Both flavors satisfy the same Semaphore
// interface, which embeds context.Context so a caller already holding one
// can select on its Done() the same way it would on any other context.
package semaphore

import (
	"context"
	"runtime"
	"sync"

	xsem "golang.org/x/sync/semaphore"
)

// Semaphore bounds concurrent holders of a slot. It embeds context.Context
// so DeferMain's cancellation is observable through Done/Err like any other
// context, and NewWorker/WaitAll can both select on it.
type Semaphore interface {
	context.Context

	// NewWorker blocks until a slot is free or the semaphore's context is
	// done, whichever comes first.
	NewWorker() error
	// NewWorkerTry acquires a slot without blocking; false means none was
	// immediately available.
	NewWorkerTry() bool
	// DeferWorker releases a slot acquired by NewWorker or NewWorkerTry.
	DeferWorker()
	// WaitAll blocks until every outstanding slot has been released, or the
	// semaphore's context is done.
	WaitAll() error
	// DeferMain cancels the semaphore's context, unblocking any NewWorker
	// or WaitAll call still waiting.
	DeferMain()
	// Weighted reports the configured limit: -1 for unlimited.
	Weighted() int64
}

// MaxSimultaneous is the default limit used when New is given 0: the
// number of logical CPUs GOMAXPROCS reports.
func MaxSimultaneous() int {
	return runtime.GOMAXPROCS(0)
}

// SetSimultaneous normalizes n to a usable weighted limit: MaxSimultaneous
// for any n < 1, n itself otherwise.
func SetSimultaneous(n int) int64 {
	if n < 1 {
		return int64(MaxSimultaneous())
	}
	return int64(n)
}

// New builds a Semaphore bound to ctx. nbrSimultaneous == 0 uses
// MaxSimultaneous; nbrSimultaneous > 0 is the exact weighted limit;
// nbrSimultaneous < 0 removes the limit entirely (a sync.WaitGroup
// stands in for the weighted semaphore in that case).
func New(ctx context.Context, nbrSimultaneous int64) Semaphore {
	cctx, cancel := context.WithCancel(ctx)

	if nbrSimultaneous < 0 {
		return &unlimited{Context: cctx, cancel: cancel}
	}

	n := nbrSimultaneous
	if n == 0 {
		n = int64(MaxSimultaneous())
	}
	return &weighted{Context: cctx, cancel: cancel, sem: xsem.NewWeighted(n), n: n}
}

type weighted struct {
	context.Context
	cancel context.CancelFunc
	sem    *xsem.Weighted
	n      int64
}

func (w *weighted) NewWorker() error      { return w.sem.Acquire(w.Context, 1) }
func (w *weighted) NewWorkerTry() bool    { return w.sem.TryAcquire(1) }
func (w *weighted) DeferWorker()          { w.sem.Release(1) }
func (w *weighted) DeferMain()            { w.cancel() }
func (w *weighted) Weighted() int64       { return w.n }

// WaitAll acquires the semaphore's entire weight and releases it right
// away: that only succeeds once every outstanding slot has been returned,
// so it is a wait-for-quiescence check built directly out of Acquire.
func (w *weighted) WaitAll() error {
	if err := w.sem.Acquire(w.Context, w.n); err != nil {
		return err
	}
	w.sem.Release(w.n)
	return nil
}

type unlimited struct {
	context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (u *unlimited) NewWorker() error {
	u.wg.Add(1)
	return nil
}

func (u *unlimited) NewWorkerTry() bool {
	u.wg.Add(1)
	return true
}

func (u *unlimited) DeferWorker() { u.wg.Done() }
func (u *unlimited) DeferMain()   { u.cancel() }
func (u *unlimited) Weighted() int64 { return -1 }

// WaitAll waits on the WaitGroup in a goroutine so a cancelled context can
// still unblock the caller; sync.WaitGroup's own Wait has no such escape
// hatch.
func (u *unlimited) WaitAll() error {
	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-u.Context.Done():
		return u.Context.Err()
	}
}
