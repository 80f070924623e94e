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
	"fmt"
	"sync/atomic"

	hashuuid "github.com/hashicorp/go-uuid"
	"golang.org/x/sync/errgroup"

	liblog "github.com/sabouaram/fibercore/logger"
	libmet "github.com/sabouaram/fibercore/metrics"
	libsem "github.com/sabouaram/fibercore/semaphore"
)

// ThreadHook runs once per worker thread, at thread-start or thread-stop.
type ThreadHook func(w *Worker)

// DomainHook runs once for the whole domain, at common-start or
// common-stop -- e.g. a server's Listen + RegisterOnWorker submission.
type DomainHook func(d *Domain) error

// Domain owns N workers, a join object and the domain's hook lists, per
// spec.md §4.K's "a domain owns N workers, a join object, and the hook
// lists (regular start/stop, regular-thread start/stop)".
type Domain struct {
	Name    string
	Workers []*Worker

	// BootID distinguishes one process run of this domain from the next in
	// logs, independent of Name, which a config reload can keep constant
	// across restarts.
	BootID string

	// StartHooks/StopHooks run once, synchronously, from Start/Stop --
	// spec.md's "regular start/stop" hooks.
	StartHooks []DomainHook
	StopHooks  []DomainHook

	// ThreadStartHooks/ThreadStopHooks run once per worker, inside that
	// worker's own goroutine at main-loop steps 1 and 4 -- spec.md's
	// "regular-thread start/stop" hooks.
	ThreadStartHooks []ThreadHook
	ThreadStopHooks  []ThreadHook

	exit atomic.Bool
	eg   *errgroup.Group
}

// NewDomain creates a domain of n workers, one per CPU by default per
// spec.md §4.J's "regular domain... one worker per CPU by default" -- the
// caller picks n explicitly since NumCPU's default belongs at the call
// site, not baked into this package.
func NewDomain(name string, n uint64) (*Domain, error) {
	if n == 0 {
		return nil, ErrorParamEmpty.Error(fmt.Errorf("domain %q: need at least one worker", name))
	}
	bootID, err := hashuuid.GenerateUUID()
	if err != nil {
		return nil, ErrorParamEmpty.Error(err)
	}

	d := &Domain{Name: name, BootID: bootID}
	for i := uint64(0); i < n; i++ {
		w, err := New(i)
		if err != nil {
			return nil, err
		}
		d.Workers = append(d.Workers, w)
	}
	return d, nil
}

// SetLogger attaches fn to every worker the domain owns, so a single call
// after NewDomain covers the whole fleet instead of setting Worker.Log one
// worker at a time.
func (d *Domain) SetLogger(fn liblog.FuncLog) {
	for _, w := range d.Workers {
		w.Log = fn
	}
}

// SetLimiter attaches the same semaphore.Semaphore to every worker the
// domain owns, so one limit bounds the total number of cross-worker
// Submit calls in flight across the whole domain rather than per worker.
func (d *Domain) SetLimiter(sem libsem.Semaphore) {
	for _, w := range d.Workers {
		w.Limiter = sem
	}
}

// SetMetrics attaches the same metrics.Runtime to every worker the domain
// owns, so one collector set covers the whole fleet, each worker's samples
// distinguished by its own "worker" label value rather than by a separate
// registry per worker.
func (d *Domain) SetMetrics(r *libmet.Runtime) {
	for _, w := range d.Workers {
		w.Metrics = r
	}
}

// AddThreadStartHook/AddThreadStopHook/AddStartHook/AddStopHook register a
// hook in its respective list; order of registration is execution order.
func (d *Domain) AddThreadStartHook(h ThreadHook) { d.ThreadStartHooks = append(d.ThreadStartHooks, h) }
func (d *Domain) AddThreadStopHook(h ThreadHook)  { d.ThreadStopHooks = append(d.ThreadStopHooks, h) }
func (d *Domain) AddStartHook(h DomainHook)       { d.StartHooks = append(d.StartHooks, h) }
func (d *Domain) AddStopHook(h DomainHook)        { d.StopHooks = append(d.StopHooks, h) }

// Worker returns the worker with the given id, or nil if out of range.
func (d *Domain) Worker(id uint64) *Worker {
	if id >= uint64(len(d.Workers)) {
		return nil
	}
	return d.Workers[id]
}

// Start runs the domain's common-start hooks in registration order (e.g. a
// server's Listen + register_work submission), then launches every
// worker's main loop on its own goroutine via errgroup.Group, matching
// spec.md §4.J/§4.K's common-start/thread-start split: hooks that touch
// global state (the server list, a listener fd) run once here, on the
// caller's goroutine, before any worker thread exists to race with them.
func (d *Domain) Start() error {
	for _, h := range d.StartHooks {
		if err := h(d); err != nil {
			return err
		}
	}

	d.eg = new(errgroup.Group)
	for _, w := range d.Workers {
		w := w
		d.eg.Go(func() error {
			return d.runWorker(w)
		})
	}
	return nil
}

// runWorker is one worker's main function, spec.md §4.K steps 1-4.
func (d *Domain) runWorker(w *Worker) error {
	unbind := w.Bind()
	defer unbind()

	for _, h := range d.ThreadStartHooks {
		h(w)
	}

	w.RunLoop(d.exit.Load)

	for _, h := range d.ThreadStopHooks {
		h(w)
	}
	return nil
}

// Stop sets the domain's exit flag and wakes every worker out of its
// kernel poll so each notices the flag within bounded time instead of
// waiting out maxPollTimeout, matching spec.md §5's "the exit flag (atomic,
// store-release/load-acquire)" global-state description.
func (d *Domain) Stop() {
	d.exit.Store(true)
	for _, w := range d.Workers {
		_ = w.WakeUp()
	}
}

// Join waits for every worker's main loop to return, then runs the
// domain's common-stop hooks, matching spec.md §4.K's "join all workers
// and run common-stop hooks".
func (d *Domain) Join() error {
	var err error
	if d.eg != nil {
		err = d.eg.Wait()
	}
	for _, h := range d.StopHooks {
		if herr := h(d); herr != nil && err == nil {
			err = herr
		}
	}
	for _, w := range d.Workers {
		_ = w.Close()
	}
	return err
}
