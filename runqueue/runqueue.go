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

// Package runqueue implements the priority-aware, multi-list ready queue used
// by a single worker's scheduler. It is not safe for concurrent use: the
// scheduler that owns it never touches it from more than one goroutine.
package runqueue

import (
	"github.com/bits-and-blooms/bitset"

	libfbr "github.com/sabouaram/fibercore/fiber"
)

// Priorities is the fixed number of priority lanes. The lowest-priority lane
// (Priorities-1) is reserved for system fibers such as the per-worker
// poll/boot loop.
const Priorities = 8

// EventLoopPriority is the priority reserved for the dispatcher's own
// house-keeping fibers.
const EventLoopPriority = Priorities - 1

type lane struct {
	head *libfbr.Fiber
	tail *libfbr.Fiber
}

// Queue is a fixed array of FIFO lists indexed by priority, plus a summary
// bitmap of non-empty priorities so Get is O(1) via count-trailing-zeros.
type Queue struct {
	lanes   [Priorities]lane
	summary *bitset.BitSet
	count   int
}

// New returns an empty run queue.
func New() *Queue {
	return &Queue{summary: bitset.New(Priorities)}
}

// Len reports the total number of queued fibers across all priorities.
func (q *Queue) Len() int { return q.count }

// Empty reports whether the queue holds no fibers.
func (q *Queue) Empty() bool { return q.count == 0 }

func clampPriority(p uint8) uint {
	if p >= Priorities {
		return Priorities - 1
	}
	return uint(p)
}

// Put appends f to the tail of its priority's FIFO.
func (q *Queue) Put(f *libfbr.Fiber) {
	p := clampPriority(f.Priority())
	f.SetNext(nil)

	l := &q.lanes[p]
	if l.tail == nil {
		l.head, l.tail = f, f
	} else {
		l.tail.SetNext(f)
		l.tail = f
	}
	q.summary.Set(p)
	q.count++
}

// Get returns and removes the head of the lowest-indexed non-empty priority,
// or nil if the queue is empty.
func (q *Queue) Get() *libfbr.Fiber {
	p, ok := q.summary.NextSet(0)
	if !ok {
		return nil
	}

	l := &q.lanes[p]
	f := l.head
	if f == nil {
		// defensive: summary said non-empty but lane is empty, resync.
		q.summary.Clear(p)
		return q.Get()
	}

	l.head = f.Next()
	if l.head == nil {
		l.tail = nil
		q.summary.Clear(p)
	}
	f.SetNext(nil)
	q.count--
	return f
}

// Remove deletes f from its priority lane if present there, scanning that
// single lane's FIFO. Used to pull a fiber back out of the run queue (e.g. on
// cancellation) before it is scheduled. O(lane length).
func (q *Queue) Remove(f *libfbr.Fiber) bool {
	p := clampPriority(f.Priority())
	l := &q.lanes[p]

	var prev *libfbr.Fiber
	cur := l.head
	for cur != nil {
		if cur == f {
			if prev == nil {
				l.head = cur.Next()
			} else {
				prev.SetNext(cur.Next())
			}
			if cur == l.tail {
				l.tail = prev
			}
			cur.SetNext(nil)
			q.count--
			if l.head == nil {
				q.summary.Clear(p)
			}
			return true
		}
		prev = cur
		cur = cur.Next()
	}
	return false
}
