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

package workqueue

import "sync/atomic"

type node struct {
	next atomic.Pointer[node]
	item *Item
}

// Shared is a Michael & Scott lock-free queue: any number of producer
// workers may Push concurrently; exactly one consumer -- the owning worker
// -- calls Pop. No mutex, no channel: a CAS-linked list is the idiomatic
// shape for a cross-thread submission queue where a blocking channel would
// force a producer to wait on the consumer's buffer capacity.
type Shared struct {
	head atomic.Pointer[node]
	tail atomic.Pointer[node]
}

// NewShared returns an empty shared queue.
func NewShared() *Shared {
	dummy := &node{}
	q := &Shared{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Push enqueues it. Safe to call from any goroutine.
func (q *Shared) Push(it *Item) {
	n := &node{item: it}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				return
			}
		} else {
			// Tail lagged behind a completed-but-unswung append; help it
			// along before retrying our own insert.
			q.tail.CompareAndSwap(tail, next)
		}
	}
}

// Pop dequeues the oldest item, or reports false if the queue was empty at
// the moment of the attempt. Must only be called by the owning worker.
func (q *Shared) Pop() (*Item, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if head == tail {
			if next == nil {
				return nil, false
			}
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		it := next.item
		if q.head.CompareAndSwap(head, next) {
			return it, true
		}
	}
}

// DrainInto pops every currently available item and hands each to fn, in
// FIFO order, matching the worker main loop's "drain shared into private"
// step.
func (q *Shared) DrainInto(fn func(it *Item)) {
	for {
		it, ok := q.Pop()
		if !ok {
			return
		}
		fn(it)
	}
}
