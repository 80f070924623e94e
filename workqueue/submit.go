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

// Target is whatever a submitter needs to know about the destination
// worker: its own id, its shared inbound queue, and how to wake it if it
// might be asleep in the kernel poll.
type Target struct {
	WorkerID uint64
	Shared   *Shared
	Notify   func() error
}

// Submit implements the policy from spec.md 4.H: local self-submission
// goes straight onto the private queue (no synchronization, no wakeup
// needed -- the caller is already the target worker); cross-worker
// submission goes onto the target's shared queue followed by a self-pipe
// notify so a worker parked in the kernel poll wakes within bounded time.
func Submit(fromWorkerID uint64, to Target, private *Private, it *Item) error {
	if to.WorkerID == fromWorkerID {
		private.Push(it)
		return nil
	}

	to.Shared.Push(it)
	if to.Notify != nil {
		return to.Notify()
	}
	return nil
}
