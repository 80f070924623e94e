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

package socket

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	libfbr "github.com/sabouaram/fibercore/fiber"
	libtmr "github.com/sabouaram/fibercore/timer"
)

// Read implements spec.md §4.I's read contract: try the syscall, and if it
// would block, park the calling fiber on the sink's input direction (with a
// timer-backed deadline when a read timeout is configured) until the
// dispatcher or the timer wakes it, then retry.
func (s *Socket) Read(buf []byte) (int, error) {
	if s.sink.InputClosed() || s.closed {
		return -1, ErrorClosed.Error(unix.EBADF)
	}

	for {
		n, err := unix.Read(s.sink.FD, buf)
		if err == nil {
			// A short, positive read does NOT trigger re-arm: the next call
			// re-issues the syscall first, per the "read until EAGAIN"
			// discipline -- only an actual EAGAIN clears readiness and asks
			// the dispatcher to re-arm.
			return n, nil
		}
		if err == unix.EINTR {
			continue
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return -1, ErrorSyscall.Error(err)
		}

		s.sink.ClearInputReady()
		timedOut, perr := s.parkInput()
		if perr != nil {
			return -1, perr
		}
		if timedOut {
			if s.readTimeout == 0 {
				return -1, ErrorTimeout.Error(unix.EAGAIN)
			}
			return -1, ErrorTimeout.Error(fmt.Errorf("read: %w", unix.ETIMEDOUT))
		}
		if s.sink.InputClosed() || s.closed {
			return -1, ErrorClosed.Error(unix.EBADF)
		}
		// loop: retry the syscall now that we've woken
	}
}

// parkInput arms an optional deadline, parks the calling fiber on the
// sink's input direction, and reports whether the wakeup was a timeout.
func (s *Socket) parkInput() (timedOut bool, err error) {
	cur := s.sch.Current()
	s.sink.InputFiber = cur
	s.disp.TriggerInput(s.sink)

	var entry *libtmr.Entry
	if s.readTimeout > 0 {
		entry = &libtmr.Entry{
			Deadline: time.Now().Add(s.readTimeout).UnixMicro(),
			Tag:      libtmr.TagSleep,
			Arg:      cur,
		}
		s.tq.Insert(entry)
	}

	s.sch.Block()

	if cur.ShouldTestCancel() {
		// Abort panics on this goroutine and unwinds straight out of Read,
		// running every deferred cleanup between here and the fiber's entry
		// point before the scheduler recovers it as Canceled -- parking here
		// forever with the flag merely set would never retire the fiber.
		s.sch.Abort(libfbr.Canceled)
	}

	if entry != nil {
		// Remove succeeds only if the entry never fired: the dispatcher (or
		// Close) woke us first, so this was not a timeout. If it had
		// already fired, Remove reports false and the wakeup was the timer.
		if !s.tq.Remove(entry) {
			timedOut = true
		}
	}
	return timedOut, nil
}
