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

// Write is the mirror image of Read: it parks on the output direction,
// using write_timeout/output_fiber/trigger_output in place of their input
// counterparts.
func (s *Socket) Write(buf []byte) (int, error) {
	if s.sink.OutputClosed() || s.closed {
		return -1, ErrorClosed.Error(unix.EBADF)
	}

	if s.limiter != nil {
		// A single reservation larger than the burst never succeeds, so the
		// bytes are reserved in burst-sized pieces; the last one's delay is
		// the wait for the whole buffer.
		now := time.Now()
		var d time.Duration
		for left := len(buf); left > 0; {
			k := left
			if b := s.limiter.Burst(); b > 0 && k > b {
				k = b
			}
			if r := s.limiter.ReserveN(now, k); r.OK() {
				d = r.DelayFrom(now)
			}
			left -= k
		}
		if d > 0 {
			s.sleep(d)
			if s.sink.OutputClosed() || s.closed {
				return -1, ErrorClosed.Error(unix.EBADF)
			}
		}
	}

	for {
		n, err := unix.Write(s.sink.FD, buf)
		if err == nil {
			return n, nil
		}
		if err == unix.EINTR {
			continue
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return -1, ErrorSyscall.Error(err)
		}

		s.sink.ClearOutputReady()
		timedOut, perr := s.parkOutput()
		if perr != nil {
			return -1, perr
		}
		if timedOut {
			if s.writeTimeout == 0 {
				return -1, ErrorTimeout.Error(unix.EAGAIN)
			}
			return -1, ErrorTimeout.Error(fmt.Errorf("write: %w", unix.ETIMEDOUT))
		}
		if s.sink.OutputClosed() || s.closed {
			return -1, ErrorClosed.Error(unix.EBADF)
		}
	}
}

// sleep parks the calling fiber for d without touching the dispatcher --
// used by the write-side rate limiter, which waits on a token bucket, not
// on socket readiness.
func (s *Socket) sleep(d time.Duration) {
	cur := s.sch.Current()
	entry := &libtmr.Entry{
		Deadline: time.Now().Add(d).UnixMicro(),
		Tag:      libtmr.TagSleep,
		Arg:      cur,
	}
	s.tq.Insert(entry)
	s.sch.Block()
}

func (s *Socket) parkOutput() (timedOut bool, err error) {
	cur := s.sch.Current()
	s.sink.OutputFiber = cur
	s.disp.TriggerOutput(s.sink)

	var entry *libtmr.Entry
	if s.writeTimeout > 0 {
		entry = &libtmr.Entry{
			Deadline: time.Now().Add(s.writeTimeout).UnixMicro(),
			Tag:      libtmr.TagSleep,
			Arg:      cur,
		}
		s.tq.Insert(entry)
	}

	s.sch.Block()

	if cur.ShouldTestCancel() {
		// See parkInput's comment in read.go: Abort is the only primitive
		// that actually runs cleanup and retires the fiber as Canceled.
		s.sch.Abort(libfbr.Canceled)
	}

	if entry != nil {
		if !s.tq.Remove(entry) {
			timedOut = true
		}
	}
	return timedOut, nil
}
