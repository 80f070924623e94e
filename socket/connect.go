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
	"golang.org/x/sys/unix"

	libdsp "github.com/sabouaram/fibercore/dispatcher"
)

// Connect performs a non-blocking connect: if the kernel reports
// EINPROGRESS, it registers the sink for one-shot output, parks, and on
// wakeup checks SO_ERROR to learn the final outcome.
func (s *Socket) Connect(sa unix.Sockaddr) error {
	err := unix.Connect(s.sink.FD, sa)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return ErrorSyscall.Error(err)
	}

	s.sink.OutputMode = libdsp.ModeOneShot
	if regErr := s.disp.Register(s.sink); regErr != nil {
		return regErr
	}

	cur := s.sch.Current()
	s.sink.OutputFiber = cur
	s.sch.Block()

	if s.sink.OutputClosed() || s.closed {
		return ErrorClosed.Error(unix.EBADF)
	}

	soerr, serr := unix.GetsockoptInt(s.sink.FD, unix.SOL_SOCKET, unix.SO_ERROR)
	if serr != nil {
		return ErrorSyscall.Error(serr)
	}
	if soerr != 0 {
		return ErrorSyscall.Error(unix.Errno(soerr))
	}
	return nil
}
