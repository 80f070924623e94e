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
)

// ShutdownReader sets the input-closed flag, issues shutdown(SHUT_RD), and
// wakes any fiber currently parked reading so it observes EBADF.
func (s *Socket) ShutdownReader() error {
	s.readerShutdown = true
	s.sink.MarkClosed(true, false)
	_ = unix.Shutdown(s.sink.FD, unix.SHUT_RD)
	if f := s.sink.InputFiber; f != nil {
		s.sink.InputFiber = nil
		s.sch.Run(f)
	}
	return nil
}

// ShutdownWriter mirrors ShutdownReader for the output direction.
func (s *Socket) ShutdownWriter() error {
	s.writerShutdown = true
	s.sink.MarkClosed(false, true)
	_ = unix.Shutdown(s.sink.FD, unix.SHUT_WR)
	if f := s.sink.OutputFiber; f != nil {
		s.sink.OutputFiber = nil
		s.sch.Run(f)
	}
	return nil
}

// Close is idempotent: it marks both directions closed, removes the sink
// from the dispatcher (which itself wakes any still-parked fiber), and
// closes the underlying file descriptor.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.sink.MarkClosed(true, true)
	_ = s.disp.Close(s.sink)
	return unix.Close(s.sink.FD)
}

// Reset forces an RST instead of a graceful FIN by setting SO_LINGER{on,0}
// before closing.
func (s *Socket) Reset() error {
	s.reset = true
	_ = unix.SetsockoptLinger(s.sink.FD, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0})
	return s.Close()
}

func (s *Socket) IsReset() bool { return s.reset }
