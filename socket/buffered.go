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
	"bytes"

	"golang.org/x/sys/unix"
)

// chunkSize is the fixed size of one buffer segment; chosen to match one
// typical Ethernet-MTU-sized read/write so a single chunk usually absorbs
// one syscall's worth of data.
const chunkSize = 4096

// chunk is one fixed-size segment in a chunkBuffer's list. filled is how
// much of data currently holds real bytes, starting at off.
type chunk struct {
	data   [chunkSize]byte
	off    int
	filled int
}

func (c *chunk) empty() []byte  { return c.data[c.filled:] }
func (c *chunk) filledView() []byte { return c.data[c.off:c.filled] }
func (c *chunk) isDrained() bool    { return c.off >= c.filled }

// chunkBuffer is a list of fixed-size chunks: fill/flush move bytes between
// the socket and the chunk list via readv/writev across up to maxIovecs
// chunks at a time; find scans for a delimiter across chunk boundaries;
// rget/radd expose and advance the current read cursor without copying.
type chunkBuffer struct {
	chunks []*chunk
}

const maxIovecs = 8

func newChunkBuffer() *chunkBuffer { return &chunkBuffer{} }

// reserveEmpty appends fresh chunks until there are at least n with spare
// room, returning views of their empty trailing segments for Readv.
func (b *chunkBuffer) reserveEmpty(n int) [][]byte {
	iov := make([][]byte, 0, n)
	for _, c := range b.chunks {
		if len(iov) >= n {
			break
		}
		if e := c.empty(); len(e) > 0 {
			iov = append(iov, e)
		}
	}
	for len(iov) < n {
		c := &chunk{}
		b.chunks = append(b.chunks, c)
		iov = append(iov, c.empty())
	}
	return iov
}

// commitFilled records that n bytes were actually written into the empty
// trailing segments handed out by reserveEmpty, in order.
func (b *chunkBuffer) commitFilled(n int) {
	for _, c := range b.chunks {
		if n <= 0 {
			return
		}
		room := len(c.empty())
		if room == 0 {
			continue
		}
		take := room
		if take > n {
			take = n
		}
		c.filled += take
		n -= take
	}
}

// filledIovecs returns views of the leading filled (unsent/unread)
// segments of up to maxIovecs chunks, for Writev.
func (b *chunkBuffer) filledIovecs() [][]byte {
	iov := make([][]byte, 0, maxIovecs)
	for _, c := range b.chunks {
		if len(iov) >= maxIovecs {
			break
		}
		if v := c.filledView(); len(v) > 0 {
			iov = append(iov, v)
		}
	}
	return iov
}

// commitConsumed advances the read/send cursor of the leading chunks by n
// bytes, dropping any chunk that becomes fully drained.
func (b *chunkBuffer) commitConsumed(n int) {
	for n > 0 && len(b.chunks) > 0 {
		c := b.chunks[0]
		avail := c.filled - c.off
		if avail == 0 {
			b.chunks = b.chunks[1:]
			continue
		}
		take := avail
		if take > n {
			take = n
		}
		c.off += take
		n -= take
		if c.isDrained() {
			b.chunks = b.chunks[1:]
		}
	}
}

// buffered returns the number of unread/unsent bytes currently held.
func (b *chunkBuffer) buffered() int {
	n := 0
	for _, c := range b.chunks {
		n += c.filled - c.off
	}
	return n
}

// EnableBuffering installs the read/transmit chunk buffers, switching the
// socket into the buffered mode sketched in spec.md §4.I: fill/flush move
// bytes in bulk, find/rget/radd expose the read cursor without an extra
// copy, and the unbuffered read/write contract's invariants (park-on-EAGAIN,
// timeout, close wakeup) are preserved underneath.
func (s *Socket) EnableBuffering() {
	s.rbuf = newChunkBuffer()
	s.tbuf = newChunkBuffer()
}

// Fill performs one readv into the read buffer's empty trailing segments,
// parking on EAGAIN exactly like the unbuffered Read.
func (s *Socket) Fill() (int, error) {
	if s.sink.InputClosed() || s.closed {
		return -1, ErrorClosed.Error(unix.EBADF)
	}

	for {
		iov := s.rbuf.reserveEmpty(maxIovecs)
		n, err := unix.Readv(s.sink.FD, iov)
		if err == nil {
			s.rbuf.commitFilled(n)
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
			return -1, ErrorTimeout.Error(unix.ETIMEDOUT)
		}
		if s.sink.InputClosed() || s.closed {
			return -1, ErrorClosed.Error(unix.EBADF)
		}
	}
}

// Flush performs one writev from the transmit buffer's filled leading
// segments, parking on EAGAIN exactly like the unbuffered Write.
func (s *Socket) Flush() (int, error) {
	if s.sink.OutputClosed() || s.closed {
		return -1, ErrorClosed.Error(unix.EBADF)
	}
	iov := s.tbuf.filledIovecs()
	if len(iov) == 0 {
		return 0, nil
	}

	for {
		n, err := unix.Writev(s.sink.FD, iov)
		if err == nil {
			s.tbuf.commitConsumed(n)
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
			return -1, ErrorTimeout.Error(unix.ETIMEDOUT)
		}
		if s.sink.OutputClosed() || s.closed {
			return -1, ErrorClosed.Error(unix.EBADF)
		}
		iov = s.tbuf.filledIovecs()
		if len(iov) == 0 {
			return 0, nil
		}
	}
}

// Find scans the read buffer for delim, returning the byte offset of its
// first occurrence from the current read cursor, or -1 if not present in
// what's currently buffered (the caller should Fill and retry).
func (s *Socket) Find(delim byte) int {
	off := 0
	for _, c := range s.rbuf.chunks {
		v := c.filledView()
		if i := bytes.IndexByte(v, delim); i >= 0 {
			return off + i
		}
		off += len(v)
	}
	return -1
}

// RGet exposes up to n unread bytes from the current read cursor without
// advancing it, copying across chunk boundaries only if the caller asked
// for more than one chunk holds contiguously.
func (s *Socket) RGet(n int) []byte {
	out := make([]byte, 0, n)
	for _, c := range s.rbuf.chunks {
		if len(out) >= n {
			break
		}
		v := c.filledView()
		need := n - len(out)
		if need < len(v) {
			v = v[:need]
		}
		out = append(out, v...)
	}
	return out
}

// RAdd advances the read cursor by n bytes, dropping any chunk fully
// consumed.
func (s *Socket) RAdd(n int) { s.rbuf.commitConsumed(n) }

// Buffered reports how many unread bytes the read buffer currently holds.
func (s *Socket) Buffered() int { return s.rbuf.buffered() }

// Stage appends p to the transmit buffer's trailing empty segments ahead
// of a Flush.
func (s *Socket) Stage(p []byte) {
	for len(p) > 0 {
		empty := s.tbuf.reserveEmpty(1)[0]
		n := copy(empty, p)
		s.tbuf.commitFilled(n)
		p = p[n:]
	}
}
