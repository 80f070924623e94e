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

// Package socket layers the read/write/close/connect contract of a
// non-blocking stream endpoint on top of a dispatcher.Sink: parking the
// calling fiber on EAGAIN, re-arming through the dispatcher, and waking on
// readiness or timeout exactly as spec.md's socket sink component describes.
// Every method here runs on the socket's owning worker fiber; nothing in
// this package is safe to call from a foreign worker.
package socket

import (
	"time"

	"golang.org/x/time/rate"

	libptc "github.com/sabouaram/fibercore/network/protocol"

	libdsp "github.com/sabouaram/fibercore/dispatcher"
	liberr "github.com/sabouaram/fibercore/errors"
	libfbr "github.com/sabouaram/fibercore/fiber"
	libsch "github.com/sabouaram/fibercore/scheduler"
	libtmr "github.com/sabouaram/fibercore/timer"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgSocket
	ErrorClosed
	ErrorTimeout
	ErrorSyscall
)

func init() {
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorParamEmpty:
		return "given parameter is empty"
	case ErrorClosed:
		return "socket is closed"
	case ErrorTimeout:
		return "socket operation timed out"
	case ErrorSyscall:
		return "socket syscall failed"
	}
	return ""
}

// Option is a bitset of per-socket behavior flags, the same shape as the
// protocol vtable's option enumeration in spec.md §4.I.
type Option uint8

const (
	// OptInbound: the input handler drives the connection; Reader is the
	// entry point and Writer is optional. This is the default orientation.
	OptInbound Option = 1 << iota
	// OptOutbound: the inverse of OptInbound -- Writer drives.
	OptOutbound
	// OptKeepAlive enables SO_KEEPALIVE.
	OptKeepAlive
	// OptNoDelay enables TCP_NODELAY.
	OptNoDelay
	// OptBound pins the accepted connection to the listener's own worker
	// instead of letting the server round-robin it.
	OptBound
)

func (o Option) has(f Option) bool { return o&f != 0 }

// Protocol is the user-supplied vtable a server or client socket is built
// from: Create allocates whatever per-connection state the caller needs,
// Destroy releases it, Reader/Writer are fiber entries spawned on
// readiness per the Inbound/Outbound orientation.
type Protocol struct {
	Network libptc.NetworkProtocol
	Options Option

	Create  func(s *Socket) (any, error)
	Destroy func(s *Socket, state any)
	Reader  func(s *Socket, state any)
	Writer  func(s *Socket, state any)
}

// Socket wraps a dispatcher.Sink with the deadline/peer-address/close-flag
// state spec.md §4.I's data model calls for. Buffered mode additionally
// populates rbuf/tbuf (see buffered.go).
type Socket struct {
	sink *libdsp.Sink
	disp *libdsp.Dispatcher
	sch  *libsch.Scheduler
	tq   *libtmr.Queue

	proto *Protocol
	state any

	peer string

	readTimeout  time.Duration
	writeTimeout time.Duration

	readerShutdown bool
	writerShutdown bool
	closed         bool
	reset          bool

	// buffered-mode state; nil for the unbuffered contract.
	rbuf *chunkBuffer
	tbuf *chunkBuffer

	// limiter, when set, paces Write's byte throughput; nil means
	// unthrottled, the historical behavior.
	limiter *rate.Limiter
}

// SetWriteLimiter attaches a token-bucket rate limiter to this socket's
// Write calls; pass nil to remove any limit already set.
func (s *Socket) SetWriteLimiter(l *rate.Limiter) { s.limiter = l }

// New wraps fd (already non-blocking) as a Socket bound to sch/disp/tq, with
// peer as the remote address for logging/diagnostics. The caller must still
// Register it with the dispatcher before use.
func New(fd int, owner uint64, peer string, proto *Protocol, sch *libsch.Scheduler, disp *libdsp.Dispatcher, tq *libtmr.Queue) *Socket {
	return &Socket{
		sink:  libdsp.NewSink(fd, owner),
		disp:  disp,
		sch:   sch,
		tq:    tq,
		proto: proto,
		peer:  peer,
	}
}

func (s *Socket) FD() int             { return s.sink.FD }
func (s *Socket) Peer() string        { return s.peer }
func (s *Socket) Sink() *libdsp.Sink  { return s.sink }
func (s *Socket) Protocol() *Protocol { return s.proto }
func (s *Socket) State() any          { return s.state }
func (s *Socket) SetState(v any)      { s.state = v }

func (s *Socket) IsClosed() bool         { return s.closed }
func (s *Socket) IsReaderShutdown() bool { return s.readerShutdown || s.closed }
func (s *Socket) IsWriterShutdown() bool { return s.writerShutdown || s.closed }

// SetReadTimeout/SetWriteTimeout configure the deadline applied to the next
// Read/Write call; zero means block indefinitely.
func (s *Socket) SetReadTimeout(d time.Duration)  { s.readTimeout = d }
func (s *Socket) SetWriteTimeout(d time.Duration) { s.writeTimeout = d }

// Register arms the sink's directions per the protocol's orientation and
// registers it with the dispatcher.
func (s *Socket) Register() error {
	if s.proto.Options.has(OptInbound) {
		s.sink.InputMode = libdsp.ModeLevel
	}
	if s.proto.Options.has(OptOutbound) {
		s.sink.OutputMode = libdsp.ModeLevel
	}
	return s.disp.Register(s.sink)
}
