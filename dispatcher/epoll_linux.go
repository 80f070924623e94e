//go:build linux

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

package dispatcher

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/fibercore/errors"
	libfbr "github.com/sabouaram/fibercore/fiber"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgDispatcher
	ErrorEpollCreate
	ErrorEpollCtl
	ErrorEpollWait
)

func init() {
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorParamEmpty:
		return "given parameter is empty"
	case ErrorEpollCreate:
		return "epoll_create1 failed"
	case ErrorEpollCtl:
		return "epoll_ctl failed"
	case ErrorEpollWait:
		return "epoll_wait failed"
	}
	return ""
}

// maxEvents bounds one epoll_wait batch; sinks beyond this simply wait for
// the next poll iteration.
const maxEvents = 256

// Dispatcher is the epoll-backed event dispatcher for one worker. It is not
// safe for concurrent use.
type Dispatcher struct {
	epfd int
	run  RunFunc

	sinks   map[int]*Sink
	pending map[int]*Sink // change-list: sinks whose kernel mask needs syncing

	events []unix.EpollEvent
}

// New creates an epoll instance. run is invoked whenever a parked fiber
// should be made runnable again.
func New(run RunFunc) (*Dispatcher, error) {
	if run == nil {
		return nil, ErrorParamEmpty.Error(fmt.Errorf("dispatcher: nil run callback"))
	}

	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrorEpollCreate.Error(err)
	}

	return &Dispatcher{
		epfd:    fd,
		run:     run,
		sinks:   make(map[int]*Sink),
		pending: make(map[int]*Sink),
		events:  make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Register places sink into the pending-change list; the effective kernel
// mask is applied on the next Poll.
func (d *Dispatcher) Register(s *Sink) error {
	if s == nil {
		return ErrorParamEmpty.Error(fmt.Errorf("dispatcher: nil sink"))
	}
	d.sinks[s.FD] = s
	d.pending[s.FD] = s
	return nil
}

// TriggerInput re-arms the input direction: for a one-shot direction, if
// readiness is already flagged (the kernel delivered it before the caller
// parked again), synthesize a wakeup instead of losing it; otherwise
// nothing to do until the next Poll reports it.
func (d *Dispatcher) TriggerInput(s *Sink) {
	if s.InputMode == ModeOneShot && s.inputReady && s.InputFiber != nil {
		f := s.InputFiber
		s.InputFiber = nil
		d.run(f)
	}
}

// TriggerOutput mirrors TriggerInput for the output direction.
func (d *Dispatcher) TriggerOutput(s *Sink) {
	if s.OutputMode == ModeOneShot && s.outputReady && s.OutputFiber != nil {
		f := s.OutputFiber
		s.OutputFiber = nil
		d.run(f)
	}
}

// Close removes sink from the kernel and this dispatcher's bookkeeping. Any
// fiber still parked on either direction is woken so it observes EBADF at
// its next syscall attempt; the caller is responsible for setting the
// closed flags beforehand via MarkClosed.
func (d *Dispatcher) Close(s *Sink) error {
	s.closing = true
	if s.registered {
		_ = unix.EpollCtl(d.epfd, unix.EPOLL_CTL_DEL, s.FD, nil)
	}
	delete(d.sinks, s.FD)
	delete(d.pending, s.FD)

	if f := s.InputFiber; f != nil {
		s.InputFiber = nil
		d.run(f)
	}
	if f := s.OutputFiber; f != nil {
		s.OutputFiber = nil
		d.run(f)
	}
	return nil
}

// MarkClosed sets the input/output-closed flags used by Close's wakeup and
// by the socket layer's read/write contract.
func (s *Sink) MarkClosed(input, output bool) {
	if input {
		s.inputClosed = true
	}
	if output {
		s.outputClosed = true
	}
}

func effectiveMask(s *Sink) uint32 {
	var mask uint32
	if s.wantInput() {
		mask |= unix.EPOLLIN
	}
	if s.wantOutput() {
		mask |= unix.EPOLLOUT
	}
	if mask != 0 {
		mask |= unix.EPOLLET
	}
	return mask
}

// syncPending applies the kernel mask for every sink touched since the last
// Poll: ADD for a not-yet-registered sink, MOD otherwise.
func (d *Dispatcher) syncPending() error {
	for fd, s := range d.pending {
		mask := effectiveMask(s)
		ev := unix.EpollEvent{Events: mask, Fd: int32(fd)}

		op := unix.EPOLL_CTL_MOD
		if !s.registered {
			op = unix.EPOLL_CTL_ADD
		}

		if err := unix.EpollCtl(d.epfd, op, fd, &ev); err != nil {
			return ErrorEpollCtl.Error(err)
		}
		s.registered = true
	}
	d.pending = make(map[int]*Sink)
	return nil
}

// SinkCount reports how many sinks are presently registered, for a metrics
// collector to sample as the active-sink gauge.
func (d *Dispatcher) SinkCount() int { return len(d.sinks) }

// Poll applies pending registration changes, blocks in the kernel for up to
// timeout, and wakes any fiber parked on a direction the kernel reported
// ready. A negative timeout blocks indefinitely.
func (d *Dispatcher) Poll(timeout time.Duration) error {
	if err := d.syncPending(); err != nil {
		return err
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	n, err := unix.EpollWait(d.epfd, d.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return ErrorEpollWait.Error(err)
	}

	for i := 0; i < n; i++ {
		ev := d.events[i]
		s, ok := d.sinks[int(ev.Fd)]
		if !ok {
			continue
		}
		d.dispatchOne(s, ev.Events)
	}
	return nil
}

// dispatchOne applies one kernel event to a sink, in input-before-output
// order, per the dispatcher's ordering guarantee for a single sink within
// one poll batch.
func (d *Dispatcher) dispatchOne(s *Sink, events uint32) {
	errored := events&(unix.EPOLLERR|unix.EPOLLHUP) != 0

	if events&unix.EPOLLIN != 0 || errored {
		s.inputReady = true
		if errored {
			s.inputError = true
		}
		if f := s.InputFiber; f != nil {
			s.InputFiber = nil
			d.run(f)
		}
	}

	if events&unix.EPOLLOUT != 0 || errored {
		s.outputReady = true
		if errored {
			s.outputError = true
		}
		if f := s.OutputFiber; f != nil {
			s.OutputFiber = nil
			d.run(f)
		}
	}
}
