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

// Package selfpipe implements the one-shot cross-worker wakeup: an
// eventfd-backed pipe whose read end a worker registers as a dispatcher
// input source, so a worker blocked in the kernel poll can be woken within
// bounded time by another worker delivering cross-submitted work.
package selfpipe

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/fibercore/errors"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgSelfPipe
	ErrorEventFDCreate
	ErrorWrite
	ErrorRead
)

func init() {
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorParamEmpty:
		return "given parameter is empty"
	case ErrorEventFDCreate:
		return "eventfd creation failed"
	case ErrorWrite:
		return "self-pipe write failed"
	case ErrorRead:
		return "self-pipe read failed"
	}
	return ""
}

// SelfPipe is backed by a single eventfd: the notify/drain protocol only
// needs a counter, not a byte stream, so eventfd is the correct primitive
// over a plain pipe(2) pair.
type SelfPipe struct {
	fd    int
	ready atomic.Bool
}

// New creates a non-blocking eventfd.
func New() (*SelfPipe, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, ErrorEventFDCreate.Error(err)
	}
	return &SelfPipe{fd: fd}, nil
}

// FD is the read end to register with the dispatcher as an input source.
func (p *SelfPipe) FD() int { return p.fd }

// Notify is idempotent: it writes only if no notification is already
// pending, via a single atomic flag, so concurrent notifiers from several
// worker goroutines never pile up more than one pending wakeup.
func (p *SelfPipe) Notify() error {
	if !p.ready.CompareAndSwap(false, true) {
		return nil
	}

	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(p.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return ErrorWrite.Error(err)
	}
	return nil
}

// Drain is called by the reading worker after waking: it reads until
// EAGAIN and clears the ready flag, discarding the accumulated count.
func (p *SelfPipe) Drain() error {
	var buf [8]byte
	for {
		_, err := unix.Read(p.fd, buf[:])
		if err == nil {
			continue
		}
		if err == unix.EAGAIN {
			break
		}
		if err == unix.EINTR {
			continue
		}
		return ErrorRead.Error(err)
	}
	p.ready.Store(false)
	return nil
}

// Close releases the eventfd.
func (p *SelfPipe) Close() error {
	return unix.Close(p.fd)
}
