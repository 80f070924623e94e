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

package server

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	libdsp "github.com/sabouaram/fibercore/dispatcher"
	libfbr "github.com/sabouaram/fibercore/fiber"
	librqu "github.com/sabouaram/fibercore/runqueue"
	libsch "github.com/sabouaram/fibercore/scheduler"
	libsck "github.com/sabouaram/fibercore/socket"
)

// PlaceFunc hands a freshly-accepted connection (already non-blocking) and
// its peer address string to whatever worker/placement policy the caller
// wants -- the listener's own worker for OptBound, or a round-robin choice
// across the domain otherwise, per spec.md §4.I's accept protocol.
type PlaceFunc func(connFD int, peer string)

// RegisterOnWorker registers srv's listener with disp and spawns its accept
// fiber on sch, matching spec.md §4.J's "the worker registers the listener
// sink and spawns the accept fiber" common-start step. It must run on the
// target worker's own goroutine.
func RegisterOnWorker(srv *Server, sch *libsch.Scheduler, disp *libdsp.Dispatcher, place PlaceFunc) (*libfbr.Fiber, error) {
	if srv.listenFD < 0 {
		return nil, ErrorParamEmpty.Error(fmt.Errorf("server %q: Listen was not called", srv.Name))
	}

	sink := libdsp.NewSink(srv.listenFD, sch.WorkerID())
	sink.InputMode = libdsp.ModeLevel
	if err := disp.Register(sink); err != nil {
		return nil, err
	}
	srv.sink = sink

	return sch.Spawn(srv.Name+"-accept", librqu.EventLoopPriority, acceptEntry(srv, sink, sch, disp, place))
}

// StopOnWorker removes srv's listener sink from disp and closes/unlinks the
// listener, matching spec.md §4.J's common-stop step. It must run on the
// same worker RegisterOnWorker placed the listener on.
func StopOnWorker(srv *Server, disp *libdsp.Dispatcher) error {
	if srv.sink != nil {
		srv.sink.MarkClosed(true, true)
		_ = disp.Close(srv.sink)
		srv.sink = nil
	}
	return srv.CloseAndUnlink()
}

// acceptEntry is the accept fiber's body: a non-blocking accept4 loop that
// parks on EAGAIN exactly like a socket read, applies protocol options to
// each new connection, and hands it to place.
func acceptEntry(srv *Server, sink *libdsp.Sink, sch *libsch.Scheduler, disp *libdsp.Dispatcher, place PlaceFunc) libfbr.Entry {
	return func(f *libfbr.Fiber) libfbr.Result {
		for {
			if sink.InputClosed() {
				return nil
			}

			if srv.Limiter != nil && !srv.Limiter.NewWorkerTry() {
				// No token available -- park exactly like EAGAIN rather than
				// calling accept4 at all, so a connection burst beyond the
				// configured rate waits instead of piling up unbounded.
				// The pending connection's edge was already consumed, so the
				// sink is queued for re-registration: the next Poll re-reports
				// a non-empty backlog and wakes this fiber to try again.
				sink.ClearInputReady()
				sink.InputFiber = f
				_ = disp.Register(sink)
				disp.TriggerInput(sink)
				sch.Block()

				if sink.InputClosed() {
					return nil
				}
				continue
			}

			connFD, sa, err := unix.Accept4(srv.listenFD, unix.SOCK_NONBLOCK)
			if srv.Limiter != nil {
				srv.Limiter.DeferWorker()
			}
			if err == nil {
				applyOptions(connFD, srv.Proto.Options)
				place(connFD, peerString(sa))
				continue
			}
			if err == unix.EINTR {
				continue
			}
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				// A per-accept error (e.g. EMFILE) does not tear down the
				// listener -- the protocol owns that decision, same as the
				// core's read/write contract.
				continue
			}

			sink.ClearInputReady()
			sink.InputFiber = f
			disp.TriggerInput(sink)
			sch.Block()

			if sink.InputClosed() {
				return nil
			}
		}
	}
}

// applyOptions configures SO_KEEPALIVE/TCP_NODELAY on a freshly-accepted
// connection per the listening protocol's option bitset. Failures here are
// not fatal -- a connection still works without them.
func applyOptions(fd int, opt libsck.Option) {
	if opt&libsck.OptKeepAlive != 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	}
	if opt&libsck.OptNoDelay != 0 {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
}

func peerString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), fmt.Sprintf("%d", a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), fmt.Sprintf("%d", a.Port))
	case *unix.SockaddrUnix:
		return a.Name
	default:
		return ""
	}
}
