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

// Package server aggregates a listener socket, its protocol vtable and its
// accept fiber into the lifecycle spec.md §4.J describes: common-start picks
// a worker and submits a registration work item; common-stop submits a
// teardown work item to that same worker. A server never touches the
// dispatcher or scheduler directly -- every interaction happens through the
// workqueue, so a server can be configured before any worker exists.
package server

import (
	"fmt"
	"math/bits"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	libdsp "github.com/sabouaram/fibercore/dispatcher"
	liberr "github.com/sabouaram/fibercore/errors"
	libptc "github.com/sabouaram/fibercore/network/protocol"
	libsem "github.com/sabouaram/fibercore/semaphore"
	libsck "github.com/sabouaram/fibercore/socket"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgServer
	ErrorListen
	ErrorAlreadyRunning
)

func init() {
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorParamEmpty:
		return "given parameter is empty"
	case ErrorListen:
		return "failed to bind/listen on server address"
	case ErrorAlreadyRunning:
		return "server is already registered with a worker"
	}
	return ""
}

// Affinity is a bitset of worker indices a server may be placed on; the
// lowest set bit is chosen, matching spec.md §4.J's "first set bit of the
// affinity mask, default 0" rule.
type Affinity uint64

// AffinityAny leaves every worker eligible; FirstWorker resolves it to
// worker 0, its documented default.
const AffinityAny Affinity = ^Affinity(0)

// FirstWorker returns the lowest set bit of a, or 0 if a is empty.
func (a Affinity) FirstWorker() uint64 {
	if a == 0 {
		return 0
	}
	return uint64(bits.TrailingZeros64(uint64(a)))
}

// Server is one configured listener: its address, protocol vtable and
// affinity, plus bookkeeping the global exit-cleanup list needs for
// Unix-domain socket paths.
type Server struct {
	Name     string
	Network  libptc.NetworkProtocol
	Address  string // host:port for inet families, filesystem path for unix
	Proto    *libsck.Protocol
	Affinity Affinity

	// Limiter, when set, bounds how many accept4 calls the accept fiber may
	// have in flight at once, giving a connection burst backpressure instead
	// of an unbounded flood of freshly-placed connections.
	Limiter libsem.Semaphore

	// DiagID identifies this listener across log lines and metrics, distinct
	// from Name since two servers can legitimately share a name across a
	// hot-reload.
	DiagID string

	listenFD int
	unixPath string
	workerID uint64
	assigned bool
	sink     *libdsp.Sink
}

// New validates proto and returns an unregistered, unlisten()'d server
// descriptor -- binding happens in Start, once a worker has been chosen.
func New(name string, network libptc.NetworkProtocol, address string, proto *libsck.Protocol) (*Server, error) {
	if proto == nil {
		return nil, ErrorParamEmpty.Error(fmt.Errorf("server: nil protocol vtable"))
	}
	return &Server{
		Name:     name,
		Network:  network,
		Address:  address,
		Proto:    proto,
		Affinity: AffinityAny,
		DiagID:   uuid.NewString(),
		listenFD: -1,
	}, nil
}

// NewInet creates a TCP (v4 or v6, chosen by the address literal) listener
// descriptor, mirroring the embedding API's create_inet_server.
func NewInet(name, host string, port int, proto *libsck.Protocol) (*Server, error) {
	return New(name, libptc.NetworkTCP, fmt.Sprintf("%s:%d", host, port), proto)
}

// NewUnix creates a Unix-domain listener descriptor, mirroring
// create_unix_server. The socket path is unlinked on clean Stop.
func NewUnix(name, path string, proto *libsck.Protocol) (*Server, error) {
	s, err := New(name, libptc.NetworkUnix, path, proto)
	if err != nil {
		return nil, err
	}
	s.unixPath = path
	return s, nil
}

// ListenFD returns the bound, non-blocking listener file descriptor, or -1
// before Listen has run.
func (s *Server) ListenFD() int { return s.listenFD }

// WorkerID returns the worker this server was assigned to by Listen.
func (s *Server) WorkerID() uint64 { return s.workerID }

// Listen resolves the affinity mask to a worker id, then opens, configures
// (SO_REUSEADDR, non-blocking) and listens on the server's address with a
// backlog of SOMAXCONN, per spec.md §4.J's common-start step. It does not
// touch any worker's dispatcher -- the caller submits a register_work item
// afterward so the chosen worker does that on its own goroutine.
func (s *Server) Listen() error {
	if s.assigned {
		return ErrorAlreadyRunning.Error(fmt.Errorf("server %q", s.Name))
	}

	fd, err := s.openListener()
	if err != nil {
		return err
	}

	s.listenFD = fd
	s.workerID = s.Affinity.FirstWorker()
	s.assigned = true
	return nil
}

func (s *Server) openListener() (int, error) {
	var domain int
	switch s.Network {
	case libptc.NetworkUnix:
		domain = unix.AF_UNIX
	case libptc.NetworkTCP6:
		domain = unix.AF_INET6
	default:
		domain = unix.AF_INET
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, ErrorListen.Error(err)
	}

	if domain != unix.AF_UNIX {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			_ = unix.Close(fd)
			return -1, ErrorListen.Error(err)
		}
	}

	sa, err := s.sockaddr()
	if err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, ErrorListen.Error(err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, ErrorListen.Error(err)
	}
	return fd, nil
}

func (s *Server) sockaddr() (unix.Sockaddr, error) {
	if s.Network == libptc.NetworkUnix {
		return &unix.SockaddrUnix{Name: s.Address}, nil
	}
	host, port, err := splitHostPort(s.Address)
	if err != nil {
		return nil, ErrorListen.Error(err)
	}
	if s.Network == libptc.NetworkTCP6 {
		return &unix.SockaddrInet6{Port: port, Addr: host6(hostIP(host))}, nil
	}
	return &unix.SockaddrInet4{Port: port, Addr: host4(hostIP(host))}, nil
}

// CloseAndUnlink closes the listener fd and, for Unix-domain addresses,
// removes the socket path -- spec.md §4.J's common-stop step, run by the
// listener's own worker after it has removed the sink from its dispatcher.
func (s *Server) CloseAndUnlink() error {
	if s.listenFD >= 0 {
		_ = unix.Close(s.listenFD)
		s.listenFD = -1
	}
	if s.unixPath != "" {
		if err := os.Remove(s.unixPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	s.assigned = false
	return nil
}
