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

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	libfbr "github.com/sabouaram/fibercore/fiber"
	loglvl "github.com/sabouaram/fibercore/logger/level"
	libptc "github.com/sabouaram/fibercore/network/protocol"
	librqu "github.com/sabouaram/fibercore/runqueue"
	librcf "github.com/sabouaram/fibercore/rconfig"
	libsem "github.com/sabouaram/fibercore/semaphore"
	libsrv "github.com/sabouaram/fibercore/server"
	libsck "github.com/sabouaram/fibercore/socket"
	libwrk "github.com/sabouaram/fibercore/worker"
)

// defaultConnPriority is the run queue lane a freshly-accepted connection's
// reader fiber spawns on: one notch above the default lane (Priorities/2)
// that spawned work items use, and well above the event loop's reserved
// lane (Priorities-1). Lower lane numbers run first.
const defaultConnPriority = librqu.Priorities/2 - 1

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Boot the domain and every configured listener",
		Long:  "start loads the configuration, builds the per-core worker domain, binds every configured listener on its assigned worker, and runs until SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagDaemonize {
				if err := daemonize(); err != nil {
					return err
				}
			}
			return runDomain(cmd.Context())
		},
	}
}

// runDomain loads the configuration, builds the domain and its listeners,
// and blocks until an interrupt or the command's context is cancelled.
func runDomain(ctx context.Context) error {
	loader := librcf.New(nil)
	if flagConfigFile != "" {
		loader.SetConfigFile(flagConfigFile)
	} else {
		loader.SetHomeBaseName("fibercore")
		loader.SetEnvVarsPrefix("FIBERD")
	}
	loader.SetDefaultConfig(defaultConfigYAML)

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dom, err := libwrk.NewDomain(cfg.Domain.Name, cfg.Domain.Workers)
	if err != nil {
		return fmt.Errorf("building domain %q: %w", cfg.Domain.Name, err)
	}

	for i := range cfg.Servers {
		srvCfg := cfg.Servers[i]
		srv, err := newServerFromConfig(srvCfg)
		if err != nil {
			return fmt.Errorf("server %q: %w", srvCfg.Name, err)
		}
		if srvCfg.AcceptLimiter > 0 {
			srv.Limiter = libsem.New(ctx, int64(srvCfg.AcceptLimiter))
		}

		dom.AddStartHook(func(d *libwrk.Domain) error {
			if err := srv.Listen(); err != nil {
				return fmt.Errorf("server %q: listen: %w", srv.Name, err)
			}
			w := d.Worker(srv.WorkerID())
			place := newPlaceFunc(w, srv, srvCfg.ReadTimeout.Time(), srvCfg.WriteTimeout.Time())
			_, err := libsrv.RegisterOnWorker(srv, w.Scheduler, w.Dispatcher, place)
			return err
		})
		dom.AddStopHook(func(d *libwrk.Domain) error {
			w := d.Worker(srv.WorkerID())
			return libsrv.StopOnWorker(srv, w.Dispatcher)
		})
	}

	if err := dom.Start(); err != nil {
		return fmt.Errorf("starting domain: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		_, _ = color.New(color.FgYellow).Println("fiberd: shutdown signal received")
	case <-ctx.Done():
	}

	dom.Stop()
	return dom.Join()
}

func newServerFromConfig(c librcf.ServerConfig) (*libsrv.Server, error) {
	proto := &libsck.Protocol{
		Network: networkFromString(c.Network),
		Options: echoProtocol.Options &^ (libsck.OptKeepAlive | libsck.OptNoDelay),
		Reader:  echoProtocol.Reader,
	}
	if c.Socket.KeepAlive {
		proto.Options |= libsck.OptKeepAlive
	}
	if c.Socket.NoDelay {
		proto.Options |= libsck.OptNoDelay
	}
	if c.Socket.Bound {
		proto.Options |= libsck.OptBound
	}

	if c.Network == "unix" {
		return libsrv.NewUnix(c.Name, c.Address, proto)
	}
	host, port, err := splitAddress(c.Address)
	if err != nil {
		return nil, err
	}
	srv, err := libsrv.NewInet(c.Name, host, port, proto)
	if err != nil {
		return nil, err
	}
	srv.Network = proto.Network
	return srv, nil
}

func splitAddress(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("address %q: invalid port: %w", addr, err)
	}
	return host, port, nil
}

func networkFromString(s string) libptc.NetworkProtocol {
	switch s {
	case "tcp4":
		return libptc.NetworkTCP4
	case "tcp6":
		return libptc.NetworkTCP6
	case "unix":
		return libptc.NetworkUnix
	default:
		return libptc.NetworkTCP
	}
}

// newPlaceFunc closes over w/srv so the accept fiber can wrap every freshly
// accepted connection as a socket.Socket bound to the listener's own
// worker, register it with that worker's dispatcher, and spawn its
// protocol reader as a fiber -- the bridge server.PlaceFunc leaves to the
// caller.
func newPlaceFunc(w *libwrk.Worker, srv *libsrv.Server, readTimeout, writeTimeout time.Duration) libsrv.PlaceFunc {
	return func(connFD int, peer string) {
		sock := libsck.New(connFD, w.ID, peer, srv.Proto, w.Scheduler, w.Dispatcher, w.Timers)
		sock.SetReadTimeout(readTimeout)
		sock.SetWriteTimeout(writeTimeout)
		if err := sock.Register(); err != nil {
			logWorkerError(w, fmt.Sprintf("%s: registering connection from %s", srv.Name, peer), err)
			_ = sock.Close()
			return
		}

		var state any
		if srv.Proto.Create != nil {
			s, err := srv.Proto.Create(sock)
			if err != nil {
				logWorkerError(w, fmt.Sprintf("%s: creating protocol state for %s", srv.Name, peer), err)
				_ = sock.Close()
				return
			}
			state = s
			sock.SetState(s)
		}

		if srv.Proto.Reader == nil {
			return
		}

		fib, err := w.Scheduler.Spawn(srv.Name+"-conn", defaultConnPriority, func(f *libfbr.Fiber) libfbr.Result {
			defer w.UntrackConn(f)
			srv.Proto.Reader(sock, state)
			if srv.Proto.Destroy != nil {
				srv.Proto.Destroy(sock, state)
			}
			return nil
		})
		if err != nil {
			logWorkerError(w, fmt.Sprintf("%s: spawning reader fiber for %s", srv.Name, peer), err)
			_ = sock.Close()
			return
		}
		// Tracked so the domain's shutdown drain can cancel this fiber out
		// of a parked Read/Write instead of leaking its goroutine when the
		// worker's own RunLoop returns.
		w.TrackConn(fib)
	}
}

func logWorkerError(w *libwrk.Worker, msg string, err error) {
	if w.Log == nil {
		return
	}
	if lg := w.Log(); lg != nil {
		lg.Entry(loglvl.ErrorLevel, msg).ErrorAdd(true, err).Log()
	}
}
