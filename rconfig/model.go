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

// Package rconfig loads and validates the domain/server/socket layout a
// fibercore process boots from, and watches the backing file for changes
// so a running domain can be resized or re-pointed without a restart.
package rconfig

import (
	libdur "github.com/sabouaram/fibercore/duration"
)

// SocketOptions mirrors three of socket.Option's flags as a decoded config
// fragment. This package does not convert it to a socket.Option bitset; the
// call site that owns the socket package import does that.
type SocketOptions struct {
	KeepAlive bool `mapstructure:"keep_alive" validate:"-"`
	NoDelay   bool `mapstructure:"no_delay" validate:"-"`
	Bound     bool `mapstructure:"bound" validate:"-"`
}

// ServerConfig describes one listener: its bind address, the socket
// options new connections inherit, an optional cap on how many accept4
// calls the accept fiber may have in flight at once (used as a whole
// number; 0 disables the limiter), and the read/write deadlines
// applied to every connection it accepts (0 disables the deadline).
// ReadTimeout/WriteTimeout use the teacher's days-aware duration.Duration
// instead of a bare time.Duration, so "1d12h" is as valid a config value
// as "36h".
type ServerConfig struct {
	Name          string          `mapstructure:"name" validate:"required"`
	Network       string          `mapstructure:"network" validate:"required,oneof=tcp tcp4 tcp6 unix"`
	Address       string          `mapstructure:"address" validate:"required"`
	Socket        SocketOptions   `mapstructure:"socket"`
	AcceptLimiter float64         `mapstructure:"accept_limiter" validate:"gte=0"`
	ReadTimeout   libdur.Duration `mapstructure:"read_timeout" validate:"-"`
	WriteTimeout  libdur.Duration `mapstructure:"write_timeout" validate:"-"`
}

// DomainConfig sizes the worker fleet a domain.Domain boots with.
type DomainConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Workers uint64 `mapstructure:"workers" validate:"required,min=1,max=4096"`
}

// Config is the top-level decoded and validated document: one domain,
// one or more listeners. Servers must list at least one entry and each
// Name within it must be unique -- uniqueness is enforced in Load/decode
// rather than by a validator tag, since validator/v10 has no built-in
// dive-unique check over a struct slice field.
type Config struct {
	Domain  DomainConfig   `mapstructure:"domain" validate:"required"`
	Servers []ServerConfig `mapstructure:"servers" validate:"required,min=1,dive"`
}
