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

// Package dispatcher abstracts an edge-triggered readiness backend (epoll on
// Linux) behind a single per-sink contract: register a file descriptor,
// react to input/output readiness, and wake whichever fiber is parked on
// each direction. Every operation here runs on the sink's owning worker
// goroutine; nothing in this package is safe to call concurrently for the
// same sink.
package dispatcher

import (
	libfbr "github.com/sabouaram/fibercore/fiber"
)

// Mode selects how a direction re-arms after it has been consumed.
type Mode int

const (
	// ModeIgnored means this direction is never registered with the kernel.
	ModeIgnored Mode = iota
	// ModeLevel re-arms automatically: every Poll that observes readiness
	// marks the direction ready again, regardless of Trigger calls.
	ModeLevel
	// ModeOneShot lets TriggerInput/TriggerOutput wake the parked fiber at
	// once when the direction is already flagged ready. The kernel
	// registration is the same edge-triggered one as ModeLevel, so a fresh
	// kernel readiness event also wakes the parked fiber without a Trigger
	// call; delivery is not limited to once per Trigger.
	ModeOneShot
)

// RunFunc makes a fiber runnable again; the dispatcher never runs a fiber
// itself, it only asks the owning scheduler to.
type RunFunc func(f *libfbr.Fiber)

// Sink is the per-file-descriptor record shared between the dispatcher and
// the socket layer built on top of it.
type Sink struct {
	FD int

	InputMode  Mode
	OutputMode Mode

	inputReady   bool
	outputReady  bool
	inputClosed  bool
	outputClosed bool
	inputError   bool
	outputError  bool

	registered bool
	closing    bool

	// InputFiber/OutputFiber is the fiber parked on that direction, or nil.
	// At most one fiber is parked per direction at a time.
	InputFiber  *libfbr.Fiber
	OutputFiber *libfbr.Fiber

	// OwnerWorker identifies the worker this sink is pinned to; sinks never
	// migrate once created.
	OwnerWorker uint64
}

// NewSink wraps fd with both directions ignored; set InputMode /
// OutputMode before Register.
func NewSink(fd int, owner uint64) *Sink {
	return &Sink{FD: fd, OwnerWorker: owner}
}

func (s *Sink) InputReady() bool   { return s.inputReady }
func (s *Sink) OutputReady() bool  { return s.outputReady }
func (s *Sink) InputClosed() bool  { return s.inputClosed }
func (s *Sink) OutputClosed() bool { return s.outputClosed }
func (s *Sink) InputError() bool   { return s.inputError }
func (s *Sink) OutputError() bool  { return s.outputError }
func (s *Sink) Closing() bool      { return s.closing }

// wantInput/wantOutput report whether the kernel mask should currently
// include that direction.
func (s *Sink) wantInput() bool  { return s.InputMode != ModeIgnored && !s.inputClosed }
func (s *Sink) wantOutput() bool { return s.OutputMode != ModeIgnored && !s.outputClosed }

// ClearInputReady/ClearOutputReady are called by the socket layer the
// moment a non-blocking read/write returns EAGAIN: per the edge-triggered
// discipline, "ready" stays set across any number of successful partial
// reads/writes and is only cleared once the kernel has actually been
// drained dry.
func (s *Sink) ClearInputReady()  { s.inputReady = false }
func (s *Sink) ClearOutputReady() { s.outputReady = false }
