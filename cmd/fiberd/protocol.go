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
	libsck "github.com/sabouaram/fibercore/socket"
)

// echoProtocol reflects every inbound byte back to its sender, verbatim,
// closing on any read/write error; it exists so `fiberd start` has a
// runnable listener to exercise end-to-end without pulling any
// application-level protocol into this core.
var echoProtocol = &libsck.Protocol{
	Options: libsck.OptInbound | libsck.OptKeepAlive | libsck.OptNoDelay,
	Reader:  echoReader,
}

func echoReader(s *libsck.Socket, _ any) {
	buf := make([]byte, 4096)
	for {
		n, err := s.Read(buf)
		if err != nil {
			_ = s.Close()
			return
		}
		if n == 0 {
			continue
		}
		if _, werr := s.Write(buf[:n]); werr != nil {
			_ = s.Close()
			return
		}
	}
}
