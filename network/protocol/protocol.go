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

// Package protocol names the wire families a socket sink or server listener
// may bind: the stream/datagram address families accept() and connect() can
// be asked for, independent of any particular listener implementation.
package protocol

import "strings"

// NetworkProtocol identifies an address family / socket type pair the way
// net.Dial's "network" string parameter does, as a comparable, marshalable
// value instead of a bare string.
type NetworkProtocol uint8

const (
	NetworkEmpty NetworkProtocol = iota
	NetworkTCP
	NetworkTCP4
	NetworkTCP6
	NetworkUDP
	NetworkUDP4
	NetworkUDP6
	NetworkIP
	NetworkIP4
	NetworkIP6
	NetworkUnix
	NetworkUnixGram
)

// String returns the net.Dial-compatible network name, or "" for an unknown
// or zero-value protocol.
func (n NetworkProtocol) String() string {
	switch n {
	case NetworkTCP:
		return "tcp"
	case NetworkTCP4:
		return "tcp4"
	case NetworkTCP6:
		return "tcp6"
	case NetworkUDP:
		return "udp"
	case NetworkUDP4:
		return "udp4"
	case NetworkUDP6:
		return "udp6"
	case NetworkIP:
		return "ip"
	case NetworkIP4:
		return "ip4"
	case NetworkIP6:
		return "ip6"
	case NetworkUnix:
		return "unix"
	case NetworkUnixGram:
		return "unixgram"
	default:
		return ""
	}
}

// Code is an alias of String, matching the teacher's pattern of exposing
// both a human label and a config-file code for the same enum.
func (n NetworkProtocol) Code() string {
	return n.String()
}

// IsStream reports whether the protocol is connection-oriented (accept/
// connect apply) as opposed to datagram-oriented.
func (n NetworkProtocol) IsStream() bool {
	switch n {
	case NetworkTCP, NetworkTCP4, NetworkTCP6, NetworkUnix:
		return true
	default:
		return false
	}
}

// IsUnix reports whether the protocol addresses a filesystem path rather
// than an IP endpoint, so callers know whether an unlink on shutdown
// applies.
func (n NetworkProtocol) IsUnix() bool {
	return n == NetworkUnix || n == NetworkUnixGram
}

// Parse maps a net.Dial-style network string back to a NetworkProtocol,
// trimming surrounding whitespace and matching case-insensitively; an
// unrecognized string yields NetworkEmpty.
func Parse(s string) NetworkProtocol {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp":
		return NetworkTCP
	case "tcp4":
		return NetworkTCP4
	case "tcp6":
		return NetworkTCP6
	case "udp":
		return NetworkUDP
	case "udp4":
		return NetworkUDP4
	case "udp6":
		return NetworkUDP6
	case "ip":
		return NetworkIP
	case "ip4":
		return NetworkIP4
	case "ip6":
		return NetworkIP6
	case "unix":
		return NetworkUnix
	case "unixgram":
		return NetworkUnixGram
	default:
		return NetworkEmpty
	}
}

// MarshalText implements encoding.TextMarshaler for config file decoding
// (YAML/JSON/env via viper, the same mechanism rconfig uses elsewhere).
func (n NetworkProtocol) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NetworkProtocol) UnmarshalText(p []byte) error {
	*n = Parse(string(p))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n NetworkProtocol) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(n.String())+2)
	b = append(b, '"')
	b = append(b, n.String()...)
	b = append(b, '"')
	return b, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NetworkProtocol) UnmarshalJSON(p []byte) error {
	s := strings.Trim(string(p), `"`)
	*n = Parse(s)
	return nil
}
