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

package rconfig

import (
	liberr "github.com/sabouaram/fibercore/errors"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgViper
	ErrorConfigFileMissing
	ErrorConfigRead
	ErrorConfigDecode
	ErrorConfigValidate
	ErrorWatchUnsupported
)

func init() {
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorParamEmpty:
		return "given parameter is empty"
	case ErrorConfigFileMissing:
		return "no config file found and no default config source registered"
	case ErrorConfigRead:
		return "reading config source failed"
	case ErrorConfigDecode:
		return "decoding config into the domain model failed"
	case ErrorConfigValidate:
		return "decoded config failed validation"
	case ErrorWatchUnsupported:
		return "hot-reload watch requires a config file, not the default fallback source"
	}
	return ""
}
