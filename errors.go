// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package eole

import (
	"errors"
	"fmt"
)

// ErrTransport is the root of every link level failure.
var ErrTransport = errors.New("eole: transport error")

// Transport errors. errors.Is(err, ErrTransport) holds for all of them.
var (
	ErrClosed       = &linkError{msg: "eole: transport closed"}
	ErrWriteFailed  = &linkError{msg: "eole: write failed"}
	ErrWriteTimeout = &linkError{msg: "eole: write timeout"}
)

// Exchange and decode errors.
var (
	ErrTimeout         = errors.New("eole: response timeout")
	ErrFraming         = errors.New("eole: no valid frame in received bytes")
	ErrMalformedLength = errors.New("eole: malformed response length")
	ErrBadHeader       = errors.New("eole: bad response header")
	ErrBadStatus       = errors.New("eole: bad response status")
	ErrCRCMismatch     = errors.New("eole: CRC mismatch")
	ErrDeviceRejected  = errors.New("eole: device rejected write")
)

type linkError struct {
	msg string
}

func (e *linkError) Error() string { return e.msg }

func (e *linkError) Unwrap() error { return ErrTransport }

// IsDecodeError reports whether err is a structural failure of a response frame.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrMalformedLength) ||
		errors.Is(err, ErrBadHeader) ||
		errors.Is(err, ErrBadStatus) ||
		errors.Is(err, ErrCRCMismatch)
}

// TransportError describes a failure to open or use the underlying link.
type TransportError struct {
	Op     string // "open", "write", "read", "close"
	Target string // port name or network address
	Err    error
}

func (e *TransportError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("eole: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("eole: %s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap exposes both the cause and ErrTransport to errors.Is.
func (e *TransportError) Unwrap() []error {
	return []error{e.Err, ErrTransport}
}

// ExchangeError is returned by a failed exchange. State is the state the
// exchange was in when it failed; StateIdle means nothing touched the link
// (bad request or canceled context), StateSending covers the optional drain
// and the write.
type ExchangeError struct {
	Op      Op
	Address Address
	State   State
	Err     error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("eole: %s %s failed while %s: %v", e.Op, e.Address, e.State, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}
