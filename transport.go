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
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	goserial "github.com/hootrhino/goserial"
)

// Transport is a byte-stream link to one device.
type Transport interface {
	// Write sends all of p or fails with ErrWriteFailed / ErrWriteTimeout.
	Write(p []byte) error
	// ReadAvailable returns the bytes that arrive within timeout, or
	// ErrTimeout when none do.
	ReadAvailable(timeout time.Duration) ([]byte, error)
	// Close releases the link and unblocks pending reads and writes.
	Close() error
	// IsConnected returns false once the link is closed or gone.
	IsConnected() bool
}

// ExchangeLocker is implemented by transports that serialize exchanges
// across every Client sharing them. The returned lock is held for a whole
// request/response cycle.
type ExchangeLocker interface {
	ExchangeLock() sync.Locker
}

const defaultReadBufferSize = 256

type readResult struct {
	data []byte
	err  error
}

// StreamTransport adapts an io.ReadWriteCloser (serial port, TCP connection)
// to Transport. A blocking Read that outlives its timeout stays pending and is
// picked up by the next ReadAvailable, so bytes are never lost between calls.
type StreamTransport struct {
	conn         io.ReadWriteCloser
	target       string
	writeTimeout time.Duration
	bufSize      int

	mu           sync.Mutex
	pendingRead  chan readResult
	pendingWrite chan error
	readErr      error // deferred error that arrived together with data

	exchangeMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	gone     chan struct{} // closed when the peer or the driver drops the link
	goneOnce sync.Once
	goneErr  error
}

// NewStreamTransport wraps conn. target names the link in errors.
func NewStreamTransport(conn io.ReadWriteCloser, target string) *StreamTransport {
	return &StreamTransport{
		conn:         conn,
		target:       target,
		writeTimeout: DefaultConfig().WriteTimeout,
		bufSize:      defaultReadBufferSize,
		closed:       make(chan struct{}),
		gone:         make(chan struct{}),
	}
}

// ExchangeLock returns the lock every Client on this transport holds while
// an exchange is in flight.
func (t *StreamTransport) ExchangeLock() sync.Locker {
	return &t.exchangeMu
}

// SetWriteTimeout sets the write-flush timeout.
func (t *StreamTransport) SetWriteTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeTimeout = timeout
}

// Target returns the port name or address of the link.
func (t *StreamTransport) Target() string {
	return t.target
}

// Write writes data to the link, waiting at most the write timeout.
func (t *StreamTransport) Write(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: cannot write empty data", ErrWriteFailed)
	}
	if t.isClosed() {
		return fmt.Errorf("%w: %w", ErrWriteFailed, ErrClosed)
	}
	if err := t.lost(); err != nil {
		return fmt.Errorf("%w: link lost: %v", ErrWriteFailed, err)
	}

	t.mu.Lock()
	timeout := t.writeTimeout
	previous := t.pendingWrite
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// A write that timed out earlier must finish before new bytes go out.
	if previous != nil {
		select {
		case <-previous:
			t.setPendingWrite(nil)
		case <-timer.C:
			return fmt.Errorf("%w: previous write still pending after %v", ErrWriteTimeout, timeout)
		case <-t.closed:
			return fmt.Errorf("%w: %w", ErrWriteFailed, ErrClosed)
		}
	}

	if c, ok := t.conn.(net.Conn); ok && timeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(timeout))
	}

	done := make(chan error, 1)
	t.setPendingWrite(done)
	go func() {
		written := 0
		for written < len(data) {
			n, err := t.conn.Write(data[written:])
			if err != nil {
				done <- fmt.Errorf("write failed after %d bytes: %v", written, err)
				return
			}
			if n == 0 {
				done <- io.ErrShortWrite
				return
			}
			written += n
		}
		done <- nil
	}()

	select {
	case err := <-done:
		t.setPendingWrite(nil)
		if err != nil {
			if t.isClosed() {
				return fmt.Errorf("%w: %w", ErrWriteFailed, ErrClosed)
			}
			if isTimeoutErr(err) {
				return fmt.Errorf("%w: %v", ErrWriteTimeout, err)
			}
			t.markGone(err)
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: after %v", ErrWriteTimeout, timeout)
	case <-t.closed:
		return fmt.Errorf("%w: %w", ErrWriteFailed, ErrClosed)
	}
}

func (t *StreamTransport) setPendingWrite(ch chan error) {
	t.mu.Lock()
	t.pendingWrite = ch
	t.mu.Unlock()
}

// ReadAvailable returns the next chunk of bytes arriving within timeout.
func (t *StreamTransport) ReadAvailable(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	if err := t.readErr; err != nil {
		t.readErr = nil
		t.mu.Unlock()
		return nil, t.readFailure(err)
	}
	t.mu.Unlock()

	if t.isClosed() {
		return nil, ErrClosed
	}
	if err := t.lost(); err != nil {
		return nil, &TransportError{Op: "read", Target: t.target, Err: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		pending := t.startRead()
		select {
		case r := <-pending:
			t.mu.Lock()
			t.pendingRead = nil
			if len(r.data) > 0 {
				if r.err != nil && !isTimeoutErr(r.err) {
					t.readErr = r.err
				}
				t.mu.Unlock()
				return r.data, nil
			}
			t.mu.Unlock()
			if r.err != nil && !isTimeoutErr(r.err) {
				return nil, t.readFailure(r.err)
			}
			// Port level timeout or empty read, keep waiting.
		case <-timer.C:
			return nil, ErrTimeout
		case <-t.closed:
			return nil, ErrClosed
		}
	}
}

func (t *StreamTransport) startRead() chan readResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingRead != nil {
		return t.pendingRead
	}
	ch := make(chan readResult, 1)
	t.pendingRead = ch
	buf := make([]byte, t.bufSize)
	go func() {
		n, err := t.conn.Read(buf)
		ch <- readResult{data: buf[:n], err: err}
	}()
	return ch
}

// readFailure reports a read error. Anything other than our own Close means
// the link is gone; io.EOF from a TCP peer included.
func (t *StreamTransport) readFailure(err error) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.markGone(err)
	return &TransportError{Op: "read", Target: t.target, Err: err}
}

func (t *StreamTransport) markGone(err error) {
	t.goneOnce.Do(func() {
		t.mu.Lock()
		t.goneErr = err
		t.mu.Unlock()
		close(t.gone)
	})
}

// lost returns the error that dropped the link, or nil while it is up.
func (t *StreamTransport) lost() error {
	select {
	case <-t.gone:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.goneErr
	default:
		return nil
	}
}

func (t *StreamTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (t *StreamTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// IsConnected returns true until the link is closed or a read or write
// fails for a reason other than a timeout.
func (t *StreamTransport) IsConnected() bool {
	return !t.isClosed() && t.lost() == nil
}

// isTimeoutErr reports whether err is a driver level timeout rather than a
// broken link.
func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, goserial.ErrTimeout) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
