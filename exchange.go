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
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Client runs register exchanges over one Transport. Exchanges are strictly
// sequential: a second caller blocks until the exchange in flight finishes.
// When the transport implements ExchangeLocker the exclusion also covers
// other Clients sharing it.
type Client struct {
	mu        sync.Mutex
	inflight  sync.Locker
	transport Transport
	packager  *Packager
	framer    *Reassembler
	config    Config
	logger    io.Writer
	sink      DiagnosticSink
	state     State
	lastState State
}

type writeTimeoutSetter interface {
	SetWriteTimeout(time.Duration)
}

// NewClient creates a Client on t. Zero timeouts in cfg take their defaults.
func NewClient(t Transport, cfg Config) *Client {
	cfg = cfg.withDefaults()
	if s, ok := t.(writeTimeoutSetter); ok {
		s.SetWriteTimeout(cfg.WriteTimeout)
	}
	return newClient(t, cfg, exchangeLock(t, new(sync.Mutex)))
}

func newClient(t Transport, cfg Config, inflight sync.Locker) *Client {
	return &Client{
		inflight:  inflight,
		transport: t,
		packager:  NewPackager(),
		framer:    NewReassembler(t, cfg),
		config:    cfg,
		logger:    io.Discard,
		sink:      NopSink{},
	}
}

// SetLogger sets the writer for log lines.
func (c *Client) SetLogger(logger io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if logger == nil {
		logger = io.Discard
	}
	c.logger = logger
}

// SetDiagnosticSink sets the receiver of traffic diagnostics.
func (c *Client) SetDiagnosticSink(sink DiagnosticSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sink == nil {
		sink = NopSink{}
	}
	c.sink = sink
}

// Transport returns the link the client drives.
func (c *Client) Transport() Transport {
	return c.transport
}

// LastState returns the terminal state of the most recent exchange, or
// StateIdle if none has run.
func (c *Client) LastState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastState
}

// CheckLink reports whether the transport still considers itself connected.
func (c *Client) CheckLink() bool {
	return c.transport != nil && c.transport.IsConnected()
}

// ReadRegister reads addr. A NOT-OK status is not an error here; the caller
// decides what to do with Response.Status.
func (c *Client) ReadRegister(ctx context.Context, addr Address) (Response, error) {
	return c.Execute(ctx, Request{Op: OpRead, Address: addr})
}

// WriteRegister writes value to addr. A NOT-OK status fails with
// ErrDeviceRejected.
func (c *Client) WriteRegister(ctx context.Context, addr Address, value uint32) error {
	_, err := c.Execute(ctx, Request{Op: OpWrite, Address: addr, Data: value})
	return err
}

// Execute runs one request/response cycle to completion. It never retries.
func (c *Client) Execute(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight.Lock()
	defer c.inflight.Unlock()

	c.state = StateIdle
	resp, err := c.execute(ctx, req)
	c.lastState = c.state
	c.state = StateIdle
	return resp, err
}

func (c *Client) execute(ctx context.Context, req Request) (Response, error) {
	frame, err := c.packager.Pack(req)
	if err != nil {
		return Response{}, c.fail(req, err)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, c.fail(req, err)
	}

	c.enter(StateSending)
	if c.config.DrainBeforeSend {
		if n, err := c.framer.Drain(ctx); err != nil {
			return Response{}, c.fail(req, err)
		} else if n > 0 {
			fmt.Fprintf(c.logger, "WARNING: eole: dropped %d stale bytes before %s %s\n", n, req.Op, req.Address)
		}
	}

	c.sink.RequestSent(req, frame)
	fmt.Fprintf(c.logger, "DEBUG: eole: %s %s request %s\n", req.Op, req.Address, HexString(frame))
	if err := c.transport.Write(frame); err != nil {
		return Response{}, c.fail(req, err)
	}

	c.enter(StateAwaitingFrame)
	raw, err := c.framer.ReadFrame(ctx)
	if err != nil {
		return Response{}, c.fail(req, err)
	}
	c.sink.FrameReceived(raw)
	fmt.Fprintf(c.logger, "DEBUG: eole: %s %s response %s\n", req.Op, req.Address, HexString(raw))

	c.enter(StateValidating)
	if len(raw) == ResponseSize {
		calculated, received, ok := checkCRC(raw)
		c.sink.CRCChecked(calculated, received, ok)
	}
	resp, err := c.packager.Unpack(raw)
	if err != nil {
		return Response{}, c.fail(req, err)
	}
	if req.Op == OpWrite && !resp.Status.OK() {
		return resp, c.fail(req, fmt.Errorf("%w: status %s", ErrDeviceRejected, resp.Status))
	}

	c.enter(StateSuccess)
	return resp, nil
}

func (c *Client) enter(s State) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	c.sink.StateChanged(from, s)
}

func (c *Client) fail(req Request, err error) error {
	failedIn := c.state
	c.enter(StateFailed)
	fmt.Fprintf(c.logger, "ERROR: eole: %s %s failed while %s: %v\n", req.Op, req.Address, failedIn, err)
	return &ExchangeError{Op: req.Op, Address: req.Address, State: failedIn, Err: err}
}

// sharedExchangeMu serializes the package level functions on transports that
// do not implement ExchangeLocker.
var sharedExchangeMu sync.Mutex

// exchangeLock returns the transport's exchange lock, or fallback.
func exchangeLock(t Transport, fallback sync.Locker) sync.Locker {
	if l, ok := t.(ExchangeLocker); ok {
		return l.ExchangeLock()
	}
	return fallback
}

// oneShot builds a Client for a single package level call. It leaves the
// transport's write timeout alone.
func oneShot(t Transport) *Client {
	return newClient(t, DefaultConfig().withDefaults(), exchangeLock(t, &sharedExchangeMu))
}

// ReadRegister runs a single read exchange on t with the default timing.
// Concurrent calls on the same transport are serialized.
func ReadRegister(ctx context.Context, t Transport, addr Address) (Response, error) {
	return oneShot(t).ReadRegister(ctx, addr)
}

// WriteRegister runs a single write exchange on t with the default timing.
// Concurrent calls on the same transport are serialized.
func WriteRegister(ctx context.Context, t Transport, addr Address, value uint32) error {
	return oneShot(t).WriteRegister(ctx, addr, value)
}
