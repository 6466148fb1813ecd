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
	"errors"
	"fmt"
	"time"
)

// ExtractFrame selects one size-byte frame out of buf.
//
// A buffer of exactly size bytes is returned unchanged, and a shorter one is
// returned as is so the codec can report its length. A longer buffer holds
// leading garbage or several coalesced frames: the window starts at the last
// header byte that still has size bytes after it, which keeps the most recent
// complete frame.
func ExtractFrame(buf []byte, size int, header byte) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", size)
	}
	if len(buf) <= size {
		out := make([]byte, len(buf))
		copy(out, buf)
		return out, nil
	}
	for i := len(buf) - size; i >= 0; i-- {
		if buf[i] == header {
			out := make([]byte, size)
			copy(out, buf[i:i+size])
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes without header 0x%02X", ErrFraming, len(buf), header)
}

// Reassembler turns the chunks delivered by a Transport into one response frame.
type Reassembler struct {
	transport       Transport
	responseTimeout time.Duration
	quietPeriod     time.Duration
	frameSize       int
	header          byte
}

// NewReassembler creates a Reassembler for fixed size response frames.
func NewReassembler(t Transport, cfg Config) *Reassembler {
	cfg = cfg.withDefaults()
	return &Reassembler{
		transport:       t,
		responseTimeout: cfg.ResponseTimeout,
		quietPeriod:     cfg.QuietPeriod,
		frameSize:       ResponseSize,
		header:          Header,
	}
}

// ReadRaw collects every byte that arrives until the link has been quiet for
// the quiet period. It fails with ErrTimeout if nothing arrives at all.
func (r *Reassembler) ReadRaw(ctx context.Context) ([]byte, error) {
	first, err := r.transport.ReadAvailable(r.waitFor(ctx, r.responseTimeout))
	if err != nil {
		return nil, readError(err)
	}

	buf := append([]byte(nil), first...)
	for {
		if ctx.Err() != nil {
			return buf, nil
		}
		chunk, err := r.transport.ReadAvailable(r.waitFor(ctx, r.quietPeriod))
		if errors.Is(err, ErrTimeout) {
			return buf, nil
		}
		if err != nil {
			return nil, readError(err)
		}
		buf = append(buf, chunk...)
	}
}

// ReadFrame reads and windows one response frame.
func (r *Reassembler) ReadFrame(ctx context.Context) ([]byte, error) {
	raw, err := r.ReadRaw(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractFrame(raw, r.frameSize, r.header)
}

// Drain discards whatever is already waiting on the link.
func (r *Reassembler) Drain(ctx context.Context) (int, error) {
	dropped := 0
	for ctx.Err() == nil {
		chunk, err := r.transport.ReadAvailable(r.waitFor(ctx, r.quietPeriod))
		if errors.Is(err, ErrTimeout) {
			return dropped, nil
		}
		if err != nil {
			return dropped, readError(err)
		}
		dropped += len(chunk)
	}
	return dropped, nil
}

// waitFor shortens d to the context deadline.
func (r *Reassembler) waitFor(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			if left < 0 {
				return 0
			}
			return left
		}
	}
	return d
}

// readError maps transport failures during the wait for a response. A link
// closed under a pending read surfaces as a timeout.
func readError(err error) error {
	switch {
	case errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, ErrClosed):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return err
	}
}
