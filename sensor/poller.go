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

package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// OnDataFunc receives the readings of one poll.
type OnDataFunc func([]Reading)

// OnErrorFunc receives the errors of one poll.
type OnErrorFunc func(error)

// OnLinkLostFunc is called once when the link goes down.
type OnLinkLostFunc func()

// Poller periodically reads a set of registers. Readings are delivered on
// a separate goroutine so a slow callback does not delay the next poll.
type Poller struct {
	client    RegisterClient
	registers []Register
	interval  time.Duration

	onData     atomic.Value // OnDataFunc
	onError    atomic.Value // OnErrorFunc
	onLinkLost atomic.Value // OnLinkLostFunc

	dataCh   chan []Reading
	stopCh   chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	linkDown bool
}

// NewPoller creates a poller reading registers every interval.
func NewPoller(client RegisterClient, interval time.Duration, registers ...Register) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		client:    client,
		registers: registers,
		interval:  interval,
		dataCh:    make(chan []Reading, 16),
		stopCh:    make(chan struct{}),
	}
}

// SetOnData sets the callback for readings.
func (p *Poller) SetOnData(fn OnDataFunc) { p.onData.Store(fn) }

// SetOnError sets the callback for failed polls.
func (p *Poller) SetOnError(fn OnErrorFunc) { p.onError.Store(fn) }

// SetOnLinkLost sets the callback for a lost link.
func (p *Poller) SetOnLinkLost(fn OnLinkLostFunc) { p.onLinkLost.Store(fn) }

// Start launches the polling and dispatch goroutines.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(2)
	go p.dispatch()
	go p.poll(ctx)
}

func (p *Poller) poll(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			readings, err := p.PollOnce(ctx)
			if err != nil {
				if cb, ok := p.onError.Load().(OnErrorFunc); ok && cb != nil {
					cb(err)
				}
			}
			if len(readings) > 0 {
				select {
				case p.dataCh <- readings:
				case <-p.stopCh:
					return
				}
			}
		}
	}
}

func (p *Poller) dispatch() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case readings := <-p.dataCh:
			if cb, ok := p.onData.Load().(OnDataFunc); ok && cb != nil {
				cb(readings)
			}
		}
	}
}

// PollOnce checks the link and reads every register once. A down link is
// reported to OnLinkLost once and no reads are attempted until it is back.
func (p *Poller) PollOnce(ctx context.Context) ([]Reading, error) {
	if !p.client.CheckLink() {
		if !p.linkDown {
			p.linkDown = true
			if cb, ok := p.onLinkLost.Load().(OnLinkLostFunc); ok && cb != nil {
				cb()
			}
		}
		return nil, ErrLinkLost
	}
	p.linkDown = false

	readings := make([]Reading, 0, len(p.registers))
	var errs []error
	for _, reg := range p.registers {
		r := readRegister(ctx, p.client, reg)
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", reg.Tag, r.Err))
		}
		readings = append(readings, r)
	}
	return readings, errors.Join(errs...)
}

// Stop stops polling and waits for the goroutines to exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.cancel != nil {
			p.cancel()
		}
	})
	p.wg.Wait()
}
