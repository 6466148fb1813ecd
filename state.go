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

import "time"

// State is a step of one exchange.
type State uint8

const (
	StateIdle State = iota
	StateSending
	StateAwaitingFrame
	StateValidating
	StateSuccess
	StateFailed
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateSending:       "sending",
	StateAwaitingFrame: "awaiting frame",
	StateValidating:    "validating",
	StateSuccess:       "success",
	StateFailed:        "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether s ends an exchange.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Config holds the timing parameters of an exchange.
type Config struct {
	// ResponseTimeout bounds the wait for the first response byte.
	ResponseTimeout time.Duration
	// QuietPeriod is the inter-chunk silence that ends a frame.
	QuietPeriod time.Duration
	// WriteTimeout bounds writing and flushing a request.
	WriteTimeout time.Duration
	// DrainBeforeSend discards stale bytes from the link before each request.
	DrainBeforeSend bool
}

// DefaultConfig returns the timing observed on the reference device.
func DefaultConfig() Config {
	return Config{
		ResponseTimeout: 1 * time.Second,
		QuietPeriod:     100 * time.Millisecond,
		WriteTimeout:    1 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = def.ResponseTimeout
	}
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = def.QuietPeriod
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}
