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
	"fmt"
	"io"
	"strings"
	"sync"
)

// DiagnosticSink receives the traffic of every exchange. Implementations
// must return quickly; they run on the exchange path.
type DiagnosticSink interface {
	RequestSent(req Request, frame []byte)
	FrameReceived(frame []byte)
	CRCChecked(calculated, received uint16, ok bool)
	StateChanged(from, to State)
}

// NopSink discards all diagnostics.
type NopSink struct{}

func (NopSink) RequestSent(Request, []byte)     {}
func (NopSink) FrameReceived([]byte)            {}
func (NopSink) CRCChecked(uint16, uint16, bool) {}
func (NopSink) StateChanged(State, State)       {}

// WriterSink prints diagnostics as DEBUG lines to an io.Writer such as a
// SimpleLogger.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) RequestSent(req Request, frame []byte) {
	fmt.Fprintf(s.W, "DEBUG: eole: sent %s %s: %s\n", req.Op, req.Address, HexString(frame))
}

func (s WriterSink) FrameReceived(frame []byte) {
	fmt.Fprintf(s.W, "DEBUG: eole: received %s\n", HexString(frame))
}

func (s WriterSink) CRCChecked(calculated, received uint16, ok bool) {
	if ok {
		fmt.Fprintf(s.W, "DEBUG: eole: CRC ok 0x%04X\n", received)
		return
	}
	fmt.Fprintf(s.W, "WARNING: eole: CRC calculated 0x%04X received 0x%04X\n", calculated, received)
}

func (s WriterSink) StateChanged(from, to State) {
	fmt.Fprintf(s.W, "DEBUG: eole: %s -> %s\n", from, to)
}

// Event is one diagnostic captured by RecordingSink.
type Event struct {
	Kind  string // "sent", "received", "crc", "state"
	Frame []byte
	From  State
	To    State
	CRCOK bool
}

// RecordingSink keeps every diagnostic in memory.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *RecordingSink) add(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *RecordingSink) RequestSent(_ Request, frame []byte) {
	s.add(Event{Kind: "sent", Frame: append([]byte(nil), frame...)})
}

func (s *RecordingSink) FrameReceived(frame []byte) {
	s.add(Event{Kind: "received", Frame: append([]byte(nil), frame...)})
}

func (s *RecordingSink) CRCChecked(_, _ uint16, ok bool) {
	s.add(Event{Kind: "crc", CRCOK: ok})
}

func (s *RecordingSink) StateChanged(from, to State) {
	s.add(Event{Kind: "state", From: from, To: to})
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// States returns the sequence of states entered.
func (s *RecordingSink) States() []State {
	var states []State
	for _, e := range s.Events() {
		if e.Kind == "state" {
			states = append(states, e.To)
		}
	}
	return states
}

// Reset drops the recorded events.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// HexString formats b as upper case hex bytes separated by spaces.
func HexString(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}
