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
	"encoding/binary"
	"fmt"
)

// Wire constants. All multi-byte fields are big-endian.
const (
	Header   byte = 0x40 // fixed device address
	CmdRead  byte = 0x90
	CmdWrite byte = 0x99

	ReadRequestSize  = 8  // header + cmd + addr(4) + crc(2)
	WriteRequestSize = 12 // header + cmd + addr(4) + data(4) + crc(2)
	ResponseSize     = 8  // header + status + data(4) + crc(2)
)

// Address identifies a 32-bit memory mapped register on the device.
type Address uint32

// Known registers.
const (
	AddrClockControl      Address = 0x028
	AddrGPOL              Address = 0x090
	AddrIntegrationPeriod Address = 0x094
	AddrIntegrationTime   Address = 0x098
	AddrOutputConfig      Address = 0x0B0
)

var addressNames = map[Address]string{
	AddrClockControl:      "clock-control",
	AddrGPOL:              "gpol",
	AddrIntegrationPeriod: "integration-period",
	AddrIntegrationTime:   "integration-time",
	AddrOutputConfig:      "output-config",
}

func (a Address) String() string {
	if name, ok := addressNames[a]; ok {
		return fmt.Sprintf("%s(0x%03X)", name, uint32(a))
	}
	return fmt.Sprintf("0x%03X", uint32(a))
}

// Known reports whether a is one of the named registers.
func (a Address) Known() bool {
	_, ok := addressNames[a]
	return ok
}

// Status is the second byte of a response frame.
type Status byte

const (
	StatusOK    Status = 0x80
	StatusNotOK Status = 0x88
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotOK:
		return "NOT-OK"
	default:
		return fmt.Sprintf("0x%02X", byte(s))
	}
}

// OK reports whether the device acknowledged the request.
func (s Status) OK() bool { return s == StatusOK }

func (s Status) valid() bool { return s == StatusOK || s == StatusNotOK }

// Op is the kind of register operation.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// Request is one register operation.
type Request struct {
	Op      Op
	Address Address
	Data    uint32 // ignored for reads
}

// Response is a decoded response frame.
type Response struct {
	Status Status
	Value  uint32
}

// BuildReadRequest builds the 8 byte read request for addr.
func BuildReadRequest(addr Address) []byte {
	frame := make([]byte, ReadRequestSize)
	frame[0] = Header
	frame[1] = CmdRead
	binary.BigEndian.PutUint32(frame[2:6], uint32(addr))
	putCRC(frame)
	return frame
}

// BuildWriteRequest builds the 12 byte write request storing data at addr.
func BuildWriteRequest(addr Address, data uint32) []byte {
	frame := make([]byte, WriteRequestSize)
	frame[0] = Header
	frame[1] = CmdWrite
	binary.BigEndian.PutUint32(frame[2:6], uint32(addr))
	binary.BigEndian.PutUint32(frame[6:10], data)
	putCRC(frame)
	return frame
}

// BuildWriteRequestBytes builds a write request from a big-endian payload of
// at most 4 bytes. Shorter payloads are right aligned, high-order bytes zero.
func BuildWriteRequestBytes(addr Address, payload []byte) ([]byte, error) {
	if len(payload) > 4 {
		return nil, fmt.Errorf("payload too long: %d bytes (max 4)", len(payload))
	}
	var data [4]byte
	copy(data[4-len(payload):], payload)
	return BuildWriteRequest(addr, binary.BigEndian.Uint32(data[:])), nil
}

// EncodeResponse builds a valid response frame. Device simulators use it.
func EncodeResponse(status Status, value uint32) []byte {
	frame := make([]byte, ResponseSize)
	frame[0] = Header
	frame[1] = byte(status)
	binary.BigEndian.PutUint32(frame[2:6], value)
	putCRC(frame)
	return frame
}

// ParseResponse decodes an 8 byte response frame.
func ParseResponse(frame []byte) (Response, error) {
	if len(frame) != ResponseSize {
		return Response{}, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedLength, len(frame), ResponseSize)
	}
	if frame[0] != Header {
		return Response{}, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrBadHeader, frame[0], Header)
	}
	status := Status(frame[1])
	if !status.valid() {
		return Response{}, fmt.Errorf("%w: 0x%02X", ErrBadStatus, frame[1])
	}
	if want, got, ok := checkCRC(frame); !ok {
		return Response{}, fmt.Errorf("%w: calculated 0x%04X, received 0x%04X", ErrCRCMismatch, want, got)
	}
	return Response{
		Status: status,
		Value:  binary.BigEndian.Uint32(frame[2:6]),
	}, nil
}

// Packager packs requests and unpacks responses.
type Packager struct{}

// NewPackager creates a new Packager.
func NewPackager() *Packager {
	return &Packager{}
}

// Pack serializes req into a fresh request frame.
func (p *Packager) Pack(req Request) ([]byte, error) {
	switch req.Op {
	case OpRead:
		return BuildReadRequest(req.Address), nil
	case OpWrite:
		return BuildWriteRequest(req.Address, req.Data), nil
	default:
		return nil, fmt.Errorf("unknown operation: %d", req.Op)
	}
}

// Unpack decodes a response frame.
func (p *Packager) Unpack(frame []byte) (Response, error) {
	return ParseResponse(frame)
}

// VerifyCRC verifies the trailing CRC of any frame.
func (p *Packager) VerifyCRC(frame []byte) bool {
	_, _, ok := checkCRC(frame)
	return ok
}
