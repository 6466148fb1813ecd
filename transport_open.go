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
	"net"
	"sort"
	"strings"
	"time"

	goserial "github.com/hootrhino/goserial"
	bugserial "go.bug.st/serial"
)

// SerialConfig holds the line settings used by OpenTransport.
type SerialConfig struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string // "N", "E" or "O"
	Timeout     time.Duration
	DialTimeout time.Duration // tcp:// targets only
}

// DefaultSerialConfig returns the line settings of the sensor: 115200 8N1.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      "N",
		Timeout:     100 * time.Millisecond,
		DialTimeout: 5 * time.Second,
	}
}

func (c SerialConfig) withDefaults() SerialConfig {
	def := DefaultSerialConfig()
	if c.BaudRate <= 0 {
		c.BaudRate = def.BaudRate
	}
	if c.DataBits <= 0 {
		c.DataBits = def.DataBits
	}
	if c.StopBits <= 0 {
		c.StopBits = def.StopBits
	}
	if c.Parity == "" {
		c.Parity = def.Parity
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	return c
}

// OpenTransport opens the link named by identifier:
//
//	tcp://host:port          serial device server (e.g. Moxa NPort in TCP server mode)
//	serial:///dev/ttyUSB0    local serial port
//	/dev/ttyUSB0, COM3       local serial port
func OpenTransport(identifier string, cfg SerialConfig) (*StreamTransport, error) {
	cfg = cfg.withDefaults()
	if identifier == "" {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("empty port identifier")}
	}

	if addr, ok := strings.CutPrefix(identifier, "tcp://"); ok {
		conn, err := net.DialTimeout("tcp", addr, cfg.DialTimeout)
		if err != nil {
			return nil, &TransportError{Op: "open", Target: identifier, Err: err}
		}
		return NewStreamTransport(conn, identifier), nil
	}

	path := strings.TrimPrefix(identifier, "serial://")
	port, err := goserial.Open(&goserial.Config{
		Address:  path,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   strings.ToUpper(cfg.Parity),
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, &TransportError{Op: "open", Target: path, Err: err}
	}
	return NewStreamTransport(port, path), nil
}

// ListPorts returns the serial ports currently present on the host.
func ListPorts() ([]string, error) {
	ports, err := bugserial.GetPortsList()
	if err != nil {
		return nil, &TransportError{Op: "list", Err: err}
	}
	sort.Strings(ports)
	return ports, nil
}
