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

// Package sensor is the caller layer on top of the eole link: a named
// register catalog, value formats and bounds, and the clock and timing
// arithmetic of the sensor.
package sensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	eole "github.com/hootrhino/goeole"
)

var (
	ErrUnknownRegister = errors.New("sensor: unknown register")
	ErrNotWritable     = errors.New("sensor: register is read only")
	ErrOutOfRange      = errors.New("sensor: value out of range")
	ErrPeriodTooShort  = errors.New("sensor: integration period shorter than integration time")
	ErrInvalidValue    = errors.New("sensor: invalid value")
	ErrReadRejected    = errors.New("sensor: device answered NOT-OK")
	ErrLinkLost        = errors.New("sensor: link lost")
)

// Format selects how a register value is parsed and rendered.
type Format string

const (
	FormatDecimal    Format = "decimal"
	FormatMillivolts Format = "millivolts"
	FormatHex        Format = "hex"
	FormatBitfield   Format = "bitfield"
)

// ParseFormat parses a format name. An empty name is FormatHex.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatHex, nil
	case FormatDecimal, FormatMillivolts, FormatHex, FormatBitfield:
		return f, nil
	case "mv":
		return FormatMillivolts, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Register describes one named device register.
type Register struct {
	Tag      string       `json:"tag"`      // Unique name, e.g. "integration-time"
	Alias    string       `json:"alias"`    // Short name, e.g. "tint"
	Address  eole.Address `json:"address"`  // Register address on the device
	Format   Format       `json:"format"`   // Value format
	Min      uint32       `json:"min"`      // Lowest writable value
	Max      uint32       `json:"max"`      // Highest writable value, 0 for no limit
	Writable bool         `json:"writable"` // Whether Write is allowed
}

// FormatValue renders v in the register's format.
func (r Register) FormatValue(v uint32) string {
	switch r.Format {
	case FormatDecimal:
		return strconv.FormatUint(uint64(v), 10)
	case FormatMillivolts:
		return fmt.Sprintf("%d mV", v)
	case FormatBitfield:
		return fmt.Sprintf("0x%08X (%016b)", v, v&0xFFFF)
	default:
		return fmt.Sprintf("0x%08X", v)
	}
}

// ParseValue parses s in the register's format. Hex values take an optional
// 0x prefix; millivolts an optional "mV" suffix.
func (r Register) ParseValue(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	switch r.Format {
	case FormatHex, FormatBitfield, "":
		base = 16
		if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
			s = s[2:]
		}
	case FormatMillivolts:
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "mV"), "mv"))
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("%w for %s: %q", ErrInvalidValue, r.Tag, s)
	}
	return uint32(v), nil
}

// Validate checks v against the register's bounds.
func (r Register) Validate(v uint32) error {
	if !r.Writable {
		return fmt.Errorf("%w: %s", ErrNotWritable, r.Tag)
	}
	if v < r.Min || (r.Max > 0 && v > r.Max) {
		if r.Max > 0 {
			return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrOutOfRange, r.Tag, r.Min, r.Max, v)
		}
		return fmt.Errorf("%w: %s must be at least %d, got %d", ErrOutOfRange, r.Tag, r.Min, v)
	}
	return nil
}

// ValidatePeriod checks that the integration period is not shorter than
// the integration time. The sensor loses calibration otherwise.
func ValidatePeriod(period, integrationTime uint32) error {
	if period < integrationTime {
		return fmt.Errorf("%w: period %d < integration time %d", ErrPeriodTooShort, period, integrationTime)
	}
	return nil
}

// Registers of the default catalog.
var (
	IntegrationTime = Register{
		Tag: "integration-time", Alias: "tint", Address: eole.AddrIntegrationTime,
		Format: FormatDecimal, Min: 1, Writable: true,
	}
	IntegrationPeriod = Register{
		Tag: "integration-period", Alias: "tframe", Address: eole.AddrIntegrationPeriod,
		Format: FormatDecimal, Min: 1, Writable: true,
	}
	GPOL = Register{
		Tag: "gpol", Alias: "gpol", Address: eole.AddrGPOL,
		Format: FormatMillivolts, Min: 1500, Max: 3600, Writable: true,
	}
	ClockControlRegister = Register{
		Tag: "clock-control", Alias: "mck", Address: eole.AddrClockControl,
		Format: FormatBitfield, Writable: true,
	}
	OutputConfigRegister = Register{
		Tag: "output-config", Alias: "output", Address: eole.AddrOutputConfig,
		Format: FormatBitfield, Writable: true,
	}
)

// DefaultCatalog returns the registers the sensor tool works with.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, r := range []Register{IntegrationTime, IntegrationPeriod, GPOL, ClockControlRegister, OutputConfigRegister} {
		_ = c.Add(r)
	}
	return c
}

// customRegister describes an address that is not in any catalog. Values
// of custom registers are hex.
func customRegister(addr eole.Address) Register {
	return Register{
		Tag:      fmt.Sprintf("0x%03X", uint32(addr)),
		Address:  addr,
		Format:   FormatHex,
		Writable: true,
	}
}
