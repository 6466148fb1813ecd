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
	"errors"
	"fmt"
)

var (
	ErrInvalidClock      = errors.New("sensor: invalid master clock")
	ErrInvalidResolution = errors.New("sensor: invalid resolution")
)

// Resolution is the window mode of the sensor.
type Resolution struct {
	Width  int
	Height int
}

var resolutions = [...]Resolution{
	{640, 512},
	{512, 512},
	{640, 480},
	{}, // bits 11 are not a valid factory setting
}

// Valid reports whether r is a known window mode.
func (r Resolution) Valid() bool { return r.Width > 0 && r.Height > 0 }

// Pixels returns the pixel count of one frame.
func (r Resolution) Pixels() int { return r.Width * r.Height }

func (r Resolution) String() string {
	if !r.Valid() {
		return "invalid"
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ForcedVideoOutputs is the output count the default policy imposes. The
// sensors seen so far report 2 video outputs in the output register while
// their image data is laid out for 4.
const ForcedVideoOutputs = 4

// OutputPolicy decides the video output count used in timing computations.
type OutputPolicy struct {
	// ForceVideoOutputs overrides the reported count when non zero.
	ForceVideoOutputs int
}

// DefaultOutputPolicy forces ForcedVideoOutputs.
func DefaultOutputPolicy() OutputPolicy {
	return OutputPolicy{ForceVideoOutputs: ForcedVideoOutputs}
}

// ReportedOutputPolicy uses whatever the output register reports.
func ReportedOutputPolicy() OutputPolicy {
	return OutputPolicy{}
}

// OutputConfig is the decoded output configuration register.
type OutputConfig struct {
	Raw             uint32
	Resolution      Resolution
	ReportedOutputs int // from bit 5 of the register
	VideoOutputs    int // after the policy
}

// Forced reports whether the policy overrode the reported output count.
func (o OutputConfig) Forced() bool { return o.VideoOutputs != o.ReportedOutputs }

func (o OutputConfig) String() string {
	s := fmt.Sprintf("%s, %d video outputs", o.Resolution, o.VideoOutputs)
	if o.Forced() {
		s += fmt.Sprintf(" (register reports %d)", o.ReportedOutputs)
	}
	return s
}

// DecodeOutputConfig decodes the output configuration register. Bits 6..7
// select the resolution and bit 5 the video output count (set: 4, clear: 2).
func DecodeOutputConfig(v uint32, policy OutputPolicy) OutputConfig {
	v &= 0xFFFF
	o := OutputConfig{
		Raw:             v,
		Resolution:      resolutions[(v>>6)&0x03],
		ReportedOutputs: 2,
	}
	if (v>>5)&0x01 == 1 {
		o.ReportedOutputs = 4
	}
	o.VideoOutputs = o.ReportedOutputs
	if policy.ForceVideoOutputs > 0 {
		o.VideoOutputs = policy.ForceVideoOutputs
	}
	return o
}

// ClockSource is bit 0 of the clock control register.
type ClockSource int

const (
	ClockInternal ClockSource = iota
	ClockExternal
)

func (s ClockSource) String() string {
	if s == ClockExternal {
		return "external"
	}
	return "internal"
}

// Base clock and multiplier of the clock tree. Both sources run at 20 MHz.
const (
	BaseClockHz     = 20e6
	clockMultiplier = 36 / 3.5
)

// ClockControl is the decoded clock control register.
type ClockControl struct {
	Raw         uint32
	Source      ClockSource
	MCKDivider  int // bits 4..5: 00=2, 01=4, 10=8
	XCLKDivider int // bits 8..15
}

// DecodeClockControl decodes the low 16 bits of the clock control register.
func DecodeClockControl(v uint32) ClockControl {
	v &= 0xFFFF
	c := ClockControl{
		Raw:         v,
		Source:      ClockSource(v & 0x01),
		XCLKDivider: int((v >> 8) & 0xFF),
	}
	switch (v >> 4) & 0x03 {
	case 1:
		c.MCKDivider = 4
	case 2:
		c.MCKDivider = 8
	default:
		c.MCKDivider = 2
	}
	return c
}

// XCLK returns the XCLK frequency in Hz.
func (c ClockControl) XCLK() (float64, error) {
	if c.XCLKDivider == 0 {
		return 0, fmt.Errorf("%w: XCLK divider is 0", ErrInvalidClock)
	}
	return BaseClockHz * clockMultiplier / float64(c.XCLKDivider), nil
}

// MCK returns the master clock frequency in Hz.
func (c ClockControl) MCK() (float64, error) {
	xclk, err := c.XCLK()
	if err != nil {
		return 0, err
	}
	if c.MCKDivider == 0 {
		return 0, fmt.Errorf("%w: MCK divider is 0", ErrInvalidClock)
	}
	return xclk / float64(c.MCKDivider), nil
}

func (c ClockControl) String() string {
	mck, err := c.MCK()
	if err != nil {
		return fmt.Sprintf("%s clock, XCLK/%d, MCK/%d (invalid)", c.Source, c.XCLKDivider, c.MCKDivider)
	}
	return fmt.Sprintf("%s clock, XCLK/%d, MCK/%d = %.3f MHz", c.Source, c.XCLKDivider, c.MCKDivider, mck/1e6)
}
