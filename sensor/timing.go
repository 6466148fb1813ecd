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
	"fmt"
	"math"
)

// Timing is the frame timing derived from the integration time, the master
// clock and the output configuration.
type Timing struct {
	MCK               float64 // Hz
	MinFrameTime      float64 // seconds
	FPS               float64
	RecommendedPeriod uint32 // integration period in MCK periods
}

// ComputeTiming derives the frame timing. The minimum frame time is
// tint/MCK + pixels/(MCK*outputs) and the recommended integration period
// is that time in MCK periods plus one.
func ComputeTiming(integrationTime uint32, clock ClockControl, output OutputConfig) (Timing, error) {
	mck, err := clock.MCK()
	if err != nil {
		return Timing{}, err
	}
	if !output.Resolution.Valid() {
		return Timing{}, fmt.Errorf("%w: output register 0x%04X", ErrInvalidResolution, output.Raw)
	}
	if output.VideoOutputs <= 0 {
		return Timing{}, fmt.Errorf("%w: %d video outputs", ErrInvalidClock, output.VideoOutputs)
	}

	cycles := float64(integrationTime) + float64(output.Resolution.Pixels())/float64(output.VideoOutputs)
	if cycles <= 0 {
		return Timing{}, fmt.Errorf("%w: zero frame time", ErrInvalidClock)
	}
	minFrame := cycles / mck
	period := math.Floor(cycles) + 1
	if period > math.MaxUint32 {
		return Timing{}, fmt.Errorf("%w: period %.0f overflows the register", ErrOutOfRange, period)
	}
	return Timing{
		MCK:               mck,
		MinFrameTime:      minFrame,
		FPS:               1 / minFrame,
		RecommendedPeriod: uint32(period),
	}, nil
}

func (t Timing) String() string {
	return fmt.Sprintf("MCK %.3f MHz, frame %.6f s, %.2f FPS, period %d", t.MCK/1e6, t.MinFrameTime, t.FPS, t.RecommendedPeriod)
}
