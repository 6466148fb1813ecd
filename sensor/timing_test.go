package sensor

import (
	"errors"
	"math"
	"testing"
)

func TestComputeTiming(t *testing.T) {
	const mck = 20e6 * 36 / 3.5 / 2
	clock := DecodeClockControl(0x0100)

	tests := []struct {
		name       string
		tint       uint32
		output     OutputConfig
		wantPeriod uint32
		wantCycles float64
	}{
		{"forced four outputs", 12, DecodeOutputConfig(0x00, DefaultOutputPolicy()), 81933, 81932},
		{"reported two outputs", 12, DecodeOutputConfig(0x00, ReportedOutputPolicy()), 163853, 163852},
		{"640x480", 100, DecodeOutputConfig(0x80, DefaultOutputPolicy()), 76901, 76900},
		{"512x512 one cycle", 1, DecodeOutputConfig(0x40, DefaultOutputPolicy()), 65538, 65537},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timing, err := ComputeTiming(tt.tint, clock, tt.output)
			if err != nil {
				t.Fatalf("ComputeTiming: %v", err)
			}
			if timing.RecommendedPeriod != tt.wantPeriod {
				t.Errorf("period = %d, want %d", timing.RecommendedPeriod, tt.wantPeriod)
			}
			if want := tt.wantCycles / mck; math.Abs(timing.MinFrameTime-want) > 1e-12 {
				t.Errorf("min frame time = %g, want %g", timing.MinFrameTime, want)
			}
			if math.Abs(timing.FPS*timing.MinFrameTime-1) > 1e-9 {
				t.Errorf("FPS %f is not 1/%g", timing.FPS, timing.MinFrameTime)
			}
			if timing.RecommendedPeriod < tt.tint {
				t.Errorf("recommended period %d below integration time %d", timing.RecommendedPeriod, tt.tint)
			}
		})
	}
}

func TestComputeTimingErrors(t *testing.T) {
	output := DecodeOutputConfig(0x00, DefaultOutputPolicy())
	if _, err := ComputeTiming(12, DecodeClockControl(0x0000), output); !errors.Is(err, ErrInvalidClock) {
		t.Errorf("zero XCLK divider: %v, want ErrInvalidClock", err)
	}
	if _, err := ComputeTiming(12, DecodeClockControl(0x0100), DecodeOutputConfig(0xC0, DefaultOutputPolicy())); !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("invalid resolution: %v, want ErrInvalidResolution", err)
	}
	noOutputs := output
	noOutputs.VideoOutputs = 0
	if _, err := ComputeTiming(12, DecodeClockControl(0x0100), noOutputs); !errors.Is(err, ErrInvalidClock) {
		t.Errorf("zero outputs: %v, want ErrInvalidClock", err)
	}
}
