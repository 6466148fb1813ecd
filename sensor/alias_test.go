package sensor

import (
	"errors"
	"testing"

	eole "github.com/hootrhino/goeole"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    eole.Address
		wantErr bool
	}{
		{"tint", eole.AddrIntegrationTime, false},
		{"TFRAME", eole.AddrIntegrationPeriod, false},
		{" gpol ", eole.AddrGPOL, false},
		{"mck", eole.AddrClockControl, false},
		{"output-config", eole.AddrOutputConfig, false},
		{"0x098", eole.AddrIntegrationTime, false},
		{"1A", 0x1A, false},
		// Field indices of the register grid are plain hex addresses here.
		{"0", 0x000, false},
		{"1", 0x001, false},
		{"fps", 0, true},
		{"", 0, true},
		{"0x123456789", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAddress(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownRegister) {
				t.Errorf("ParseAddress(%q) error = %v, want ErrUnknownRegister", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseAddress(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestAliasTableAdd(t *testing.T) {
	table := DefaultAliases()
	table.Add("Shutter", eole.AddrIntegrationTime)
	if addr, err := table.Resolve("shutter"); err != nil || addr != eole.AddrIntegrationTime {
		t.Errorf("Resolve(shutter) = %v, %v", addr, err)
	}
	if _, err := DefaultAliases().Resolve("shutter"); err == nil {
		t.Error("alias leaked into the default table")
	}
}
