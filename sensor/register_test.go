package sensor

import (
	"errors"
	"testing"

	eole "github.com/hootrhino/goeole"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		reg  Register
		v    uint32
		want string
	}{
		{IntegrationTime, 12, "12"},
		{GPOL, 2550, "2550 mV"},
		{customRegister(0x1A), 0xABCD, "0x0000ABCD"},
		{ClockControlRegister, 0x0121, "0x00000121 (0000000100100001)"},
	}
	for _, tt := range tests {
		if got := tt.reg.FormatValue(tt.v); got != tt.want {
			t.Errorf("%s.FormatValue(%d) = %q, want %q", tt.reg.Tag, tt.v, got, tt.want)
		}
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		reg     Register
		in      string
		want    uint32
		wantErr bool
	}{
		{"decimal", IntegrationTime, "42", 42, false},
		{"decimal rejects hex", IntegrationTime, "0x2A", 0, true},
		{"millivolts plain", GPOL, "2500", 2500, false},
		{"millivolts suffix", GPOL, "2500 mV", 2500, false},
		{"hex prefix", customRegister(0x1A), "0x1A", 0x1A, false},
		{"hex bare", customRegister(0x1A), "1a", 0x1A, false},
		{"hex invalid", customRegister(0x1A), "zz", 0, true},
		{"too large", IntegrationTime, "4294967296", 0, true},
		{"negative", IntegrationTime, "-1", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.reg.ParseValue(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidValue) {
					t.Fatalf("ParseValue(%q) error = %v, want ErrInvalidValue", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseValue(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseValue(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		reg     Register
		v       uint32
		wantErr error
	}{
		{IntegrationTime, 0, ErrOutOfRange},
		{IntegrationTime, 1, nil},
		{IntegrationPeriod, 0, ErrOutOfRange},
		{GPOL, 1499, ErrOutOfRange},
		{GPOL, 1500, nil},
		{GPOL, 3600, nil},
		{GPOL, 3601, ErrOutOfRange},
		{customRegister(0x1A), 0, nil},
		{Register{Tag: "status", Address: 0x10}, 1, ErrNotWritable},
	}
	for _, tt := range tests {
		err := tt.reg.Validate(tt.v)
		if tt.wantErr == nil && err != nil {
			t.Errorf("%s.Validate(%d) = %v", tt.reg.Tag, tt.v, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("%s.Validate(%d) = %v, want %v", tt.reg.Tag, tt.v, err, tt.wantErr)
		}
	}
}

func TestValidatePeriod(t *testing.T) {
	if err := ValidatePeriod(100, 100); err != nil {
		t.Errorf("equal period rejected: %v", err)
	}
	if err := ValidatePeriod(99, 100); !errors.Is(err, ErrPeriodTooShort) {
		t.Errorf("ValidatePeriod(99, 100) = %v, want ErrPeriodTooShort", err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatHex, "Decimal": FormatDecimal, "mv": FormatMillivolts, "bitfield": FormatBitfield} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("float32"); err == nil {
		t.Error("ParseFormat accepted an unknown format")
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if c.Len() != 5 {
		t.Fatalf("default catalog has %d registers", c.Len())
	}
	for name, addr := range map[string]eole.Address{
		"tint":               eole.AddrIntegrationTime,
		"Integration-Period": eole.AddrIntegrationPeriod,
		"gpol":               eole.AddrGPOL,
		"mck":                eole.AddrClockControl,
		"output":             eole.AddrOutputConfig,
	} {
		r, ok := c.Lookup(name)
		if !ok || r.Address != addr {
			t.Errorf("Lookup(%q) = %+v, %v", name, r, ok)
		}
	}
	if r, ok := c.ByAddress(eole.AddrGPOL); !ok || r.Tag != "gpol" {
		t.Errorf("ByAddress(GPOL) = %+v, %v", r, ok)
	}
	if _, ok := c.Lookup("fps"); ok {
		t.Error("Lookup found a register that does not exist")
	}
}
