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
	"context"
	"errors"
	"fmt"
	"io"

	eole "github.com/hootrhino/goeole"
)

// RegisterClient is the part of *eole.Client the caller layer uses.
type RegisterClient interface {
	ReadRegister(ctx context.Context, addr eole.Address) (eole.Response, error)
	WriteRegister(ctx context.Context, addr eole.Address, value uint32) error
	CheckLink() bool
}

// Reading is the value of one register at one point in time.
type Reading struct {
	Register Register    `json:"register"`
	Value    uint32      `json:"value"`
	Status   eole.Status `json:"status"`
	Text     string      `json:"text"`
	Err      error       `json:"-"`
}

// OK reports whether the register was read and acknowledged.
func (r Reading) OK() bool { return r.Err == nil }

func readRegister(ctx context.Context, c RegisterClient, reg Register) Reading {
	resp, err := c.ReadRegister(ctx, reg.Address)
	reading := Reading{Register: reg, Value: resp.Value, Status: resp.Status}
	switch {
	case err != nil:
		reading.Err = err
	case !resp.Status.OK():
		reading.Err = fmt.Errorf("%w: %s", ErrReadRejected, reg.Tag)
	default:
		reading.Text = reg.FormatValue(resp.Value)
	}
	return reading
}

// Device drives one sensor through a RegisterClient.
type Device struct {
	client   RegisterClient
	catalog  *Catalog
	aliases  AliasTable
	policy   OutputPolicy
	autoSync bool
	logger   io.Writer
}

// NewDevice creates a Device. A nil catalog means DefaultCatalog.
func NewDevice(client RegisterClient, catalog *Catalog) *Device {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Device{
		client:   client,
		catalog:  catalog,
		aliases:  DefaultAliases(),
		policy:   DefaultOutputPolicy(),
		autoSync: true,
		logger:   io.Discard,
	}
}

// SetLogger sets the writer for log lines.
func (d *Device) SetLogger(logger io.Writer) {
	if logger == nil {
		logger = io.Discard
	}
	d.logger = logger
}

// SetOutputPolicy sets the video output policy used for timing.
func (d *Device) SetOutputPolicy(p OutputPolicy) { d.policy = p }

// SetAutoSync controls whether writing the integration time also writes the
// recommended integration period. It is on by default.
func (d *Device) SetAutoSync(on bool) { d.autoSync = on }

// Catalog returns the device's register catalog.
func (d *Device) Catalog() *Catalog { return d.catalog }

// Resolve finds the register named by a catalog tag or alias, a name from
// the alias table, or a hex address.
func (d *Device) Resolve(name string) (Register, error) {
	if r, ok := d.catalog.Lookup(name); ok {
		return r, nil
	}
	addr, err := d.aliases.Resolve(name)
	if err != nil {
		return Register{}, err
	}
	if r, ok := d.catalog.ByAddress(addr); ok {
		return r, nil
	}
	return customRegister(addr), nil
}

// Read reads one register.
func (d *Device) Read(ctx context.Context, name string) (Reading, error) {
	reg, err := d.Resolve(name)
	if err != nil {
		return Reading{}, err
	}
	reading := readRegister(ctx, d.client, reg)
	return reading, reading.Err
}

// ReadAll reads every catalog register. It keeps going after a failed read;
// the returned error joins all failures.
func (d *Device) ReadAll(ctx context.Context) ([]Reading, error) {
	regs := d.catalog.Registers()
	readings := make([]Reading, 0, len(regs))
	var errs []error
	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		r := readRegister(ctx, d.client, reg)
		if r.Err != nil {
			fmt.Fprintf(d.logger, "WARNING: sensor: read %s: %v\n", reg.Tag, r.Err)
			errs = append(errs, r.Err)
		}
		readings = append(readings, r)
	}
	return readings, errors.Join(errs...)
}

// Write parses value in the register's format, validates it and writes it.
func (d *Device) Write(ctx context.Context, name, value string) (uint32, error) {
	reg, err := d.Resolve(name)
	if err != nil {
		return 0, err
	}
	v, err := reg.ParseValue(value)
	if err != nil {
		return 0, err
	}
	return v, d.WriteValue(ctx, reg, v)
}

// WriteValue validates v against reg and writes it. The checks follow the
// address, not the name, so an integration period written through a custom
// address is still checked against the integration time.
func (d *Device) WriteValue(ctx context.Context, reg Register, v uint32) error {
	if err := reg.Validate(v); err != nil {
		return err
	}
	if reg.Address == eole.AddrIntegrationPeriod {
		tint, err := d.readValue(ctx, eole.AddrIntegrationTime)
		if err != nil {
			return fmt.Errorf("read integration time: %w", err)
		}
		if err := ValidatePeriod(v, tint); err != nil {
			return err
		}
	}

	if err := d.client.WriteRegister(ctx, reg.Address, v); err != nil {
		return err
	}
	fmt.Fprintf(d.logger, "INFO: sensor: wrote %s = %s\n", reg.Tag, reg.FormatValue(v))

	if reg.Address == eole.AddrIntegrationTime && d.autoSync {
		if _, err := d.SyncPeriod(ctx); err != nil {
			return fmt.Errorf("sync integration period: %w", err)
		}
	}
	return nil
}

// OutputConfig reads and decodes the output configuration under the
// device's output policy.
func (d *Device) OutputConfig(ctx context.Context) (OutputConfig, error) {
	v, err := d.readValue(ctx, eole.AddrOutputConfig)
	if err != nil {
		return OutputConfig{}, err
	}
	o := DecodeOutputConfig(v, d.policy)
	if o.Forced() {
		fmt.Fprintf(d.logger, "DEBUG: sensor: output register reports %d video outputs, using %d\n", o.ReportedOutputs, o.VideoOutputs)
	}
	return o, nil
}

// ClockControl reads and decodes the clock control register.
func (d *Device) ClockControl(ctx context.Context) (ClockControl, error) {
	v, err := d.readValue(ctx, eole.AddrClockControl)
	if err != nil {
		return ClockControl{}, err
	}
	c := DecodeClockControl(v)
	if c.Source == ClockExternal {
		fmt.Fprintf(d.logger, "WARNING: sensor: external clock source selected\n")
	}
	return c, nil
}

// Timing reads the output configuration, clock control and integration
// time and derives the frame timing.
func (d *Device) Timing(ctx context.Context) (Timing, error) {
	output, err := d.OutputConfig(ctx)
	if err != nil {
		return Timing{}, err
	}
	clock, err := d.ClockControl(ctx)
	if err != nil {
		return Timing{}, err
	}
	tint, err := d.readValue(ctx, eole.AddrIntegrationTime)
	if err != nil {
		return Timing{}, err
	}
	return ComputeTiming(tint, clock, output)
}

// SyncPeriod writes the recommended integration period for the current
// integration time and returns it.
func (d *Device) SyncPeriod(ctx context.Context) (uint32, error) {
	t, err := d.Timing(ctx)
	if err != nil {
		return 0, err
	}
	if err := d.client.WriteRegister(ctx, eole.AddrIntegrationPeriod, t.RecommendedPeriod); err != nil {
		return 0, err
	}
	fmt.Fprintf(d.logger, "INFO: sensor: integration period set to %d (%s)\n", t.RecommendedPeriod, t)
	return t.RecommendedPeriod, nil
}

func (d *Device) readValue(ctx context.Context, addr eole.Address) (uint32, error) {
	resp, err := d.client.ReadRegister(ctx, addr)
	if err != nil {
		return 0, err
	}
	if !resp.Status.OK() {
		return 0, fmt.Errorf("%w: %s", ErrReadRejected, addr)
	}
	return resp.Value, nil
}
