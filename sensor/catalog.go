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
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	eole "github.com/hootrhino/goeole"
)

// Catalog is an ordered set of registers addressable by tag, alias or
// address. It is not safe for concurrent modification.
type Catalog struct {
	registers []Register
	byName    map[string]int
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]int)}
}

// Add appends r. Tags and aliases must be unique, case insensitively.
func (c *Catalog) Add(r Register) error {
	if r.Tag == "" {
		return fmt.Errorf("'tag' is required")
	}
	names := []string{strings.ToLower(r.Tag)}
	if r.Alias != "" && !strings.EqualFold(r.Alias, r.Tag) {
		names = append(names, strings.ToLower(r.Alias))
	}
	for _, n := range names {
		if _, exists := c.byName[n]; exists {
			return fmt.Errorf("duplicate tag or alias: %s", n)
		}
	}
	if r.Format == "" {
		r.Format = FormatHex
	}
	c.registers = append(c.registers, r)
	for _, n := range names {
		c.byName[n] = len(c.registers) - 1
	}
	return nil
}

// Lookup finds a register by tag or alias.
func (c *Catalog) Lookup(name string) (Register, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Register{}, false
	}
	return c.registers[i], true
}

// ByAddress finds the first register at addr.
func (c *Catalog) ByAddress(addr eole.Address) (Register, bool) {
	for _, r := range c.registers {
		if r.Address == addr {
			return r, true
		}
	}
	return Register{}, false
}

// Registers returns the registers in insertion order.
func (c *Catalog) Registers() []Register {
	return append([]Register(nil), c.registers...)
}

// Len returns the number of registers.
func (c *Catalog) Len() int {
	return len(c.registers)
}

var catalogHeaders = []string{"tag", "alias", "address", "format", "min", "max", "writable"}

// ParseCatalogCSV reads a catalog from CSV with the header
// tag,alias,address,format,min,max,writable. Only tag and address are
// required; addresses are hex and writable defaults to true.
func ParseCatalogCSV(reader io.Reader) (*Catalog, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.Comment = '#'

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV file")
	}

	headerMap := make(map[string]int)
	for i, h := range records[0] {
		headerMap[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, field := range []string{"tag", "address"} {
		if _, exists := headerMap[field]; !exists {
			return nil, fmt.Errorf("missing required field in CSV header: %s", field)
		}
	}

	catalog := NewCatalog()
	for i, record := range records[1:] {
		rowNum := i + 2
		register, err := parseRegisterRecord(record, headerMap)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}
		if err := catalog.Add(register); err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
	}
	return catalog, nil
}

func parseRegisterRecord(record []string, headerMap map[string]int) (Register, error) {
	getField := func(name string) string {
		if idx, exists := headerMap[name]; exists && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}
	parseUintField := func(name string) (uint32, error) {
		s := getField(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid '%s': %w", name, err)
		}
		return uint32(v), nil
	}

	var r Register
	r.Tag = getField("tag")
	if r.Tag == "" {
		return r, fmt.Errorf("'tag' is required")
	}
	r.Alias = getField("alias")

	addr, err := parseHexAddress(getField("address"))
	if err != nil {
		return r, err
	}
	r.Address = addr

	if r.Format, err = ParseFormat(getField("format")); err != nil {
		return r, err
	}
	if r.Min, err = parseUintField("min"); err != nil {
		return r, err
	}
	if r.Max, err = parseUintField("max"); err != nil {
		return r, err
	}
	if r.Max > 0 && r.Min > r.Max {
		return r, fmt.Errorf("min %d greater than max %d", r.Min, r.Max)
	}

	r.Writable = true
	if s := getField("writable"); s != "" {
		if r.Writable, err = strconv.ParseBool(s); err != nil {
			return r, fmt.Errorf("invalid 'writable': %w", err)
		}
	}
	return r, nil
}

// WriteCatalogCSV writes c in the format read by ParseCatalogCSV.
func WriteCatalogCSV(c *Catalog, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(catalogHeaders); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range c.registers {
		record := []string{
			r.Tag,
			r.Alias,
			fmt.Sprintf("0x%03X", uint32(r.Address)),
			string(r.Format),
			strconv.FormatUint(uint64(r.Min), 10),
			strconv.FormatUint(uint64(r.Max), 10),
			strconv.FormatBool(r.Writable),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record for register %s: %w", r.Tag, err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
