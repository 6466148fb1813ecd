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
	"strconv"
	"strings"

	eole "github.com/hootrhino/goeole"
)

// AliasTable maps register names to addresses. Lookups are case
// insensitive. Names that are not in the table are parsed as hex addresses,
// so a custom address is always taken literally and never reinterpreted as
// one of the named registers.
type AliasTable map[string]eole.Address

// DefaultAliases returns the names understood by the command line.
func DefaultAliases() AliasTable {
	return AliasTable{
		"tint":               eole.AddrIntegrationTime,
		"int_time":           eole.AddrIntegrationTime,
		"integration-time":   eole.AddrIntegrationTime,
		"tframe":             eole.AddrIntegrationPeriod,
		"int_period":         eole.AddrIntegrationPeriod,
		"integration-period": eole.AddrIntegrationPeriod,
		"gpol":               eole.AddrGPOL,
		"mck":                eole.AddrClockControl,
		"clock-control":      eole.AddrClockControl,
		"output":             eole.AddrOutputConfig,
		"output-config":      eole.AddrOutputConfig,
	}
}

// Add registers name for addr.
func (t AliasTable) Add(name string, addr eole.Address) {
	t[strings.ToLower(strings.TrimSpace(name))] = addr
}

// Resolve returns the address for a name or a hex literal.
func (t AliasTable) Resolve(s string) (eole.Address, error) {
	if addr, ok := t[strings.ToLower(strings.TrimSpace(s))]; ok {
		return addr, nil
	}
	return parseHexAddress(s)
}

// ParseAddress resolves s with the default aliases.
func ParseAddress(s string) (eole.Address, error) {
	return DefaultAliases().Resolve(s)
}

func parseHexAddress(s string) (eole.Address, error) {
	s = strings.TrimSpace(s)
	digits := s
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		digits = digits[2:]
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is neither a register name nor a hex address", ErrUnknownRegister, s)
	}
	return eole.Address(v), nil
}
