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

// Package eole talks to an EOLE sensor over a byte stream. Every exchange is
// one fixed size request (read 8 bytes, write 12 bytes) answered by one
// 8 byte response, all protected by a big-endian CRC16/MODBUS.
//
// A typical session:
//
//	link, err := eole.OpenTransport("/dev/ttyUSB0", eole.DefaultSerialConfig())
//	if err != nil {
//		return err
//	}
//	defer link.Close()
//
//	client := eole.NewClient(link, eole.DefaultConfig())
//	resp, err := client.ReadRegister(ctx, eole.AddrIntegrationTime)
//
// The client runs one exchange at a time and never retries; retry policy
// belongs to the caller.
package eole
