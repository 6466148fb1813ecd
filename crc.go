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

package eole

const (
	crcPolynomial = 0xA001 // CRC-16/MODBUS (reversed 0x8005)
	crcInitial    = 0xFFFF
)

// crcTable is the pre-calculated lookup table for the Modbus polynomial.
var crcTable = makeCRCTable()

func makeCRCTable() [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRC16 calculates the Modbus CRC16 checksum of data.
// The result is the raw accumulator; on the wire it is sent high byte first.
func CRC16(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if (crc & 0x0001) != 0 {
				crc >>= 1
				crc ^= crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// crc16Table calculates the same checksum as CRC16 using the lookup table.
func crc16Table(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc = (crc >> 8) ^ crcTable[uint8(crc)^b]
	}
	return crc
}

// putCRC computes the checksum over all but the last two bytes of frame and
// stores it big-endian in those two bytes.
func putCRC(frame []byte) {
	n := len(frame) - 2
	crc := crc16Table(frame[:n])
	frame[n] = byte(crc >> 8)
	frame[n+1] = byte(crc)
}

// checkCRC recomputes the checksum of frame and compares it with the trailing
// big-endian CRC bytes.
func checkCRC(frame []byte) (want, got uint16, ok bool) {
	if len(frame) < 3 {
		return 0, 0, false
	}
	n := len(frame) - 2
	want = crc16Table(frame[:n])
	got = uint16(frame[n])<<8 | uint16(frame[n+1])
	return want, got, want == got
}
