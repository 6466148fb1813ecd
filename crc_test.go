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

import (
	"testing"

	"github.com/sigurn/crc16"
)

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{data: []byte("123456789"), expected: 0x4B37},                        // catalogue check value
		{data: []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, expected: 0x0A84}, // sent as 84 0A by Modbus RTU
		{data: []byte{}, expected: 0xFFFF},                                   // empty data keeps the initial value
	}

	for _, tc := range testCases {
		crc := CRC16(tc.data)
		if crc != tc.expected {
			t.Errorf("CRC16(%v) returned incorrect CRC: got %#04x, expected %#04x", tc.data, crc, tc.expected)
		}
	}
}

func TestCRC16MatchesReference(t *testing.T) {
	inputs := [][]byte{
		{0x40, 0x90, 0x00, 0x00, 0x00, 0x98},
		{0x40, 0x99, 0x00, 0x00, 0x00, 0x90, 0x00, 0x00, 0x07, 0x08},
		{0x40, 0x80, 0x00, 0x00, 0x00, 0x00},
		{0x00},
		{0xFF, 0xFF, 0xFF, 0xFF},
	}
	for i := 0; i < 64; i++ {
		buf := make([]byte, i)
		for j := range buf {
			buf[j] = byte(i*31 + j*7)
		}
		inputs = append(inputs, buf)
	}

	for _, in := range inputs {
		want := crc16.Checksum(in, modbusTable)
		if got := CRC16(in); got != want {
			t.Errorf("CRC16(% X) = %#04x, reference %#04x", in, got, want)
		}
		if got := crc16Table(in); got != want {
			t.Errorf("crc16Table(% X) = %#04x, reference %#04x", in, got, want)
		}
	}
}

func TestCRC16Deterministic(t *testing.T) {
	data := []byte{0x40, 0x90, 0x00, 0x00, 0x00, 0x98}
	first := CRC16(data)
	for i := 0; i < 10; i++ {
		if got := CRC16(data); got != first {
			t.Fatalf("CRC16 not deterministic: %#04x then %#04x", first, got)
		}
	}
}

func TestCRC16SingleBitFlip(t *testing.T) {
	base := []byte{0x40, 0x80, 0x00, 0x01, 0x60, 0xAE}
	crc := CRC16(base)
	for i := range base {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), base...)
			flipped[i] ^= 1 << bit
			if CRC16(flipped) == crc {
				t.Errorf("flipping bit %d of byte %d did not change the CRC", bit, i)
			}
		}
	}
}

func TestPutCRCBigEndian(t *testing.T) {
	frame := []byte{0x40, 0x90, 0x00, 0x00, 0x00, 0x98, 0x00, 0x00}
	putCRC(frame)
	crc := CRC16(frame[:6])
	if frame[6] != byte(crc>>8) || frame[7] != byte(crc) {
		t.Errorf("CRC bytes = %02X %02X, want %02X %02X (high byte first)", frame[6], frame[7], byte(crc>>8), byte(crc))
	}

	want, got, ok := checkCRC(frame)
	if !ok || want != got {
		t.Errorf("checkCRC = %#04x, %#04x, %v; want a match", want, got, ok)
	}

	frame[7] ^= 0xFF
	if _, _, ok := checkCRC(frame); ok {
		t.Error("checkCRC accepted a corrupted CRC")
	}
}
