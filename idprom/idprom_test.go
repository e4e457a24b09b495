// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package idprom

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-lpc/ssi/internal/mmap"
	"github.com/go-lpc/ssi/m47"
)

type fakeConn struct {
	addr   uint8
	mem    [m47.IDSize]byte
	err    error
	closed bool
}

func (c *fakeConn) ReadReg(addr, reg uint8) (uint8, error) {
	if c.err != nil {
		return 0, c.err
	}
	if addr != c.addr {
		return 0, fmt.Errorf("no device at 0x%x", addr)
	}
	if int(reg) >= len(c.mem) {
		return 0, fmt.Errorf("invalid register 0x%x", reg)
	}
	return c.mem[reg], nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func newFakeConn(addr uint8) *fakeConn {
	c := &fakeConn{addr: addr}
	copy(c.mem[:], []byte{0x53, 0x46, 0x00, 0x2f, 0x02, 0x01})
	return c
}

func TestEEPROM(t *testing.T) {
	const addr = 0x50
	c := newFakeConn(addr)
	rom := newEEPROM(c, addr)

	for _, tc := range []struct {
		i    int
		want uint16
	}{
		{0, 0x5346},
		{1, 47},
		{2, 0x0201},
		{63, 0},
	} {
		got, err := rom.ReadWord(tc.i)
		if err != nil {
			t.Fatalf("could not read word %d: %+v", tc.i, err)
		}
		if got != tc.want {
			t.Fatalf("invalid word %d: got=0x%04x, want=0x%04x", tc.i, got, tc.want)
		}
	}

	for _, i := range []int{-1, 64} {
		_, err := rom.ReadWord(i)
		if err == nil {
			t.Fatalf("expected an error for word %d", i)
		}
	}

	words, err := rom.Snapshot()
	if err != nil {
		t.Fatalf("could not snapshot EEPROM: %+v", err)
	}
	if got, want := len(words), m47.IDSize/2; got != want {
		t.Fatalf("invalid snapshot size: got=%d, want=%d", got, want)
	}
	if got, want := words[2], uint16(0x0201); got != want {
		t.Fatalf("invalid hw-rev: got=0x%04x, want=0x%04x", got, want)
	}

	c.err = errors.New("smbus error")
	_, err = rom.Snapshot()
	if !errors.Is(err, c.err) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, c.err)
	}
	c.err = nil

	err = rom.Close()
	if err != nil {
		t.Fatalf("could not close EEPROM: %+v", err)
	}
	if !c.closed {
		t.Fatalf("smbus connection not closed")
	}
	err = rom.Close()
	if err != nil {
		t.Fatalf("could not close EEPROM twice: %+v", err)
	}

	_, err = rom.ReadWord(0)
	if err == nil {
		t.Fatalf("expected an error on closed EEPROM")
	}
}

func TestEEPROMDevice(t *testing.T) {
	const addr = 0x50
	rom := newEEPROM(newFakeConn(addr), addr)
	defer rom.Close()

	buf := make([]byte, m47.IDSize)
	n, err := readID(rom, buf)
	if err != nil {
		t.Fatalf("could not read ID: %+v", err)
	}
	if n != m47.IDSize {
		t.Fatalf("invalid size: got=%d, want=%d", n, m47.IDSize)
	}
}

// readID reads the EEPROM through an initialized device.
func readID(rom m47.IDROM, p []byte) (int, error) {
	dev, err := m47.NewDevice(
		mmap.HandleFrom(make([]byte, 0x100)), rom,
		m47.WithBitstream(m47.Bitstream{Data: []byte{0xff}}),
	)
	if err != nil {
		return 0, err
	}
	defer dev.Close()
	return dev.GetBlock(m47.CodeIDData, p)
}
