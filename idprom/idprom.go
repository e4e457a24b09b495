// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package idprom reads the identification EEPROM of an M-Module,
// exposed on the SMBus of the carrier board.
package idprom // import "github.com/go-lpc/ssi/idprom"

import (
	"fmt"

	"github.com/go-daq/smbus"
	"github.com/go-lpc/ssi/m47"
)

const nwords = m47.IDSize / 2

type conn interface {
	ReadReg(addr, reg uint8) (uint8, error)
	Close() error
}

// EEPROM is an identification EEPROM on a SMBus.
//
// Words are stored most significant byte first.
type EEPROM struct {
	addr uint8
	conn conn
}

// Open opens the EEPROM at address addr on the SMBus bus.
func Open(bus int, addr uint8) (*EEPROM, error) {
	c, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("idprom: could not open smbus=%d, addr=0x%x: %w", bus, addr, err)
	}
	return newEEPROM(c, addr), nil
}

func newEEPROM(c conn, addr uint8) *EEPROM {
	return &EEPROM{addr: addr, conn: c}
}

// Close closes the underlying SMBus connection.
func (rom *EEPROM) Close() error {
	if rom.conn == nil {
		return nil
	}
	err := rom.conn.Close()
	rom.conn = nil
	if err != nil {
		return fmt.Errorf("idprom: could not close smbus connection: %w", err)
	}
	return nil
}

// ReadWord implements m47.IDROM.
func (rom *EEPROM) ReadWord(i int) (uint16, error) {
	if rom.conn == nil {
		return 0, fmt.Errorf("idprom: EEPROM closed")
	}
	if i < 0 || i >= nwords {
		return 0, fmt.Errorf("idprom: word %d out of range [0, %d)", i, nwords)
	}

	hi, err := rom.conn.ReadReg(rom.addr, uint8(2*i))
	if err != nil {
		return 0, fmt.Errorf("idprom: could not read word %d: %w", i, err)
	}
	lo, err := rom.conn.ReadReg(rom.addr, uint8(2*i+1))
	if err != nil {
		return 0, fmt.Errorf("idprom: could not read word %d: %w", i, err)
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// Snapshot reads the whole EEPROM into memory.
func (rom *EEPROM) Snapshot() (m47.IDWords, error) {
	words := make(m47.IDWords, nwords)
	for i := range words {
		v, err := rom.ReadWord(i)
		if err != nil {
			return nil, err
		}
		words[i] = v
	}
	return words, nil
}

var (
	_ m47.IDROM = (*EEPROM)(nil)
)
