// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"encoding/binary"
	"fmt"
)

// IDROM gives access to the identification PROM of an M-Module.
//
// The PROM is organized as 16b words:
//
//	word 0: magic (0x5346)
//	word 1: module id (47)
//	word 2: hardware revision
type IDROM interface {
	ReadWord(i int) (uint16, error)
}

// IDWords is an in-memory identification PROM.
type IDWords []uint16

// ReadWord implements IDROM.
func (rom IDWords) ReadWord(i int) (uint16, error) {
	if i < 0 || i >= len(rom) {
		return 0, fmt.Errorf("m47: ID PROM word %d out of range [0, %d)", i, len(rom))
	}
	return rom[i], nil
}

// readID copies the first IDSize bytes of the PROM into p.
func (dev *Device) readID(p []byte) (int, error) {
	if len(p) < IDSize {
		return 0, fmt.Errorf(
			"m47: could not read ID PROM (len=%d, want=%d): %w",
			len(p), IDSize, ErrBufferTooSmall,
		)
	}
	for i := 0; i < IDSize/2; i++ {
		v, err := dev.rom.ReadWord(i)
		if err != nil {
			return 2 * i, fmt.Errorf("m47: could not read ID PROM: %w", err)
		}
		binary.LittleEndian.PutUint16(p[2*i:], v)
	}
	return IDSize, nil
}
