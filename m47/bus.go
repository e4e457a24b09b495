// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Mem is the M-Module address space, as seen from the carrier board.
// Registers are 16b little-endian words at byte offsets.
type Mem interface {
	io.ReaderAt
	io.WriterAt
}

// bus performs 16b accesses on the module address space.
// The first I/O error is kept and all following accesses are no-ops.
type bus struct {
	mem  Mem
	err  error
	xbuf [2]byte
}

func (b *bus) r16(off int64) uint16 {
	if b.err != nil {
		return 0
	}
	_, b.err = b.mem.ReadAt(b.xbuf[:2], off)
	if b.err != nil {
		b.err = fmt.Errorf("m47: could not read register 0x%02x: %w", off, b.err)
		return 0
	}
	return binary.LittleEndian.Uint16(b.xbuf[:2])
}

func (b *bus) w16(off int64, v uint16) {
	if b.err != nil {
		return
	}
	binary.LittleEndian.PutUint16(b.xbuf[:2], v)
	_, b.err = b.mem.WriteAt(b.xbuf[:2], off)
	if b.err != nil {
		b.err = fmt.Errorf("m47: could not write register 0x%02x: %w", off, b.err)
		return
	}
}

// flush returns and clears the sticky error.
func (b *bus) flush() error {
	err := b.err
	b.err = nil
	return err
}

type reg16 struct {
	r func() uint16
	w func(v uint16)
}

func newReg16(b *bus, off int64) reg16 {
	return reg16{
		r: func() uint16 {
			return b.r16(off)
		},
		w: func(v uint16) {
			b.w16(off, v)
		},
	}
}
