// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-lpc/ssi/m47/internal/regs"
)

// Bitstream is a FLEXlogic configuration.
type Bitstream struct {
	Ident string // free-form identification of the bitstream
	Data  []byte // payload, without the length header
}

// ParseBitstream decodes a raw FLEXlogic file: a 4-byte big-endian
// payload size followed by the payload.
// Trailing bytes after the payload are ignored.
func ParseBitstream(raw []byte) (Bitstream, error) {
	if len(raw) < 4 {
		return Bitstream{}, fmt.Errorf(
			"m47: could not read bitstream size (len=%d): %w",
			len(raw), ErrInvalidConfig,
		)
	}
	n := binary.BigEndian.Uint32(raw[:4])
	if uint64(len(raw)-4) < uint64(n) {
		return Bitstream{}, fmt.Errorf(
			"m47: truncated bitstream (size=%d, payload=%d): %w",
			n, len(raw)-4, ErrInvalidConfig,
		)
	}
	return Bitstream{Data: raw[4 : 4+n]}, nil
}

// ReadBitstream reads and decodes a FLEXlogic file.
func ReadBitstream(r io.Reader) (Bitstream, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Bitstream{}, fmt.Errorf("m47: could not read bitstream: %w", err)
	}
	return ParseBitstream(raw)
}

// LoadBitstream reads and decodes the named FLEXlogic file.
func LoadBitstream(fname string) (Bitstream, error) {
	f, err := os.Open(fname)
	if err != nil {
		return Bitstream{}, fmt.Errorf("m47: could not open bitstream file: %w", err)
	}
	defer f.Close()

	flex, err := ReadBitstream(f)
	if err != nil {
		return flex, fmt.Errorf("m47: could not load %q: %w", fname, err)
	}
	flex.Ident = fname
	return flex, nil
}

// flexload shifts the bitstream into the FLEXlogic device through its
// 3-wire (TDO, TCK, TMS) interface, 2 bits per clock pulse.
// The target sends no acknowledgement.
func (dev *Device) flexload(flex Bitstream) {
	var (
		reg  = dev.regs.flex
		ctrl uint16
	)
	for _, b := range flex.Data {
		for i := 0; i < 4; i++ {
			ctrl &^= regs.O_FLEX_TCK
			reg.w(ctrl)

			ctrl = bitmove(ctrl, regs.O_FLEX_TDO, b&0x1 != 0)
			ctrl = bitmove(ctrl, regs.O_FLEX_TMS, b&0x2 != 0)
			reg.w(ctrl)

			ctrl |= regs.O_FLEX_TCK
			reg.w(ctrl)

			b >>= 2
		}
	}
}

func bitmove(v, mask uint16, set bool) uint16 {
	if set {
		return v | mask
	}
	return v &^ mask
}
