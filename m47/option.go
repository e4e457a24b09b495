// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"fmt"

	"github.com/go-lpc/ssi/m47/internal/regs"
)

// BaudRate is the SSI clock rate of a channel.
type BaudRate uint8

const (
	Baud500 BaudRate = iota // 500 kbaud
	Baud250                 // 250 kbaud
	Baud125                 // 125 kbaud
	Baud62k5                // 62.5 kbaud
)

func (br BaudRate) String() string {
	switch br {
	case Baud500:
		return "500kbaud"
	case Baud250:
		return "250kbaud"
	case Baud125:
		return "125kbaud"
	case Baud62k5:
		return "62.5kbaud"
	default:
		return fmt.Sprintf("BaudRate(%d)", uint8(br))
	}
}

// TransMode is the encoding of the sensor words.
type TransMode uint8

const (
	Gray   TransMode = 0
	Binary TransMode = 1
)

func (tm TransMode) String() string {
	switch tm {
	case Gray:
		return "gray"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("TransMode(%d)", uint8(tm))
	}
}

// MaxDataWidth is the widest sensor word, in bits.
// A data width of 0 stops transmission on the channel.
const MaxDataWidth = 32

// Field identifies one of the settings of a channel.
type Field uint8

const (
	FieldBaudRate Field = iota
	FieldDataWidth
	FieldTransMode
)

func (f Field) String() string {
	switch f {
	case FieldBaudRate:
		return "baud-rate"
	case FieldDataWidth:
		return "data-width"
	case FieldTransMode:
		return "trans-mode"
	default:
		return fmt.Sprintf("Field(%d)", uint8(f))
	}
}

// ChannelOption holds the settings of one SSI channel.
type ChannelOption struct {
	DataWidth int       // number of bits in a sensor word, [0, 32]
	BaudRate  BaudRate  // [0, 3]
	TransMode TransMode // Gray or Binary
}

// Mask keeps the DataWidth least significant bits of a sample.
func (opt ChannelOption) Mask(v uint32) uint32 {
	if opt.DataWidth >= MaxDataWidth {
		return v
	}
	return v & (1<<uint(opt.DataWidth) - 1)
}

func (opt ChannelOption) get(f Field) int64 {
	switch f {
	case FieldBaudRate:
		return int64(opt.BaudRate)
	case FieldDataWidth:
		return int64(opt.DataWidth)
	case FieldTransMode:
		return int64(opt.TransMode)
	}
	panic(fmt.Errorf("m47: invalid field %v", f))
}

// set stores v, which must have been validated.
func (opt *ChannelOption) set(f Field, v int64) {
	switch f {
	case FieldBaudRate:
		opt.BaudRate = BaudRate(v)
	case FieldDataWidth:
		opt.DataWidth = int(v)
	case FieldTransMode:
		opt.TransMode = TransMode(v)
	default:
		panic(fmt.Errorf("m47: invalid field %v", f))
	}
}

func validate(f Field, v int64) error {
	var max int64
	switch f {
	case FieldBaudRate:
		max = int64(Baud62k5)
	case FieldDataWidth:
		max = MaxDataWidth
	case FieldTransMode:
		max = int64(Binary)
	default:
		return fmt.Errorf("m47: invalid field %v: %w", f, ErrInvalidConfig)
	}
	if v < 0 || v > max {
		return fmt.Errorf("m47: %v=%d out of range [0, %d]: %w", f, v, max, ErrInvalidConfig)
	}
	return nil
}

// encodeControl packs baud rate and data width into a control register word.
func encodeControl(opt ChannelOption) uint16 {
	return uint16(opt.BaudRate)&regs.MASK_BAUDRATE | uint16(opt.DataWidth)<<regs.SHIFT_DATAWIDTH
}

// encodeMode packs the transmission mode into a mode register word.
func encodeMode(opt ChannelOption) uint16 {
	return uint16(opt.TransMode) << regs.SHIFT_TRANSMODE
}

// decodeDescriptor unpacks the M47_CONTROL and M47_TRANSMODE descriptor values.
//
//	M47_CONTROL:   bits 31..8: 0, bits 7..2: data width, bits 1..0: baud rate
//	M47_TRANSMODE: bit 7: transmission mode, other bits: 0
//
// Bits set above the documented fields yield out of range values.
func decodeDescriptor(ctrl, mode uint32) (ChannelOption, error) {
	var (
		width = int64(ctrl >> regs.SHIFT_DATAWIDTH)
		baud  = int64(ctrl & regs.MASK_BAUDRATE)
		tmode = int64(mode >> regs.SHIFT_TRANSMODE)
	)
	for _, v := range []struct {
		f Field
		v int64
	}{
		{FieldTransMode, tmode},
		{FieldDataWidth, width},
		{FieldBaudRate, baud},
	} {
		err := validate(v.f, v.v)
		if err != nil {
			return ChannelOption{}, fmt.Errorf(
				"m47: illegal descriptor parameter (M47_CONTROL=0x%08x, M47_TRANSMODE=0x%08x): %w",
				ctrl, mode, err,
			)
		}
	}

	return ChannelOption{
		DataWidth: int(width),
		BaudRate:  BaudRate(baud),
		TransMode: TransMode(tmode),
	}, nil
}
