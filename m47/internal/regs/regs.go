// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the M47 M-Module.
package regs // import "github.com/go-lpc/ssi/m47/internal/regs"

// Size of the M-Module address space.
const SPAN = 0x100

// control registers (baud rate, data width)
const (
	CONTREG_CH0 = 0x80
	CONTREG_CH1 = 0x82
	CONTREG_CH2 = 0x88
	CONTREG_CH3 = 0x8c
)

// mode/PLD-revision registers
const (
	MODE_REV_CH0 = 0x84
	MODE_REV_CH1 = 0x86
	MODE_REV_CH2 = 0x8a
	MODE_REV_CH3 = 0x8e
)

const (
	FLEXREG    = 0xde // FLEXlogic load register
	STATUS_REG = 0xa0

	REG_START   = 0x00 // data buffer
	DATA_STRIDE = 0x08 // bytes of data buffer per channel

	DATABUF_WORDS = 32 // data buffer + reserved area, in 16b words
)

// FLEXREG bits
const (
	O_FLEX_TDO = 1 << 0
	O_FLEX_TCK = 1 << 1
	O_FLEX_TMS = 1 << 2
)

// control and mode register fields
const (
	MASK_BAUDRATE   = 0x0003
	SHIFT_DATAWIDTH = 2
	SHIFT_TRANSMODE = 7

	MASK_PLD_REV = 0x000f
	MASK_STATUS  = 0x000f
)

// ID PROM layout, in 16b words.
const (
	ID_MAGIC_WORD = 0
	ID_MODID_WORD = 1
	ID_HWREV_WORD = 2

	ID_MAGIC = 0x5346
	ID_MODID = 47
	ID_SIZE  = 128 // bytes
)

// DATACH returns the offset of the data buffer of channel ch.
func DATACH(ch int) int64 {
	return REG_START + int64(ch)*DATA_STRIDE
}

// CONTREG returns the offset of the control register of channel ch.
func CONTREG(ch int) int64 {
	return [...]int64{CONTREG_CH0, CONTREG_CH1, CONTREG_CH2, CONTREG_CH3}[ch]
}

// MODE_REV returns the offset of the mode/PLD-revision register of channel ch.
func MODE_REV(ch int) int64 {
	return [...]int64{MODE_REV_CH0, MODE_REV_CH1, MODE_REV_CH2, MODE_REV_CH3}[ch]
}
