// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"fmt"

	"github.com/go-lpc/ssi/m47/internal/regs"
)

// sample assembles the last sensor word of channel ch from the low bytes
// of its 4 data buffer registers, most significant byte first.
func (dev *Device) sample(ch int) uint32 {
	var (
		base = regs.DATACH(ch)
		v    uint32
	)
	for i := int64(0); i < 4; i++ {
		v <<= 8
		v |= uint32(uint8(dev.bus.r16(base + 2*i)))
	}
	return v
}

// Read returns the last sensor word of channel ch.
// Only the DataWidth least significant bits are valid: see ChannelOption.Mask.
func (dev *Device) Read(ch int) (uint32, error) {
	if err := dev.usable(); err != nil {
		return 0, err
	}
	if ch < 0 || ch >= NumChans {
		return 0, fmt.Errorf("m47: could not read channel %d: %w", ch, ErrInvalidChannel)
	}

	v := dev.sample(ch)
	if err := dev.bus.flush(); err != nil {
		return 0, fmt.Errorf("m47: could not read channel %d: %w", ch, err)
	}
	if dev.dbg > 1 {
		dev.msg.Printf("read: ch=%d data=0x%08x", ch, v)
	}
	return v, nil
}

// ReadBlock reads the sensor words of all channels into dst.
// It returns the number of words read.
func (dev *Device) ReadBlock(dst []uint32) (int, error) {
	if err := dev.usable(); err != nil {
		return 0, err
	}
	if len(dst) < NumChans {
		return 0, fmt.Errorf(
			"m47: could not read block (len=%d, want=%d): %w",
			len(dst), NumChans, ErrBufferTooSmall,
		)
	}

	for ch := 0; ch < NumChans; ch++ {
		dst[ch] = dev.sample(ch)
	}
	if err := dev.bus.flush(); err != nil {
		return 0, fmt.Errorf("m47: could not read block: %w", err)
	}
	return NumChans, nil
}
