// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"fmt"
)

// setGlobal applies v to all channels.
//
// Transmission is stopped and the data buffer cleared before channel 0 is
// reprogrammed, so that no sensor word mixes old and new framing.
// The channel records are restored if the registers could not be written.
func (dev *Device) setGlobal(f Field, v int64) error {
	err := validate(f, v)
	if err != nil {
		return err
	}

	old := dev.opts
	for i := range dev.opts {
		dev.opts[i].set(f, v)
	}

	dev.stop()
	dev.clearBuffer()
	if f == FieldTransMode {
		dev.regs.mode[0].w(encodeMode(dev.opts[0]))
	}
	dev.regs.ctrl[0].w(encodeControl(dev.opts[0]))

	if err := dev.bus.flush(); err != nil {
		dev.opts = old
		return fmt.Errorf("m47: could not set %v=%d: %w", f, v, err)
	}
	if dev.dbg > 1 {
		dev.msg.Printf("set %v=%d (all channels)", f, v)
	}
	return nil
}

// setChannel applies v to channel ch only.
//
// Only the control register of ch is rewritten, except for the
// transmission mode where the mode registers of all channels are
// rewritten from their own settings.
func (dev *Device) setChannel(ch int, f Field, v int64) error {
	err := dev.checkChannel(ch)
	if err != nil {
		return err
	}

	err = validate(f, v)
	if err != nil {
		return err
	}

	old := dev.opts
	dev.opts[ch].set(f, v)

	if f == FieldTransMode {
		for i := range dev.opts {
			dev.regs.mode[i].w(encodeMode(dev.opts[i]))
		}
	}
	dev.regs.ctrl[ch].w(encodeControl(dev.opts[ch]))

	if err := dev.bus.flush(); err != nil {
		dev.opts = old
		return fmt.Errorf("m47: could not set %v=%d (ch=%d): %w", f, v, ch, err)
	}
	if dev.dbg > 1 {
		dev.msg.Printf("set %v=%d (ch=%d)", f, v, ch)
	}
	return nil
}

// checkChannel verifies the module supports per-channel settings and ch
// is a valid channel.
func (dev *Device) checkChannel(ch int) error {
	if dev.hwRev < HWRev2 {
		return fmt.Errorf(
			"m47: per-channel settings need hw-rev >= 0x%04x (hw-rev=0x%04x): %w",
			HWRev2, dev.hwRev, ErrUnsupported,
		)
	}
	if ch < 0 || ch >= NumChans {
		return fmt.Errorf("m47: channel %d: %w", ch, ErrInvalidChannel)
	}
	return nil
}

func (dev *Device) query(f Field) int64 {
	return dev.opts[0].get(f)
}

func (dev *Device) queryChannel(ch int, f Field) (int64, error) {
	err := dev.checkChannel(ch)
	if err != nil {
		return 0, err
	}
	return dev.opts[ch].get(f), nil
}
