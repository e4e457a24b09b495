// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"fmt"
	"strings"

	"github.com/go-lpc/ssi/m47/internal/regs"
)

// Code is a status code, used to configure (SetStat) or query (GetStat)
// a device.
type Code uint16

const (
	CodeBaudRate     Code = iota + 1 // G,S: baud rate of all channels
	CodeDataWidth                    // G,S: data width of all channels
	CodeTransMode                    // G,S: transmission mode of all channels
	CodeCheckConnect                 // G:   bit mask of channels receiving sensor data
	CodePLDRev                       // G:   FLEXlogic revision
	CodeBaudRateCh                   // G,S: baud rate of one channel (hw-rev >= 2.0)
	CodeDataWidthCh                  // G,S: data width of one channel (hw-rev >= 2.0)
	CodeTransModeCh                  // G,S: transmission mode of one channel (hw-rev >= 2.0)
	CodeHWRev                        // G:   module hardware revision

	CodeDebugLevel // G,S: driver debug level
	CodeIRQEnable  //   S: interrupt enable (not supported)
	CodeIRQCount   // G,S: interrupt counter
	CodeChanDir    // G,S: channel direction
	CodeChanNumber // G:   number of channels
	CodeChanLen    // G:   channel length in bits
	CodeChanType   // G:   channel type
	CodeIDCheck    // G:   ID PROM check enabled
	CodeIDSize     // G:   ID PROM size in bytes
	CodeIDData     // G:   ID PROM content (block)
)

var codeNames = map[Code]string{
	CodeBaudRate:     "baudrate",
	CodeDataWidth:    "data-width",
	CodeTransMode:    "trans-mode",
	CodeCheckConnect: "check-connect",
	CodePLDRev:       "pld-rev",
	CodeBaudRateCh:   "baudrate-ch",
	CodeDataWidthCh:  "data-width-ch",
	CodeTransModeCh:  "trans-mode-ch",
	CodeHWRev:        "hw-rev",
	CodeDebugLevel:   "debug-level",
	CodeIRQEnable:    "irq-enable",
	CodeIRQCount:     "irq-count",
	CodeChanDir:      "ch-dir",
	CodeChanNumber:   "ch-number",
	CodeChanLen:      "ch-len",
	CodeChanType:     "ch-type",
	CodeIDCheck:      "id-check",
	CodeIDSize:       "id-size",
	CodeIDData:       "id-data",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint16(c))
}

// CodeFrom returns the status code with the provided name.
func CodeFrom(name string) (Code, bool) {
	name = strings.ToLower(name)
	for c, n := range codeNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Channel directions.
const (
	DirIn    = 1
	DirOut   = 2
	DirInOut = 3
)

// ChanTypeSerial is the channel type reported by the ChanType status code.
const ChanTypeSerial = 2

func (c Code) field() Field {
	switch c {
	case CodeBaudRate, CodeBaudRateCh:
		return FieldBaudRate
	case CodeDataWidth, CodeDataWidthCh:
		return FieldDataWidth
	case CodeTransMode, CodeTransModeCh:
		return FieldTransMode
	}
	panic(fmt.Errorf("m47: status code %v has no associated field", c))
}

// SetStat sets the status code to v.
// ch is only used by the per-channel codes.
//
// Invalid requests leave the device configuration unchanged.
func (dev *Device) SetStat(code Code, ch int, v int64) error {
	if err := dev.usable(); err != nil {
		return err
	}

	var err error
	switch code {
	case CodeDebugLevel:
		dev.dbg = uint32(v)

	case CodeIRQEnable:
		err = fmt.Errorf("m47: interrupts not supported: %w", ErrUnknownCode)

	case CodeIRQCount:
		dev.irqs = v

	case CodeChanDir:
		if v != DirIn {
			err = fmt.Errorf("m47: channels are inputs (dir=%d): %w", v, ErrInvalidDirection)
		}

	case CodeBaudRate, CodeDataWidth, CodeTransMode:
		err = dev.setGlobal(code.field(), v)

	case CodeBaudRateCh, CodeDataWidthCh, CodeTransModeCh:
		err = dev.setChannel(ch, code.field(), v)

	default:
		err = fmt.Errorf("m47: could not set status code %v: %w", code, ErrUnknownCode)
	}

	if err != nil && dev.dbg > 0 {
		dev.msg.Printf("setstat: code=%v ch=%d value=0x%x: %+v", code, ch, v, err)
	}
	return err
}

// GetStat returns the value of the status code.
// ch is only used by the per-channel codes.
func (dev *Device) GetStat(code Code, ch int) (int64, error) {
	if err := dev.usable(); err != nil {
		return 0, err
	}

	switch code {
	case CodeDebugLevel:
		return int64(dev.dbg), nil

	case CodeChanNumber:
		return NumChans, nil

	case CodeChanDir:
		return DirIn, nil

	case CodeChanLen:
		return ChanLen, nil

	case CodeChanType:
		return ChanTypeSerial, nil

	case CodeIRQCount:
		return dev.irqs, nil

	case CodeIDCheck:
		if dev.idCheck {
			return 1, nil
		}
		return 0, nil

	case CodeIDSize:
		return IDSize, nil

	case CodeBaudRate, CodeDataWidth, CodeTransMode:
		return dev.query(code.field()), nil

	case CodeBaudRateCh, CodeDataWidthCh, CodeTransModeCh:
		return dev.queryChannel(ch, code.field())

	case CodePLDRev:
		v := dev.regs.mode[0].r() & regs.MASK_PLD_REV
		if err := dev.bus.flush(); err != nil {
			return 0, fmt.Errorf("m47: could not read PLD revision: %w", err)
		}
		return int64(v), nil

	case CodeHWRev:
		return int64(dev.hwRev), nil

	case CodeCheckConnect:
		return dev.checkConnect()

	default:
		return 0, fmt.Errorf("m47: could not get status code %v: %w", code, ErrUnknownCode)
	}
}

// checkConnect returns a bit mask of the channels receiving framed
// sensor data.
// The status register is cleared and read back after a fixed delay, long
// enough for 2 transmission cycles.
func (dev *Device) checkConnect() (int64, error) {
	dev.regs.status.w(0)
	if err := dev.bus.flush(); err != nil {
		return 0, fmt.Errorf("m47: could not clear status register: %w", err)
	}

	dev.sleep(checkDelay)

	v := dev.regs.status.r() & regs.MASK_STATUS
	if err := dev.bus.flush(); err != nil {
		return 0, fmt.Errorf("m47: could not read status register: %w", err)
	}
	return int64(v), nil
}

// GetBlock reads the block status code into p.
// It returns the number of bytes read.
func (dev *Device) GetBlock(code Code, p []byte) (int, error) {
	if err := dev.usable(); err != nil {
		return 0, err
	}

	switch code {
	case CodeIDData:
		return dev.readID(p)
	default:
		return 0, fmt.Errorf("m47: could not get block status code %v: %w", code, ErrUnknownCode)
	}
}

// Write always fails: M47 channels are inputs.
func (dev *Device) Write(ch int, v uint32) error {
	return fmt.Errorf("m47: could not write to channel %d: %w", ch, ErrUnsupported)
}

// WriteBlock always fails: M47 channels are inputs.
func (dev *Device) WriteBlock(src []uint32) (int, error) {
	return 0, fmt.Errorf("m47: could not write block: %w", ErrUnsupported)
}
