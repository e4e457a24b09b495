// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/ssi/internal/mmap"
	"github.com/go-lpc/ssi/m47/internal/regs"
)

type state uint8

const (
	stateInit state = iota
	stateReady
	stateClosed
)

// Device is an M47 M-Module.
//
// A Device is not safe for concurrent use: callers must serialize calls
// into a given device.
type Device struct {
	msg *log.Logger
	dbg uint32

	bus  bus
	regs pins
	rom  IDROM
	mem  io.Closer // register window owned by the device, if any

	state   state
	idCheck bool
	hwRev   uint16
	opts    [NumChans]ChannelOption
	irqs    int64 // interrupt counter. the module has no interrupt.

	sleep func(time.Duration)
}

type pins struct {
	ctrl   [NumChans]reg16
	mode   [NumChans]reg16
	flex   reg16
	status reg16
}

// Open maps the register window of the module at the physical address
// base of devmem (e.g. /dev/mem) and initializes the module.
func Open(devmem string, base int64, rom IDROM, opts ...Option) (*Device, error) {
	mem, err := mmap.Open(devmem, base, regs.SPAN)
	if err != nil {
		return nil, fmt.Errorf("m47: could not map register window: %w", err)
	}
	defer func() {
		if err != nil {
			_ = mem.Close()
		}
	}()

	dev, err := NewDevice(mem, rom, opts...)
	if err != nil {
		return nil, err
	}
	dev.mem = mem

	return dev, nil
}

// NewDevice initializes the module accessible through mem, with the
// identification PROM rom.
//
// Initialization decodes the descriptor values, checks the module
// identity (unless disabled with WithIDCheck), loads the FLEXlogic,
// stops transmission, clears the data buffer and programs channel 0
// with the descriptor settings.
func NewDevice(mem Mem, rom IDROM, opts ...Option) (*Device, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	msg := cfg.msg
	if msg == nil {
		msg = log.New(os.Stdout, "m47: ", 0)
	}

	dev := &Device{
		msg:     msg,
		dbg:     cfg.dbg,
		rom:     rom,
		state:   stateInit,
		idCheck: cfg.idCheck,
		sleep:   cfg.sleep,
	}
	dev.bus.mem = mem
	dev.bind()

	err := dev.init(cfg)
	if err != nil {
		dev.state = stateClosed
		return nil, err
	}
	dev.state = stateReady

	return dev, nil
}

func (dev *Device) bind() {
	for ch := 0; ch < NumChans; ch++ {
		dev.regs.ctrl[ch] = newReg16(&dev.bus, regs.CONTREG(ch))
		dev.regs.mode[ch] = newReg16(&dev.bus, regs.MODE_REV(ch))
	}
	dev.regs.flex = newReg16(&dev.bus, regs.FLEXREG)
	dev.regs.status = newReg16(&dev.bus, regs.STATUS_REG)
}

func (dev *Device) init(cfg config) error {
	if dev.bus.mem == nil {
		return fmt.Errorf("m47: no register access")
	}
	if dev.rom == nil {
		return fmt.Errorf("m47: no ID PROM access")
	}

	opt, err := decodeDescriptor(cfg.ctrl, cfg.mode)
	if err != nil {
		return fmt.Errorf("m47: could not initialize device: %w", err)
	}
	for i := range dev.opts {
		dev.opts[i] = opt
	}
	if dev.dbg > 1 {
		dev.msg.Printf(
			"init: trans-mode=%v, data-width=%d, baud-rate=%v",
			opt.TransMode, opt.DataWidth, opt.BaudRate,
		)
	}

	if !cfg.hasFlex {
		return fmt.Errorf("m47: could not initialize device: no FLEXlogic bitstream: %w", ErrInvalidConfig)
	}

	if dev.idCheck {
		err = dev.checkID()
		if err != nil {
			return fmt.Errorf("m47: could not initialize device: %w", err)
		}
	}

	dev.hwRev, err = dev.rom.ReadWord(regs.ID_HWREV_WORD)
	if err != nil {
		return fmt.Errorf("m47: could not read hardware revision: %w", err)
	}
	if dev.dbg > 0 {
		dev.msg.Printf("init: hw-rev=0x%04x", dev.hwRev)
	}

	dev.flexload(cfg.flex)
	if err := dev.bus.flush(); err != nil {
		return fmt.Errorf("m47: could not load FLEXlogic: %w", err)
	}
	if dev.dbg > 0 {
		dev.msg.Printf(
			"init: FLEXlogic loaded (%d bytes, ident=%q), pld-rev=0x%x",
			len(cfg.flex.Data), cfg.flex.Ident, dev.regs.mode[0].r()&regs.MASK_PLD_REV,
		)
	}

	dev.stop()
	dev.clearBuffer()
	dev.regs.mode[0].w(encodeMode(opt))
	dev.regs.ctrl[0].w(encodeControl(opt))

	if err := dev.bus.flush(); err != nil {
		return fmt.Errorf("m47: could not program control registers: %w", err)
	}

	return nil
}

func (dev *Device) checkID() error {
	magic, err := dev.rom.ReadWord(regs.ID_MAGIC_WORD)
	if err != nil {
		return fmt.Errorf("m47: could not read ID PROM magic: %w", err)
	}
	if magic != regs.ID_MAGIC {
		return fmt.Errorf("m47: illegal magic=0x%04x: %w", magic, ErrIdentity)
	}

	id, err := dev.rom.ReadWord(regs.ID_MODID_WORD)
	if err != nil {
		return fmt.Errorf("m47: could not read ID PROM module id: %w", err)
	}
	if id != regs.ID_MODID {
		return fmt.Errorf("m47: illegal id=%d: %w", id, ErrIdentity)
	}

	return nil
}

// stop stops transmission on all channels.
func (dev *Device) stop() {
	dev.regs.ctrl[0].w(0)
}

func (dev *Device) clearBuffer() {
	for i := int64(0); i < regs.DATABUF_WORDS; i++ {
		dev.bus.w16(regs.REG_START+2*i, 0)
	}
}

func (dev *Device) usable() error {
	if dev.state != stateReady {
		return ErrClosed
	}
	return nil
}

// Close stops transmission and releases the resources held by the device.
func (dev *Device) Close() error {
	if dev.state == stateClosed {
		return nil
	}
	dev.state = stateClosed

	if dev.dbg > 0 {
		dev.msg.Printf("exit")
	}

	dev.stop()
	err := dev.bus.flush()

	if dev.mem != nil {
		errm := dev.mem.Close()
		if err == nil {
			err = errm
		}
		dev.mem = nil
	}

	if err != nil {
		return fmt.Errorf("m47: could not close device: %w", err)
	}
	return nil
}

// Irq reports whether an interrupt was raised by the module.
// The M47 has no interrupt: Irq always returns false.
func (dev *Device) Irq() bool {
	return false
}

// HWRev returns the hardware revision read from the ID PROM.
func (dev *Device) HWRev() uint16 { return dev.hwRev }

// Channel returns the settings of channel ch.
func (dev *Device) Channel(ch int) (ChannelOption, error) {
	if ch < 0 || ch >= NumChans {
		return ChannelOption{}, fmt.Errorf("m47: channel %d: %w", ch, ErrInvalidChannel)
	}
	return dev.opts[ch], nil
}

// DumpRegisters writes the content of the control, mode and status
// registers to w.
func (dev *Device) DumpRegisters(w io.Writer) error {
	if err := dev.usable(); err != nil {
		return err
	}

	for ch := 0; ch < NumChans; ch++ {
		fmt.Fprintf(w, "ctrl[%d]=   0x%04x\n", ch, dev.regs.ctrl[ch].r())
	}
	for ch := 0; ch < NumChans; ch++ {
		fmt.Fprintf(w, "mode[%d]=   0x%04x\n", ch, dev.regs.mode[ch].r())
	}
	fmt.Fprintf(w, "status=    0x%04x\n", dev.regs.status.r())

	if err := dev.bus.flush(); err != nil {
		return fmt.Errorf("m47: could not dump registers: %w", err)
	}
	return nil
}
