// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devflag holds the command-line flags shared by the m47 commands
// to locate and initialize an M47 module.
package devflag // import "github.com/go-lpc/ssi/internal/devflag"

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/go-lpc/ssi/descdb"
	"github.com/go-lpc/ssi/idprom"
	"github.com/go-lpc/ssi/internal/mmap"
	"github.com/go-lpc/ssi/m47"
)

// Flags describes how to reach a module and the descriptor values used
// to initialize it.
type Flags struct {
	Dev  string // memory device
	Base int64  // physical address of the module register window

	Bus  int  // SMBus of the ID EEPROM
	Addr uint // address of the ID EEPROM

	DB   string // descriptor database
	Desc string // descriptor name

	Flex      string
	Ctrl      uint
	Mode      uint
	NoIDCheck bool
	Dbg       uint

	Sim bool // use an in-memory register window
}

// Register defines the device flags on fs.
func Register(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Dev, "dev", "/dev/mem", "memory device")
	fs.Int64Var(&f.Base, "base", 0, "physical address of the M-Module register window")
	fs.IntVar(&f.Bus, "smbus", 0, "SMBus of the M-Module ID EEPROM")
	fs.UintVar(&f.Addr, "eeprom", 0x50, "SMBus address of the M-Module ID EEPROM")
	fs.StringVar(&f.DB, "db", "", "descriptor database (empty: use command-line values)")
	fs.StringVar(&f.Desc, "desc", "m47_1", "descriptor name in the database")
	fs.StringVar(&f.Flex, "flex", "", "path to the FLEXlogic bitstream")
	fs.UintVar(&f.Ctrl, "ctrl", 0x80, "M47_CONTROL descriptor value")
	fs.UintVar(&f.Mode, "mode", 0x00, "M47_TRANSMODE descriptor value")
	fs.BoolVar(&f.NoIDCheck, "no-id-check", false, "disable the ID EEPROM check")
	fs.UintVar(&f.Dbg, "dbg", 0, "driver debug level")
	fs.BoolVar(&f.Sim, "sim", false, "drive an in-memory module instead of the hardware")
	return f
}

// Options returns the device options described by the flags.
// Descriptor values from the database take precedence.
func (f *Flags) Options(ctx context.Context) ([]m47.Option, error) {
	opts := []m47.Option{
		m47.WithIDCheck(!f.NoIDCheck),
		m47.WithDebugLevel(uint32(f.Dbg)),
		m47.WithControl(uint32(f.Ctrl)),
		m47.WithTransMode(uint32(f.Mode)),
	}

	if f.DB != "" {
		db, err := descdb.Open(f.DB)
		if err != nil {
			return nil, fmt.Errorf("could not open descriptor db: %w", err)
		}
		defer db.Close()

		desc, err := db.Descriptor(ctx, f.Desc)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve descriptor: %w", err)
		}
		dopts, err := desc.Options()
		if err != nil {
			return nil, fmt.Errorf("could not create descriptor options: %w", err)
		}
		opts = append(opts, dopts...)
	}

	if f.Flex != "" {
		flex, err := m47.LoadBitstream(f.Flex)
		if err != nil {
			return nil, fmt.Errorf("could not load bitstream: %w", err)
		}
		opts = append(opts, m47.WithBitstream(flex))
	}

	return opts, nil
}

// Open initializes the module described by the flags.
func (f *Flags) Open(ctx context.Context, msg *log.Logger) (*m47.Device, error) {
	opts, err := f.Options(ctx)
	if err != nil {
		return nil, err
	}
	if msg != nil {
		opts = append(opts, m47.WithLogger(msg))
	}

	if f.Sim {
		return Sim(opts...)
	}

	rom, err := f.readROM()
	if err != nil {
		return nil, err
	}

	dev, err := m47.Open(f.Dev, f.Base, rom, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not open M47 module: %w", err)
	}
	return dev, nil
}

func (f *Flags) readROM() (m47.IDWords, error) {
	rom, err := idprom.Open(f.Bus, uint8(f.Addr))
	if err != nil {
		return nil, fmt.Errorf("could not open ID EEPROM: %w", err)
	}
	defer rom.Close()

	words, err := rom.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("could not read ID EEPROM: %w", err)
	}
	return words, nil
}

// Sim returns a device driving an in-memory hw-rev 2.0 module.
// A 1-byte bitstream is used when none is provided.
func Sim(opts ...m47.Option) (*m47.Device, error) {
	rom := make(m47.IDWords, m47.IDSize/2)
	rom[0] = 0x5346
	rom[1] = 47
	rom[2] = m47.HWRev2

	opts = append([]m47.Option{
		m47.WithBitstream(m47.Bitstream{Ident: "sim", Data: []byte{0x00}}),
	}, opts...)

	dev, err := m47.NewDevice(mmap.HandleFrom(make([]byte, 0x100)), rom, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create simulated M47 module: %w", err)
	}
	return dev, nil
}
