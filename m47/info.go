// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"fmt"
	"strings"

	"github.com/go-lpc/ssi"
	"github.com/go-lpc/ssi/m47/internal/regs"
)

// AddrMode describes the address lines used on the M-Module bus.
type AddrMode uint32

const (
	MA08 AddrMode = 1 << iota // A08 address mode
	MA24                      // A24 address mode
)

// DataMode describes the data lines used on the M-Module bus.
type DataMode uint32

const (
	MD08 DataMode = 1 << iota // 8b data access
	MD16                      // 16b data access
	MD32                      // 32b data access
)

func (dm DataMode) String() string {
	var o []string
	for _, v := range []struct {
		m    DataMode
		name string
	}{
		{MD08, "D08"},
		{MD16, "D16"},
		{MD32, "D32"},
	} {
		if dm&v.m != 0 {
			o = append(o, v.name)
		}
	}
	if len(o) == 0 {
		return fmt.Sprintf("DataMode(%d)", uint32(dm))
	}
	return strings.Join(o, "|")
}

// AddrSpace describes an address space needed by the driver.
type AddrSpace struct {
	AddrMode AddrMode
	DataMode DataMode
	Size     int // in bytes
}

// LockMode is the process locking the driver requires from its caller.
type LockMode uint8

const (
	LockNone LockMode = iota
	LockCall          // calls into a device must be serialized
	LockChan          // calls into a given channel must be serialized
)

// Info holds the hardware and driver requirements of the M47.
type Info struct {
	AddrMode   AddrMode    // all address modes used
	DataMode   DataMode    // all data modes used
	AddrSpaces []AddrSpace // required address spaces
	IRQ        bool        // whether an interrupt is required
	Lock       LockMode
}

// DriverInfo returns the hardware characteristics and driver requirements
// of the M47.
func DriverInfo() Info {
	return Info{
		AddrMode: MA08,
		DataMode: MD08 | MD16,
		AddrSpaces: []AddrSpace{
			{AddrMode: MA08, DataMode: MD16, Size: regs.SPAN},
		},
		IRQ:  false,
		Lock: LockCall,
	}
}

// Ident returns the identification string of the driver.
func Ident() string {
	const ident = "M47 - m47 low level driver"
	v, _ := ssi.Version()
	if v == "" {
		return ident
	}
	return ident + " " + v
}
