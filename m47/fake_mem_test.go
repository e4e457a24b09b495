// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-lpc/ssi/m47/internal/regs"
)

type wreg struct {
	off int64
	v   uint16
}

func (w wreg) String() string { return fmt.Sprintf("[0x%02x]=0x%04x", w.off, w.v) }

// fakeMem is an M-Module address space recording all register writes.
type fakeMem struct {
	buf    [regs.SPAN]byte
	writes []wreg

	rerr error
	werr error
}

func newFakeMem() *fakeMem {
	return &fakeMem{}
}

func (mem *fakeMem) ReadAt(p []byte, off int64) (int, error) {
	if mem.rerr != nil {
		return 0, mem.rerr
	}
	if off < 0 || off+int64(len(p)) > int64(len(mem.buf)) {
		return 0, io.EOF
	}
	return copy(p, mem.buf[off:]), nil
}

func (mem *fakeMem) WriteAt(p []byte, off int64) (int, error) {
	if mem.werr != nil {
		return 0, mem.werr
	}
	if off < 0 || off+int64(len(p)) > int64(len(mem.buf)) {
		return 0, io.ErrShortWrite
	}
	n := copy(mem.buf[off:], p)
	if len(p) == 2 {
		mem.writes = append(mem.writes, wreg{off, binary.LittleEndian.Uint16(p)})
	}
	return n, nil
}

func (mem *fakeMem) reg(off int64) uint16 {
	return binary.LittleEndian.Uint16(mem.buf[off:])
}

func (mem *fakeMem) set(off int64, v uint16) {
	binary.LittleEndian.PutUint16(mem.buf[off:], v)
}

func (mem *fakeMem) reset() {
	mem.writes = mem.writes[:0]
}

// writesTo returns the values written to the register at off.
func (mem *fakeMem) writesTo(off int64) []uint16 {
	var o []uint16
	for _, w := range mem.writes {
		if w.off == off {
			o = append(o, w.v)
		}
	}
	return o
}

var (
	_ Mem = (*fakeMem)(nil)
)

func newTestROM(rev uint16) IDWords {
	rom := make(IDWords, IDSize/2)
	rom[regs.ID_MAGIC_WORD] = regs.ID_MAGIC
	rom[regs.ID_MODID_WORD] = regs.ID_MODID
	rom[regs.ID_HWREV_WORD] = rev
	for i := 3; i < len(rom); i++ {
		rom[i] = uint16(i)
	}
	return rom
}

func testOptions(opts ...Option) []Option {
	return append([]Option{
		WithBitstream(Bitstream{Ident: "test", Data: []byte{0x01}}),
		WithLogger(log.New(io.Discard, "m47: ", 0)),
		WithDelay(func(time.Duration) {}),
	}, opts...)
}

// newTestDevice creates a device with the provided hardware revision.
// The register write log is cleared after initialization.
func newTestDevice(t *testing.T, rev uint16, opts ...Option) (*Device, *fakeMem) {
	t.Helper()

	mem := newFakeMem()
	dev, err := NewDevice(mem, newTestROM(rev), testOptions(opts...)...)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}
	mem.reset()

	return dev, mem
}
