// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-lpc/ssi/m47/internal/regs"
)

func TestParseBitstream(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  []byte
		want []byte
		err  error
	}{
		{
			name: "ok",
			raw:  []byte{0, 0, 0, 2, 0x01, 0x02},
			want: []byte{0x01, 0x02},
		},
		{
			name: "trailing-bytes",
			raw:  []byte{0, 0, 0, 1, 0x01, 0x02},
			want: []byte{0x01},
		},
		{
			name: "empty-payload",
			raw:  []byte{0, 0, 0, 0},
			want: []byte{},
		},
		{
			name: "no-header",
			raw:  []byte{0, 0, 1},
			err:  ErrInvalidConfig,
		},
		{
			name: "truncated",
			raw:  []byte{0, 0, 0, 3, 0x01, 0x02},
			err:  ErrInvalidConfig,
		},
		{
			name: "huge",
			raw:  []byte{0xff, 0xff, 0xff, 0xff, 0x01},
			err:  ErrInvalidConfig,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			flex, err := ParseBitstream(tc.raw)
			switch {
			case tc.err != nil:
				if !errors.Is(err, tc.err) {
					t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.err)
				}
				return
			case err != nil:
				t.Fatalf("could not parse bitstream: %+v", err)
			}
			if !bytes.Equal(flex.Data, tc.want) {
				t.Fatalf("invalid payload: got=% x, want=% x", flex.Data, tc.want)
			}
		})
	}
}

func TestLoadBitstream(t *testing.T) {
	tmp, err := os.MkdirTemp("", "m47-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	fname := filepath.Join(tmp, "m47.flex")
	err = os.WriteFile(fname, []byte{0, 0, 0, 2, 0xca, 0xfe}, 0644)
	if err != nil {
		t.Fatalf("could not create bitstream file: %+v", err)
	}

	flex, err := LoadBitstream(fname)
	if err != nil {
		t.Fatalf("could not load bitstream: %+v", err)
	}
	if got, want := flex.Ident, fname; got != want {
		t.Fatalf("invalid ident: got=%q, want=%q", got, want)
	}
	if got, want := flex.Data, []byte{0xca, 0xfe}; !bytes.Equal(got, want) {
		t.Fatalf("invalid payload: got=% x, want=% x", got, want)
	}

	_, err = LoadBitstream(filepath.Join(tmp, "not-there.flex"))
	if err == nil {
		t.Fatalf("expected an error")
	}

	err = os.WriteFile(fname, []byte{0, 0, 0, 4, 0xca, 0xfe}, 0644)
	if err != nil {
		t.Fatalf("could not create bitstream file: %+v", err)
	}
	_, err = LoadBitstream(fname)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalidConfig)
	}
}

func TestFlexload(t *testing.T) {
	flex, err := ParseBitstream([]byte{0x00, 0x00, 0x00, 0x02, 0x01, 0x02})
	if err != nil {
		t.Fatalf("could not parse bitstream: %+v", err)
	}

	mem := newFakeMem()
	dev, err := NewDevice(mem, newTestROM(0x0200), testOptions(WithBitstream(flex))...)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}
	defer dev.Close()

	got := mem.writesTo(regs.FLEXREG)
	want := []uint16{
		// 0x01: TDO=1,TMS=0 then 3x TDO=0,TMS=0
		0x0, 0x1, 0x3,
		0x1, 0x0, 0x2,
		0x0, 0x0, 0x2,
		0x0, 0x0, 0x2,
		// 0x02: TDO=0,TMS=1 then 3x TDO=0,TMS=0
		0x0, 0x4, 0x6,
		0x4, 0x0, 0x2,
		0x0, 0x0, 0x2,
		0x0, 0x0, 0x2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid flexload sequence:\ngot= %x\nwant=%x", got, want)
	}

	pulses := 0
	for i := 0; i+2 < len(got); i += 3 {
		if got[i]&regs.O_FLEX_TCK == 0 && got[i+2]&regs.O_FLEX_TCK != 0 {
			pulses++
		}
	}
	if pulses != 8 {
		t.Fatalf("invalid number of clock pulses: got=%d, want=8", pulses)
	}

	// flexload happens before any other register access.
	for i, w := range mem.writes[:len(want)] {
		if w.off != regs.FLEXREG {
			t.Fatalf("invalid write %d: %v", i, w)
		}
	}
}

func TestFlexloadEmptyPayload(t *testing.T) {
	flex, err := ParseBitstream([]byte{0x00, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("could not parse bitstream: %+v", err)
	}

	mem := newFakeMem()
	dev, err := NewDevice(mem, newTestROM(0x0200), testOptions(WithBitstream(flex))...)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}
	defer dev.Close()

	if got := mem.writesTo(regs.FLEXREG); len(got) != 0 {
		t.Fatalf("invalid flexload sequence: got=%x, want none", got)
	}
	if got, want := mem.reg(regs.CONTREG(0)), uint16(0x80); got != want {
		t.Fatalf("invalid ctrl[0]: got=0x%x, want=0x%x", got, want)
	}
}
