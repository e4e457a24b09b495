// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides access to memory-mapped register windows.
package mmap // import "github.com/go-lpc/ssi/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a window over a memory region.
// Offsets given to ReadAt and WriteAt are relative to the start of the window.
type Handle struct {
	data []byte // window
	mmap []byte // full page-aligned mapping, nil if not owned
}

// HandleFrom wraps the provided slice.
// Closing the returned handle does not unmap anything.
func HandleFrom(data []byte) *Handle {
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Open maps size bytes of the named file (typically /dev/mem), starting
// at the physical address base.
// base does not need to be page-aligned.
func Open(fname string, base int64, size int) (*Handle, error) {
	if base < 0 || size <= 0 {
		return nil, fmt.Errorf("mmap: invalid window (base=0x%x, size=%d)", base, size)
	}

	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	defer f.Close()

	var (
		page  = int64(os.Getpagesize())
		start = base &^ (page - 1)
		delta = int(base - start)
	)

	data, err := unix.Mmap(
		int(f.Fd()),
		start, delta+size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not mmap %q (base=0x%x, size=%d): %w", fname, base, size, err)
	}
	if len(data) != delta+size {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("mmap: invalid mmap'd data: %d", len(data))
	}

	h := &Handle{
		data: data[delta : delta+size],
		mmap: data,
	}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// Close closes the mmap handle.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	mem := h.mmap
	h.data = nil
	h.mmap = nil
	runtime.SetFinalizer(h, nil)

	if mem == nil {
		return nil
	}
	return unix.Munmap(mem)
}

// Len returns the length of the window.
func (h *Handle) Len() int {
	return len(h.data)
}

// At returns the byte at index i.
func (h *Handle) At(i int) byte {
	return h.data[i]
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
