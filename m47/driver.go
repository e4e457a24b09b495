// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

// Driver is the set of operations a low level M-Module driver exposes
// to its callers.
type Driver interface {
	Read(ch int) (uint32, error)
	Write(ch int, v uint32) error
	SetStat(code Code, ch int, v int64) error
	GetStat(code Code, ch int) (int64, error)
	ReadBlock(dst []uint32) (int, error)
	WriteBlock(src []uint32) (int, error)
	GetBlock(code Code, p []byte) (int, error)
	Irq() bool
	Close() error
}

var (
	_ Driver = (*Device)(nil)
)
