// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import (
	"log"
	"time"
)

// config holds the descriptor values a Device is created with.
type config struct {
	idCheck bool
	ctrl    uint32 // M47_CONTROL
	mode    uint32 // M47_TRANSMODE
	dbg     uint32

	flex    Bitstream
	hasFlex bool // a bitstream was provided, possibly with an empty payload
	msg     *log.Logger
	sleep   func(time.Duration)
}

func newConfig() config {
	return config{
		idCheck: true,
		ctrl:    ctrlDefault,
		mode:    modeDefault,
		sleep:   time.Sleep,
	}
}

// Option configures a Device.
type Option func(*config)

// WithIDCheck enables or disables the verification of the ID PROM
// magic and module id.
func WithIDCheck(v bool) Option {
	return func(cfg *config) {
		cfg.idCheck = v
	}
}

// WithControl sets the M47_CONTROL descriptor value: data width in
// bits 7..2 and baud rate in bits 1..0.
// The default is 0x80: 32 bits at 500 kbaud.
func WithControl(v uint32) Option {
	return func(cfg *config) {
		cfg.ctrl = v
	}
}

// WithTransMode sets the M47_TRANSMODE descriptor value:
// 0x00 for Gray, 0x80 for binary encoding.
func WithTransMode(v uint32) Option {
	return func(cfg *config) {
		cfg.mode = v
	}
}

// WithDebugLevel sets the verbosity of the device logger.
func WithDebugLevel(lvl uint32) Option {
	return func(cfg *config) {
		cfg.dbg = lvl
	}
}

// WithBitstream sets the FLEXlogic bitstream loaded at initialization.
// A bitstream with an empty payload is loaded as zero clock pulses.
func WithBitstream(flex Bitstream) Option {
	return func(cfg *config) {
		cfg.flex = flex
		cfg.hasFlex = true
	}
}

// WithLogger sets the device logger.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithDelay sets the function used to wait for the sensors during a
// connection check.
func WithDelay(sleep func(time.Duration)) Option {
	return func(cfg *config) {
		cfg.sleep = sleep
	}
}
