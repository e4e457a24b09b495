// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package m47 drives the MEN M47 M-Module, a 4-channel SSI (synchronous
// serial interface) controller for absolute encoders.
//
// The module carries a FLEXlogic device which is loaded with a bitstream
// when a Device is created. Channels are inputs only: each one clocks a
// sensor word of up to 32 bits, Gray or binary encoded, at one of four
// baud rates.
//
// Modules with a hardware revision of 2.0 or later can be configured
// channel by channel; older ones only accept settings for all channels
// at once.
package m47 // import "github.com/go-lpc/ssi/m47"

import "time"

const (
	NumChans = 4  // number of SSI channels
	ChanLen  = 32 // channel length in bits

	// HWRev2 is the first hardware revision with per-channel settings.
	HWRev2 = 0x0200

	// IDSize is the size in bytes of the identification PROM.
	IDSize = 128
)

const (
	ctrlDefault = 0x00000080 // data width 32 bits, 500 kbaud
	modeDefault = 0x00000000 // Gray encoding

	// connection check delay: more than 2 transmission cycles.
	checkDelay = 4 * time.Millisecond
)
