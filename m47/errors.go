// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m47

import "errors"

var (
	ErrInvalidConfig    = errors.New("m47: invalid configuration value")
	ErrInvalidChannel   = errors.New("m47: invalid channel")
	ErrUnsupported      = errors.New("m47: unsupported operation")
	ErrInvalidDirection = errors.New("m47: invalid channel direction")
	ErrIdentity         = errors.New("m47: device identity mismatch")
	ErrUnknownCode      = errors.New("m47: unknown status code")
	ErrBufferTooSmall   = errors.New("m47: user buffer too small")
	ErrClosed           = errors.New("m47: device closed")
)
