// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	stdlog "log"
	"testing"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ssi/internal/devflag"
	"github.com/go-lpc/ssi/m47"
)

func newTestServer() *server {
	return newServer(time.Millisecond, func(ctx context.Context) (*m47.Device, error) {
		return devflag.Sim(m47.WithLogger(stdlog.New(io.Discard, "", 0)))
	})
}

func newTestContext(ctx context.Context) tdaq.Context {
	return tdaq.Context{
		Ctx: ctx,
		Msg: log.NewMsgStream("m47-srv", log.LvlError, io.Discard),
	}
}

func encodeConfig(cfg []setting) []byte {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU32(uint32(len(cfg)))
	for _, s := range cfg {
		enc.WriteU32(uint32(s.code))
		enc.WriteU32(uint32(int32(s.ch)))
		enc.WriteU64(uint64(s.v))
	}
	return buf.Bytes()
}

func TestServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		srv  = newTestServer()
		tctx = newTestContext(ctx)
		resp tdaq.Frame
	)

	err := srv.OnStart(tctx, &resp, tdaq.Frame{})
	if err == nil {
		t.Fatalf("expected an error starting an uninitialized server")
	}

	err = srv.OnConfig(tctx, &resp, tdaq.Frame{Body: encodeConfig([]setting{
		{code: m47.CodeDataWidth, ch: 0, v: 16},
		{code: m47.CodeBaudRateCh, ch: 2, v: 3},
	})})
	if err != nil {
		t.Fatalf("could not /config: %+v", err)
	}

	err = srv.OnInit(tctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /init: %+v", err)
	}

	if got, want := srv.opts[1], (m47.ChannelOption{DataWidth: 16}); got != want {
		t.Fatalf("invalid ch=1 settings: got=%#v, want=%#v", got, want)
	}
	if got, want := srv.opts[2], (m47.ChannelOption{DataWidth: 16, BaudRate: m47.Baud62k5}); got != want {
		t.Fatalf("invalid ch=2 settings: got=%#v, want=%#v", got, want)
	}

	raw, err := srv.sample()
	if err != nil {
		t.Fatalf("could not sample: %+v", err)
	}
	if raw != nil {
		t.Fatalf("sample before /start")
	}

	err = srv.OnStart(tctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /start: %+v", err)
	}

	done := make(chan error)
	go func() {
		done <- srv.run(tctx)
	}()

	var dst tdaq.Frame
	err = srv.ssi(tctx, &dst)
	if err != nil {
		t.Fatalf("could not read /ssi output: %+v", err)
	}

	dec := tdaq.NewDecoder(bytes.NewReader(dst.Body))
	if got := dec.ReadU64(); got < 1 {
		t.Fatalf("invalid cycle: %d", got)
	}
	_ = dec.ReadU64()
	for ch := 0; ch < m47.NumChans; ch++ {
		if got := dec.ReadU32(); got != 0 {
			t.Fatalf("invalid sample ch=%d: got=0x%x, want=0", ch, got)
		}
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("could not decode /ssi frame: %+v", err)
	}

	err = srv.OnStop(tctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /stop: %+v", err)
	}

	err = srv.OnReset(tctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /reset: %+v", err)
	}

	err = srv.OnQuit(tctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /quit: %+v", err)
	}
	err = srv.OnQuit(tctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /quit twice: %+v", err)
	}

	cancel()
	err = <-done
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}

	err = srv.ssi(tctx, &dst)
	if err != nil {
		t.Fatalf("could not read /ssi output: %+v", err)
	}
}

func TestServerInitErrors(t *testing.T) {
	tctx := newTestContext(context.Background())

	srv := newTestServer()
	err := srv.OnConfig(tctx, nil, tdaq.Frame{Body: encodeConfig([]setting{
		{code: m47.CodeDataWidth, ch: 0, v: 33},
	})})
	if err != nil {
		t.Fatalf("could not /config: %+v", err)
	}
	err = srv.OnInit(tctx, nil, tdaq.Frame{})
	if !errors.Is(err, m47.ErrInvalidConfig) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, m47.ErrInvalidConfig)
	}

	err = srv.OnConfig(tctx, nil, tdaq.Frame{Body: []byte{1, 0}})
	if err == nil {
		t.Fatalf("expected a decoding error")
	}

	errOpen := errors.New("no module")
	srv = newServer(time.Millisecond, func(ctx context.Context) (*m47.Device, error) {
		return nil, errOpen
	})
	err = srv.OnInit(tctx, nil, tdaq.Frame{})
	if !errors.Is(err, errOpen) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, errOpen)
	}
}

func TestServerConfigErrors(t *testing.T) {
	tctx := newTestContext(context.Background())

	valid := []setting{{code: m47.CodeBaudRate, ch: 0, v: 1}}
	twice := encodeConfig(valid)
	twice[0] = 2

	for _, tc := range []struct {
		name string
		body []byte
	}{
		{"short-header", []byte{1, 0}},
		{"huge-count", []byte{0xff, 0xff, 0xff, 0x7f}},
		{"max-count", []byte{0xff, 0xff, 0xff, 0xff}},
		{"missing-setting", twice},
		{"truncated-setting", encodeConfig(valid)[:10]},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer()
			srv.cfg = valid

			err := srv.OnConfig(tctx, nil, tdaq.Frame{Body: tc.body})
			if err == nil {
				t.Fatalf("expected a decoding error")
			}
			if len(srv.cfg) != 1 || srv.cfg[0] != valid[0] {
				t.Fatalf("configuration modified by invalid /config: %+v", srv.cfg)
			}
		})
	}
}
