// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m47-srv starts a TDAQ server driving an M47 module.
//
// The server reads all channels of the module while running and publishes
// the samples on its /ssi output.
//
// A /config command may carry a list of settings, applied when the module
// is initialized:
//
//	n:     u32
//	n × {code: u32, ch: u32, value: u64}
//
// Frames on /ssi are encoded as:
//
//	cycle: u64
//	time:  u64 (ns since epoch)
//	4 × {sample: u32}
package main // import "github.com/go-lpc/ssi/cmd/m47-srv"

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/ssi/internal/devflag"
	"github.com/go-lpc/ssi/m47"
	"github.com/sbinet/pmon"
)

func main() {
	var (
		dflags = devflag.Register(flag.CommandLine)
		freq   = flag.Duration("freq", 10*time.Millisecond, "read cycle period")
		doMon  = flag.Bool("pmon", false, "enable pmon monitoring")
		monDir = flag.String("pmon-dir", os.TempDir(), "directory where to store pmon logs")
	)
	cmd := flags.New()

	if *doMon {
		stop, err := monitor(*monDir, time.Second)
		if err != nil {
			log.Panicf("could not start pmon: %+v", err)
		}
		defer stop()
	}

	srv := newServer(*freq, func(ctx context.Context) (*m47.Device, error) {
		return dflags.Open(ctx, nil)
	})

	tsrv := tdaq.New(cmd, os.Stdout)
	tsrv.CmdHandle("/config", srv.OnConfig)
	tsrv.CmdHandle("/init", srv.OnInit)
	tsrv.CmdHandle("/reset", srv.OnReset)
	tsrv.CmdHandle("/start", srv.OnStart)
	tsrv.CmdHandle("/stop", srv.OnStop)
	tsrv.CmdHandle("/quit", srv.OnQuit)

	tsrv.OutputHandle("/ssi", srv.ssi)

	tsrv.RunHandle(srv.run)

	err := tsrv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

func monitor(dir string, freq time.Duration) (func(), error) {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return nil, fmt.Errorf("could not monitor m47-srv: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "m47-srv-pmon.log"))
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop pmon: %+v", err)
		}
		_ = f.Close()
	}, nil
}

// settingSize is the encoded size of a /config setting: code, channel, value.
const settingSize = 4 + 4 + 8

type setting struct {
	code m47.Code
	ch   int
	v    int64
}

type server struct {
	freq time.Duration
	open func(ctx context.Context) (*m47.Device, error)

	mu   sync.Mutex
	dev  *m47.Device
	cfg  []setting
	opts [m47.NumChans]m47.ChannelOption
	on   bool
	n    int

	data chan []byte
}

func newServer(freq time.Duration, open func(ctx context.Context) (*m47.Device, error)) *server {
	return &server{
		freq: freq,
		open: open,
		data: make(chan []byte, 1024),
	}
}

func (srv *server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	var cfg []setting
	if len(req.Body) > 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		n := int64(dec.ReadU32())
		if err := dec.Err(); err != nil {
			return fmt.Errorf("could not decode /config settings: %w", err)
		}
		if nmax := int64(len(req.Body)-4) / settingSize; n > nmax {
			return fmt.Errorf("could not decode /config settings: invalid number of settings (n=%d, max=%d)", n, nmax)
		}
		cfg = make([]setting, n)
		for i := range cfg {
			cfg[i].code = m47.Code(dec.ReadU32())
			cfg[i].ch = int(int32(dec.ReadU32()))
			cfg[i].v = int64(dec.ReadU64())
		}
		if err := dec.Err(); err != nil {
			return fmt.Errorf("could not decode /config settings: %w", err)
		}
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.cfg = cfg

	return nil
}

func (srv *server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	return srv.init(ctx)
}

func (srv *server) init(ctx tdaq.Context) error {
	if srv.dev != nil {
		_ = srv.dev.Close()
		srv.dev = nil
	}

	dev, err := srv.open(ctx.Ctx)
	if err != nil {
		ctx.Msg.Errorf("could not open M47 module: %+v", err)
		return fmt.Errorf("could not open M47 module: %w", err)
	}

	for _, s := range srv.cfg {
		err = dev.SetStat(s.code, s.ch, s.v)
		if err != nil {
			_ = dev.Close()
			return fmt.Errorf("could not set %v=%d (ch=%d): %w", s.code, s.v, s.ch, err)
		}
	}

	for ch := range srv.opts {
		srv.opts[ch], err = dev.Channel(ch)
		if err != nil {
			_ = dev.Close()
			return fmt.Errorf("could not get channel %d settings: %w", ch, err)
		}
	}

	rev, err := dev.GetStat(m47.CodeHWRev, 0)
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("could not get hw-rev: %w", err)
	}
	ctx.Msg.Infof("M47 module initialized (hw-rev=0x%04x)", rev)

	srv.dev = dev
	srv.n = 0
	return nil
}

func (srv *server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.on = false
	return srv.init(ctx)
}

func (srv *server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.dev == nil {
		return fmt.Errorf("M47 module not initialized")
	}
	srv.on = true
	return nil
}

func (srv *server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	ctx.Msg.Debugf("received /stop command... -> n=%d", srv.n)
	srv.on = false
	return nil
}

func (srv *server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.on = false
	if srv.dev == nil {
		return nil
	}
	err := srv.dev.Close()
	srv.dev = nil
	if err != nil {
		return fmt.Errorf("could not close M47 module: %w", err)
	}
	return nil
}

func (srv *server) ssi(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

func (srv *server) run(ctx tdaq.Context) error {
	tick := time.NewTicker(srv.freq)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tick.C:
			raw, err := srv.sample()
			if err != nil {
				ctx.Msg.Errorf("could not read M47 module: %+v", err)
				continue
			}
			if raw == nil {
				continue
			}
			select {
			case srv.data <- raw:
			default:
				ctx.Msg.Warnf("dropping sample: output queue full")
			}
		}
	}
}

// sample reads all channels and encodes the masked samples.
// It returns nil when the acquisition is not running.
func (srv *server) sample() ([]byte, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if !srv.on || srv.dev == nil {
		return nil, nil
	}

	var vs [m47.NumChans]uint32
	_, err := srv.dev.ReadBlock(vs[:])
	if err != nil {
		return nil, err
	}
	srv.n++

	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU64(uint64(srv.n))
	enc.WriteU64(uint64(time.Now().UTC().UnixNano()))
	for ch, v := range vs {
		enc.WriteU32(srv.opts[ch].Mask(v))
	}
	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("could not encode sample: %w", err)
	}
	return buf.Bytes(), nil
}
