// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m47-tool configures an M47 module and cyclically reads all its
// channels.
//
// Usage: m47-tool [OPTIONS]
//
// Example:
//
//	$> m47-tool -base=0xe8000200 -flex=m47.flex -width=25 -baud=1
//	$> m47-tool -sim -n=10 -hist=out.yoda
package main // import "github.com/go-lpc/ssi/cmd/m47-tool"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/go-lpc/ssi"
	"github.com/go-lpc/ssi/internal/devflag"
	"github.com/go-lpc/ssi/m47"
	"go-hep.org/x/hep/hbook"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("m47-tool: ")
	log.SetFlags(0)

	var (
		dflags = devflag.Register(flag.CommandLine)

		cfg  = config{}
		vers = flag.Bool("version", false, "print version and exit")
	)
	flag.IntVar(&cfg.ch, "ch", -1, "channel to configure (-1: all channels)")
	flag.IntVar(&cfg.tmode, "tmode", -1, "sensor encoding (0: gray, 1: binary, -1: unchanged)")
	flag.IntVar(&cfg.width, "width", -1, "data width in bits (1-32, -1: unchanged)")
	flag.IntVar(&cfg.baud, "baud", -1, "baud rate (0: 500, 1: 250, 2: 125, 3: 62.5 kbaud, -1: unchanged)")
	flag.IntVar(&cfg.n, "n", 0, "number of read cycles (0: until interrupted)")
	flag.DurationVar(&cfg.freq, "freq", 100*time.Millisecond, "read cycle period")
	flag.StringVar(&cfg.hist, "hist", "", "path to a YODA file where to store per-channel sample histograms")

	flag.Parse()

	if *vers {
		v, sum := ssi.Version()
		fmt.Printf("m47-tool %s %s\n", v, sum)
		fmt.Printf("%s\n", m47.Ident())
		return
	}

	dev, err := dflags.Open(context.Background(), nil)
	if err != nil {
		log.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	err = run(dev, cfg, os.Stdout, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	err = dev.Close()
	if err != nil {
		log.Fatalf("could not close device: %+v", err)
	}
}

type config struct {
	ch    int
	tmode int
	width int
	baud  int

	n    int
	freq time.Duration
	hist string
}

// settle is the time needed by the module for a new configuration to
// take effect.
const settle = 1600 * time.Microsecond

func run(dev *m47.Device, cfg config, w io.Writer, stop chan os.Signal) error {
	rev, err := dev.GetStat(m47.CodeHWRev, 0)
	if err != nil {
		return fmt.Errorf("could not get hw-rev: %w", err)
	}
	fmt.Fprintf(w, "M47 hw-rev: 0x%08x\n", rev)

	err = configure(dev, cfg, rev)
	if err != nil {
		return fmt.Errorf("could not configure device: %w", err)
	}
	time.Sleep(settle)

	// dummy read to initialize the buffer registers.
	var dummy [m47.NumChans]uint32
	_, err = dev.ReadBlock(dummy[:])
	if err != nil {
		return fmt.Errorf("could not read dummy block: %w", err)
	}

	var opts [m47.NumChans]m47.ChannelOption
	for ch := range opts {
		opts[ch], err = dev.Channel(ch)
		if err != nil {
			return fmt.Errorf("could not get channel %d settings: %w", ch, err)
		}
	}

	var hs [m47.NumChans]*hbook.H1D
	if cfg.hist != "" {
		for ch := range hs {
			max := math.Ldexp(1, opts[ch].DataWidth)
			hs[ch] = hbook.NewH1D(100, 0, max)
			hs[ch].Annotation()["name"] = fmt.Sprintf("ch-%d", ch)
		}
	}

	var (
		grp  errgroup.Group
		quit = make(chan struct{})
		done = make(chan struct{})
	)

	grp.Go(func() error {
		select {
		case <-stop:
			close(quit)
		case <-done:
		}
		return nil
	})

	grp.Go(func() error {
		defer close(done)
		return acquire(dev, cfg, opts, hs, w, quit)
	})

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not acquire samples: %w", err)
	}

	if cfg.hist != "" {
		err = saveHists(cfg.hist, hs)
		if err != nil {
			return fmt.Errorf("could not save histograms: %w", err)
		}
	}

	return nil
}

func configure(dev *m47.Device, cfg config, rev int64) error {
	type setting struct {
		global, perch m47.Code
		v             int
	}
	settings := []setting{
		{m47.CodeTransMode, m47.CodeTransModeCh, cfg.tmode},
		{m47.CodeDataWidth, m47.CodeDataWidthCh, cfg.width},
		{m47.CodeBaudRate, m47.CodeBaudRateCh, cfg.baud},
	}

	if rev < m47.HWRev2 && cfg.ch >= 0 {
		return fmt.Errorf("module (hw-rev=0x%x) only supports settings for all channels", rev)
	}

	for _, s := range settings {
		if s.v < 0 {
			continue
		}
		var err error
		switch cfg.ch {
		case -1:
			err = dev.SetStat(s.global, 0, int64(s.v))
		default:
			err = dev.SetStat(s.perch, cfg.ch, int64(s.v))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func acquire(dev *m47.Device, cfg config, opts [m47.NumChans]m47.ChannelOption, hs [m47.NumChans]*hbook.H1D, w io.Writer, quit chan struct{}) error {
	tick := time.NewTicker(cfg.freq)
	defer tick.Stop()

	var vs [m47.NumChans]uint32
	for i := 0; cfg.n <= 0 || i < cfg.n; i++ {
		_, err := dev.ReadBlock(vs[:])
		if err != nil {
			return err
		}
		for ch, v := range vs {
			vs[ch] = opts[ch].Mask(v)
			if hs[ch] != nil {
				hs[ch].Fill(float64(vs[ch]), 1)
			}
		}
		fmt.Fprintf(w, "CH0 = %08X CH1 = %08X CH2 = %08X CH3 = %08X\n", vs[0], vs[1], vs[2], vs[3])

		select {
		case <-quit:
			return nil
		case <-tick.C:
		}
	}
	return nil
}

func saveHists(fname string, hs [m47.NumChans]*hbook.H1D) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer f.Close()

	for ch, h := range hs {
		raw, err := h.MarshalYODA()
		if err != nil {
			return fmt.Errorf("could not marshal histogram of channel %d: %w", ch, err)
		}
		_, err = f.Write(raw)
		if err != nil {
			return fmt.Errorf("could not write histogram of channel %d: %w", ch, err)
		}
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output file: %w", err)
	}
	return nil
}
