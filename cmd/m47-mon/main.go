// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m47-mon periodically checks the sensors connected to an M47
// module and sends a mail alert when a sensor stops sending data.
//
// Mail alerts are configured through the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
package main // import "github.com/go-lpc/ssi/cmd/m47-mon"

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/ssi/internal/devflag"
	"github.com/go-lpc/ssi/m47"
	"golang.org/x/sync/errgroup"
	mail "gopkg.in/gomail.v2"
)

func main() {
	log.SetPrefix("m47-mon: ")
	log.SetFlags(0)

	var (
		dflags = devflag.Register(flag.CommandLine)
		freq   = flag.Duration("freq", 30*time.Second, "probing interval")
		mask   = flag.Uint("mask", 0xf, "bit mask of the channels expected to be connected")
	)

	flag.Parse()

	dev, err := dflags.Open(context.Background(), nil)
	if err != nil {
		log.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	mon := newMonitor(dev, *freq, uint8(*mask))
	mon.alert = alertMail

	err = mon.run(stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type monitor struct {
	dev  m47.Driver
	freq time.Duration
	mask uint8 // channels expected to be connected

	state  uint8       // channels seen connected at the last probe
	alerts map[int]int // number of alerts sent per channel
	alert  func(ch int, freq time.Duration) error
}

const maxAlerts = 5

func newMonitor(dev m47.Driver, freq time.Duration, mask uint8) *monitor {
	return &monitor{
		dev:    dev,
		freq:   freq,
		mask:   mask & 0xf,
		state:  mask & 0xf,
		alerts: make(map[int]int),
		alert:  func(int, time.Duration) error { return nil },
	}
}

func (mon *monitor) run(stop chan os.Signal) error {
	var (
		grp, ctx = errgroup.WithContext(context.Background())
		quit     = make(chan struct{})
	)

	grp.Go(func() error {
		select {
		case <-stop:
			close(quit)
		case <-ctx.Done():
		}
		return nil
	})

	grp.Go(func() error {
		tick := time.NewTicker(mon.freq)
		defer tick.Stop()

		for {
			err := mon.probe()
			if err != nil {
				return fmt.Errorf("could not probe sensors: %w", err)
			}
			select {
			case <-quit:
				return nil
			case <-tick.C:
			}
		}
	})

	return grp.Wait()
}

// probe checks which sensors are connected and raises an alert for each
// expected sensor not sending data.
func (mon *monitor) probe() error {
	v, err := mon.dev.GetStat(m47.CodeCheckConnect, 0)
	if err != nil {
		return err
	}
	cur := uint8(v) & 0xf

	for ch := 0; ch < m47.NumChans; ch++ {
		var (
			bit  = uint8(1) << ch
			was  = mon.state&bit != 0
			now  = cur&bit != 0
			want = mon.mask&bit != 0
		)
		switch {
		case was && !now:
			log.Printf("sensor on channel %d disconnected", ch)
		case !was && now:
			log.Printf("sensor on channel %d connected", ch)
			mon.alerts[ch] = 0
		}

		if !want || now {
			continue
		}
		if mon.alerts[ch] >= maxAlerts {
			continue
		}
		mon.alerts[ch]++
		err := mon.alert(ch, mon.freq)
		if err != nil {
			log.Printf("could not send alert for channel %d: %+v", ch, err)
		}
	}
	mon.state = cur
	return nil
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func alertMail(ch int, freq time.Duration) error {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 || alertMailTgts[0] == "" {
		return fmt.Errorf("missing mail credentials")
	}

	host, _ := os.Hostname()

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[m47-mon] sensor alert: channel %d", ch))
	msg.SetBody("text/plain", fmt.Sprintf("host: %s\nchannel: %d\nstatus: no data\nfreq: %v",
		host, ch, freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		return fmt.Errorf("could not send mail alert: %w", err)
	}
	return nil
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Panicf("could not convert %q to int: %+v", s, err)
	}
	return v
}
