// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m47-sh is an interactive shell to configure and read an M47 module.
//
// Commands:
//
//	get <code> [ch]          get the value of a status code
//	set <code> [ch] <value>  set the value of a status code
//	read <ch>                read the last sensor word of a channel
//	block                    read the last sensor words of all channels
//	id                       dump the ID PROM
//	regs                     dump the module registers
//	codes                    list the status codes
//	quit                     exit the shell
package main // import "github.com/go-lpc/ssi/cmd/m47-sh"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/ssi/internal/devflag"
	"github.com/go-lpc/ssi/m47"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("m47-sh: ")
	log.SetFlags(0)

	dflags := devflag.Register(flag.CommandLine)
	flag.Parse()

	dev, err := dflags.Open(context.Background(), nil)
	if err != nil {
		log.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	err = run(dev, os.Stdout)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	err = dev.Close()
	if err != nil {
		log.Fatalf("could not close device: %+v", err)
	}
}

var errQuit = errors.New("quit")

func run(dev m47.Driver, w io.Writer) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	sh := &shell{dev: dev, w: w}
	for {
		line, err := term.Prompt("m47> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		err = sh.exec(line)
		switch {
		case err == nil:
		case errors.Is(err, errQuit):
			return nil
		default:
			fmt.Fprintf(w, "error: %+v\n", err)
		}
	}
}

var cmds = []string{"get", "set", "read", "block", "id", "regs", "codes", "quit"}

func complete(line string) []string {
	var o []string
	toks := strings.Fields(line)
	switch {
	case len(toks) == 0:
		return cmds
	case len(toks) == 1 && !strings.HasSuffix(line, " "):
		for _, c := range cmds {
			if strings.HasPrefix(c, toks[0]) {
				o = append(o, c)
			}
		}
	case toks[0] == "get" || toks[0] == "set":
		pre := ""
		if len(toks) == 2 && !strings.HasSuffix(line, " ") {
			pre = toks[1]
		} else if len(toks) > 1 {
			return nil
		}
		for _, name := range codeNames() {
			if strings.HasPrefix(name, pre) {
				o = append(o, toks[0]+" "+name)
			}
		}
	}
	return o
}

func codeNames() []string {
	var names []string
	for c := m47.Code(1); ; c++ {
		name := c.String()
		if strings.HasPrefix(name, "Code(") {
			break
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type shell struct {
	dev m47.Driver
	w   io.Writer
}

func (sh *shell) exec(line string) error {
	toks := strings.Fields(line)
	switch toks[0] {
	case "quit", "exit", "q":
		return errQuit

	case "codes":
		for _, name := range codeNames() {
			fmt.Fprintf(sh.w, "%s\n", name)
		}
		return nil

	case "get":
		if len(toks) < 2 || len(toks) > 3 {
			return fmt.Errorf("usage: get <code> [ch]")
		}
		code, err := parseCode(toks[1])
		if err != nil {
			return err
		}
		ch := 0
		if len(toks) == 3 {
			ch, err = strconv.Atoi(toks[2])
			if err != nil {
				return fmt.Errorf("could not parse channel %q: %w", toks[2], err)
			}
		}
		v, err := sh.dev.GetStat(code, ch)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.w, "%v = %d (0x%x)\n", code, v, v)
		return nil

	case "set":
		if len(toks) < 3 || len(toks) > 4 {
			return fmt.Errorf("usage: set <code> [ch] <value>")
		}
		code, err := parseCode(toks[1])
		if err != nil {
			return err
		}
		ch := 0
		if len(toks) == 4 {
			ch, err = strconv.Atoi(toks[2])
			if err != nil {
				return fmt.Errorf("could not parse channel %q: %w", toks[2], err)
			}
		}
		v, err := strconv.ParseInt(toks[len(toks)-1], 0, 64)
		if err != nil {
			return fmt.Errorf("could not parse value %q: %w", toks[len(toks)-1], err)
		}
		return sh.dev.SetStat(code, ch, v)

	case "read":
		if len(toks) != 2 {
			return fmt.Errorf("usage: read <ch>")
		}
		ch, err := strconv.Atoi(toks[1])
		if err != nil {
			return fmt.Errorf("could not parse channel %q: %w", toks[1], err)
		}
		v, err := sh.dev.Read(ch)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.w, "CH%d = %08X\n", ch, v)
		return nil

	case "block":
		var vs [m47.NumChans]uint32
		_, err := sh.dev.ReadBlock(vs[:])
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.w, "CH0 = %08X CH1 = %08X CH2 = %08X CH3 = %08X\n", vs[0], vs[1], vs[2], vs[3])
		return nil

	case "id":
		buf := make([]byte, m47.IDSize)
		n, err := sh.dev.GetBlock(m47.CodeIDData, buf)
		if err != nil {
			return err
		}
		for i := 0; i < n; i += 16 {
			fmt.Fprintf(sh.w, "%02x: % x\n", i, buf[i:i+16])
		}
		return nil

	case "regs":
		dev, ok := sh.dev.(interface{ DumpRegisters(io.Writer) error })
		if !ok {
			return fmt.Errorf("driver can not dump registers")
		}
		return dev.DumpRegisters(sh.w)

	default:
		return fmt.Errorf("unknown command %q", toks[0])
	}
}

func parseCode(name string) (m47.Code, error) {
	code, ok := m47.CodeFrom(name)
	if ok {
		return code, nil
	}
	v, err := strconv.ParseUint(name, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown status code %q", name)
	}
	return m47.Code(v), nil
}
