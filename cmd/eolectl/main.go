// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

// Command eolectl reads and writes the registers of an EOLE sensor over a
// serial port or a TCP serial device server.
//
//	eolectl [flags] ports
//	eolectl [flags] read <register>
//	eolectl [flags] write <register> <value>
//	eolectl [flags] dump
//	eolectl [flags] watch
//	eolectl [flags] timing
//	eolectl [flags] sync
//	eolectl [flags] catalog
//
// Registers are catalog tags or aliases (tint, tframe, gpol, mck, output)
// or hex addresses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type options struct {
	configPath string
	envPath    string
	port       string
	baud       int
	trace      bool
	interval   time.Duration
	count      int
	json       bool
}

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("eolectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to the YAML config file")
	fs.StringVar(&opts.envPath, "env", ".env", "path to a .env file with EOLE_* overrides")
	fs.StringVar(&opts.port, "port", "", "port: /dev/ttyUSB0, COM3, serial://..., tcp://host:port")
	fs.IntVar(&opts.baud, "baud", 0, "baud rate (default 115200)")
	fs.BoolVar(&opts.trace, "trace", false, "log every frame and state change")
	fs.DurationVar(&opts.interval, "interval", time.Second, "poll interval for watch")
	fs.IntVar(&opts.count, "count", 0, "stop watch after this many polls (0: until interrupted)")
	fs.BoolVar(&opts.json, "json", false, "print readings as JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: eolectl [flags] ports|read <reg>|write <reg> <value>|dump|watch|timing|sync|catalog")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	err := dispatch(ctx, opts, fs.Arg(0), fs.Args()[1:], stdout, stderr)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "eolectl: %v\n", err)
		fs.Usage()
		return 2
	case err != nil:
		fmt.Fprintf(stderr, "eolectl: %v\n", err)
		return 1
	}
	return 0
}
