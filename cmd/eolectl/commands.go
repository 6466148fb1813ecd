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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	eole "github.com/hootrhino/goeole"
	"github.com/hootrhino/goeole/internal/config"
	"github.com/hootrhino/goeole/sensor"
)

// app is one connected session.
type app struct {
	opts   options
	cfg    config.File
	logger *eole.SimpleLogger
	link   *eole.StreamTransport
	client *eole.Client
	device *sensor.Device
	stdout io.Writer
}

func dispatch(ctx context.Context, opts options, cmd string, args []string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Commands that need no link.
	switch cmd {
	case "ports":
		return listPorts(stdout)
	case "catalog":
		catalog, err := cfg.BuildCatalog()
		if err != nil {
			return err
		}
		return sensor.WriteCatalogCSV(catalog, stdout)
	}

	want := map[string]int{"read": 1, "write": 2, "dump": 0, "watch": 0, "timing": 0, "sync": 0}
	n, known := want[cmd]
	if !known {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, cmd, n, len(args))
	}

	a, err := connect(cfg, opts, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "read":
		return a.read(ctx, args[0])
	case "write":
		return a.write(ctx, args[0], args[1])
	case "dump":
		return a.dump(ctx)
	case "watch":
		return a.watch(ctx)
	case "timing":
		return a.timing(ctx)
	default:
		return a.sync(ctx)
	}
}

// loadConfig layers the YAML file, the .env file and environment, then the
// command line flags.
func loadConfig(opts options) (config.File, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	env, err := config.LoadEnv(opts.envPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return cfg, err
	}
	if opts.port != "" {
		cfg.Link.Port = opts.port
	}
	if opts.baud > 0 {
		cfg.Link.Serial.Baud = opts.baud
	}
	if opts.trace {
		cfg.Log.Trace = true
	}
	return cfg, nil
}

func connect(cfg config.File, opts options, stdout, stderr io.Writer) (*app, error) {
	if cfg.Link.Port == "" {
		return nil, fmt.Errorf("no port configured: use -port, %s or link.port", config.EnvPort)
	}

	var out io.Writer = stderr
	if cfg.Log.File != "" {
		file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out = file
	}
	level := cfg.LogLevel()
	if cfg.Log.Trace {
		level = eole.LevelDebug
	}
	logger := eole.NewSimpleLogger(out, level, "eolectl")

	link, err := eole.OpenTransport(cfg.Link.Port, cfg.SerialConfig())
	if err != nil {
		logger.Close()
		return nil, err
	}
	fmt.Fprintf(logger, "INFO: connected to %s\n", link.Target())

	client := eole.NewClient(link, cfg.ExchangeConfig())
	client.SetLogger(logger)
	if cfg.Log.Trace {
		client.SetDiagnosticSink(eole.WriterSink{W: logger})
	}

	catalog, err := cfg.BuildCatalog()
	if err != nil {
		link.Close()
		logger.Close()
		return nil, err
	}
	device := sensor.NewDevice(client, catalog)
	device.SetLogger(logger)
	device.SetOutputPolicy(cfg.OutputPolicy())

	return &app{
		opts:   opts,
		cfg:    cfg,
		logger: logger,
		link:   link,
		client: client,
		device: device,
		stdout: stdout,
	}, nil
}

func (a *app) close() {
	if err := a.link.Close(); err != nil {
		fmt.Fprintf(a.logger, "WARNING: close %s: %v\n", a.link.Target(), err)
	}
	a.logger.Close()
}

func listPorts(stdout io.Writer) error {
	ports, err := eole.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(stdout, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func (a *app) read(ctx context.Context, name string) error {
	r, err := a.device.Read(ctx, name)
	if err != nil {
		return err
	}
	if a.opts.json {
		return a.printJSON([]sensor.Reading{r})
	}
	fmt.Fprintf(a.stdout, "%s = %s\n", r.Register.Tag, r.Text)
	return nil
}

func (a *app) write(ctx context.Context, name, value string) error {
	v, err := a.device.Write(ctx, name, value)
	if err != nil {
		return err
	}
	reg, _ := a.device.Resolve(name)
	fmt.Fprintf(a.stdout, "%s <- %s\n", reg.Tag, reg.FormatValue(v))
	return nil
}

func (a *app) dump(ctx context.Context) error {
	readings, err := a.device.ReadAll(ctx)
	if a.opts.json {
		if jerr := a.printJSON(readings); jerr != nil {
			return jerr
		}
	} else {
		a.printTable(readings)
	}
	return err
}

func (a *app) watch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	poller := sensor.NewPoller(a.client, a.opts.interval, a.device.Catalog().Registers()...)
	polls := 0
	poller.SetOnData(func(readings []sensor.Reading) {
		if a.opts.json {
			a.printJSON(readings)
		} else {
			a.printTable(readings)
			fmt.Fprintln(a.stdout)
		}
		polls++
		if a.opts.count > 0 && polls >= a.opts.count {
			cancel()
		}
	})
	poller.SetOnError(func(err error) {
		fmt.Fprintf(a.logger, "WARNING: poll: %v\n", err)
	})
	poller.SetOnLinkLost(func() {
		fmt.Fprintf(a.logger, "ERROR: link to %s lost\n", a.link.Target())
		cancel()
	})

	poller.Start()
	<-ctx.Done()
	poller.Stop()
	if !a.client.CheckLink() {
		return sensor.ErrLinkLost
	}
	return nil
}

func (a *app) timing(ctx context.Context) error {
	output, err := a.device.OutputConfig(ctx)
	if err != nil {
		return err
	}
	clock, err := a.device.ClockControl(ctx)
	if err != nil {
		return err
	}
	timing, err := a.device.Timing(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "output: %s\nclock:  %s\ntiming: %s\n", output, clock, timing)
	return nil
}

func (a *app) sync(ctx context.Context) error {
	period, err := a.device.SyncPeriod(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s <- %d\n", sensor.IntegrationPeriod.Tag, period)
	return nil
}

func (a *app) printTable(readings []sensor.Reading) {
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tADDRESS\tVALUE\tSTATUS")
	for _, r := range readings {
		status := "OK"
		value := r.Text
		if r.Err != nil {
			status = errorSummary(r.Err)
			value = "-"
		}
		fmt.Fprintf(w, "%s\t0x%03X\t%s\t%s\n", r.Register.Tag, uint32(r.Register.Address), value, status)
	}
	w.Flush()
}

type jsonReading struct {
	Tag     string `json:"tag"`
	Address string `json:"address"`
	Value   uint32 `json:"value"`
	Text    string `json:"text,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

func (a *app) printJSON(readings []sensor.Reading) error {
	out := make([]jsonReading, 0, len(readings))
	for _, r := range readings {
		jr := jsonReading{
			Tag:     r.Register.Tag,
			Address: fmt.Sprintf("0x%03X", uint32(r.Register.Address)),
			Value:   r.Value,
			Text:    r.Text,
			Status:  r.Status.String(),
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		out = append(out, jr)
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func errorSummary(err error) string {
	switch {
	case errors.Is(err, eole.ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, eole.ErrCRCMismatch):
		return "CRC"
	case errors.Is(err, sensor.ErrReadRejected):
		return "NOT-OK"
	case errors.Is(err, eole.ErrTransport):
		return "LINK"
	default:
		return "ERROR"
	}
}
