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

// Package config loads the eolectl configuration: a YAML file, then
// EOLE_* variables from a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	eole "github.com/hootrhino/goeole"
	"github.com/hootrhino/goeole/sensor"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File describes the expected YAML structure.
type File struct {
	Link      LinkConfig      `yaml:"link"`
	Timing    TimingConfig    `yaml:"timing"`
	Log       LogConfig       `yaml:"log"`
	Output    OutputConfig    `yaml:"output"`
	Catalog   string          `yaml:"catalog"`   // optional register catalog CSV
	Registers []RegisterEntry `yaml:"registers"` // extra registers on top of the catalog
}

// LinkConfig names the port and its line settings.
type LinkConfig struct {
	Port          string         `yaml:"port"` // /dev/ttyUSB0, COM3, serial://..., tcp://host:port
	Serial        SerialSettings `yaml:"serial"`
	DialTimeoutMS int            `yaml:"dial_timeout_ms"` // tcp:// only
}

// SerialSettings holds the serial line parameters.
type SerialSettings struct {
	Baud      int    `yaml:"baud"`
	DataBits  int    `yaml:"data_bits"`
	Parity    string `yaml:"parity"` // N/E/O
	StopBits  int    `yaml:"stop_bits"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// TimingConfig holds the exchange timing.
type TimingConfig struct {
	ResponseTimeoutMS int  `yaml:"response_timeout_ms"`
	QuietPeriodMS     int  `yaml:"quiet_period_ms"`
	WriteTimeoutMS    int  `yaml:"write_timeout_ms"`
	DrainBeforeSend   bool `yaml:"drain_before_send"`
}

// LogConfig selects log level and destination.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`  // stderr when empty
	Trace bool   `yaml:"trace"` // print every frame
}

// OutputConfig holds the video output policy. A nil ForceVideoOutputs keeps
// the default override; 0 trusts the register.
type OutputConfig struct {
	ForceVideoOutputs *int `yaml:"force_video_outputs"`
}

// RegisterEntry is one register declared in the YAML file.
type RegisterEntry struct {
	Tag      string `yaml:"tag"`
	Alias    string `yaml:"alias"`
	Address  string `yaml:"address"` // hex
	Format   string `yaml:"format"`
	Min      uint32 `yaml:"min"`
	Max      uint32 `yaml:"max"`
	Writable *bool  `yaml:"writable"` // defaults to true
}

// Environment variables understood by ApplyEnv.
const (
	EnvPort              = "EOLE_PORT"
	EnvBaud              = "EOLE_BAUD"
	EnvLogLevel          = "EOLE_LOG_LEVEL"
	EnvResponseTimeoutMS = "EOLE_RESPONSE_TIMEOUT_MS"
	EnvQuietPeriodMS     = "EOLE_QUIET_PERIOD_MS"
	EnvWriteTimeoutMS    = "EOLE_WRITE_TIMEOUT_MS"
)

var envKeys = []string{EnvPort, EnvBaud, EnvLogLevel, EnvResponseTimeoutMS, EnvQuietPeriodMS, EnvWriteTimeoutMS}

// Default returns the configuration used without a file.
func Default() File {
	serial := eole.DefaultSerialConfig()
	timing := eole.DefaultConfig()
	return File{
		Link: LinkConfig{
			Serial: SerialSettings{
				Baud:      serial.BaudRate,
				DataBits:  serial.DataBits,
				Parity:    serial.Parity,
				StopBits:  serial.StopBits,
				TimeoutMS: int(serial.Timeout / time.Millisecond),
			},
			DialTimeoutMS: int(serial.DialTimeout / time.Millisecond),
		},
		Timing: TimingConfig{
			ResponseTimeoutMS: int(timing.ResponseTimeout / time.Millisecond),
			QuietPeriodMS:     int(timing.QuietPeriod / time.Millisecond),
			WriteTimeoutMS:    int(timing.WriteTimeout / time.Millisecond),
		},
		Log: LogConfig{Level: "INFO"},
	}
}

// Load reads the YAML file at path on top of Default. An empty path
// returns Default.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// LoadEnv collects the EOLE_* variables from the .env file at path and the
// process environment. Variables already set in the environment win, as
// with godotenv.Load. A missing file is not an error.
func LoadEnv(path string) (map[string]string, error) {
	env := make(map[string]string)
	if path != "" {
		fileEnv, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env, nil
}

// ApplyEnv overrides the file settings with env.
func (f *File) ApplyEnv(env map[string]string) error {
	if v := env[EnvPort]; v != "" {
		f.Link.Port = v
	}
	if v := env[EnvLogLevel]; v != "" {
		f.Log.Level = v
	}
	ints := []struct {
		key string
		dst *int
	}{
		{EnvBaud, &f.Link.Serial.Baud},
		{EnvResponseTimeoutMS, &f.Timing.ResponseTimeoutMS},
		{EnvQuietPeriodMS, &f.Timing.QuietPeriodMS},
		{EnvWriteTimeoutMS, &f.Timing.WriteTimeoutMS},
	}
	for _, i := range ints {
		v := strings.TrimSpace(env[i.key])
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s: %q", i.key, v)
		}
		*i.dst = n
	}
	return f.Validate()
}

// Validate checks the settings that have no usable default.
func (f File) Validate() error {
	if f.Link.Serial.Baud < 0 {
		return fmt.Errorf("invalid baud rate %d", f.Link.Serial.Baud)
	}
	switch strings.ToUpper(f.Link.Serial.Parity) {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("invalid parity %q (want N, E or O)", f.Link.Serial.Parity)
	}
	if f.Log.Level != "" {
		if _, err := eole.ParseLevel(f.Log.Level); err != nil {
			return err
		}
	}
	if f.Output.ForceVideoOutputs != nil && *f.Output.ForceVideoOutputs < 0 {
		return fmt.Errorf("invalid force_video_outputs %d", *f.Output.ForceVideoOutputs)
	}
	return nil
}

// SerialConfig returns the line settings for eole.OpenTransport.
func (f File) SerialConfig() eole.SerialConfig {
	return eole.SerialConfig{
		BaudRate:    f.Link.Serial.Baud,
		DataBits:    f.Link.Serial.DataBits,
		StopBits:    f.Link.Serial.StopBits,
		Parity:      strings.ToUpper(f.Link.Serial.Parity),
		Timeout:     ms(f.Link.Serial.TimeoutMS),
		DialTimeout: ms(f.Link.DialTimeoutMS),
	}
}

// ExchangeConfig returns the exchange timing for eole.NewClient.
func (f File) ExchangeConfig() eole.Config {
	return eole.Config{
		ResponseTimeout: ms(f.Timing.ResponseTimeoutMS),
		QuietPeriod:     ms(f.Timing.QuietPeriodMS),
		WriteTimeout:    ms(f.Timing.WriteTimeoutMS),
		DrainBeforeSend: f.Timing.DrainBeforeSend,
	}
}

// LogLevel returns the parsed log level, INFO when unset.
func (f File) LogLevel() eole.LogLevel {
	level, err := eole.ParseLevel(f.Log.Level)
	if err != nil {
		return eole.LevelInfo
	}
	return level
}

// OutputPolicy returns the video output policy.
func (f File) OutputPolicy() sensor.OutputPolicy {
	if f.Output.ForceVideoOutputs == nil {
		return sensor.DefaultOutputPolicy()
	}
	return sensor.OutputPolicy{ForceVideoOutputs: *f.Output.ForceVideoOutputs}
}

// BuildCatalog returns the register catalog: the CSV catalog if one is
// configured, the default catalog otherwise, plus the YAML registers.
func (f File) BuildCatalog() (*sensor.Catalog, error) {
	catalog := sensor.DefaultCatalog()
	if f.Catalog != "" {
		file, err := os.Open(f.Catalog)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		if catalog, err = sensor.ParseCatalogCSV(file); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", f.Catalog, err)
		}
	}
	for i, entry := range f.Registers {
		reg, err := entry.Register()
		if err != nil {
			return nil, fmt.Errorf("registers[%d]: %w", i, err)
		}
		if err := catalog.Add(reg); err != nil {
			return nil, fmt.Errorf("registers[%d]: %w", i, err)
		}
	}
	return catalog, nil
}

// Register converts the entry into a sensor.Register.
func (e RegisterEntry) Register() (sensor.Register, error) {
	if e.Tag == "" {
		return sensor.Register{}, fmt.Errorf("'tag' is required")
	}
	addr, err := sensor.ParseAddress(e.Address)
	if err != nil {
		return sensor.Register{}, err
	}
	format, err := sensor.ParseFormat(e.Format)
	if err != nil {
		return sensor.Register{}, err
	}
	writable := true
	if e.Writable != nil {
		writable = *e.Writable
	}
	return sensor.Register{
		Tag:      e.Tag,
		Alias:    e.Alias,
		Address:  addr,
		Format:   format,
		Min:      e.Min,
		Max:      e.Max,
		Writable: writable,
	}, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
