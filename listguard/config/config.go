// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides basic infrastructure to set configuration settings
// for listguard. Each setting that can be changed from the command line must
// be registered with a flag. The Config struct carries a `flag` tag naming
// the flag and a `toml` tag naming the key in a configuration file.
package config

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"gvisor.dev/listguard/listguard/flag"
	"gvisor.dev/listguard/pkg/ilist"
	"gvisor.dev/listguard/pkg/log"
)

// Config holds configuration that is not part of the command line arguments
// of a single subcommand.
type Config struct {
	// OnCorruption selects what happens once a list check fails.
	OnCorruption ilist.Policy `flag:"on-corruption" toml:"on_corruption"`

	// Validate enables list checks. Without it, operations are plain
	// relinking.
	Validate bool `flag:"validate" toml:"validate"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format.
	LogFormat string `flag:"log-format" toml:"log_format"`

	// AlsoLogToStderr allows to send log messages to stderr in addition to
	// the log file.
	AlsoLogToStderr bool `flag:"alsologtostderr" toml:"alsologtostderr"`

	// ReportInterval limits how often corruption reports are logged. Zero
	// logs every report.
	ReportInterval time.Duration `flag:"report-interval" toml:"report_interval"`

	// ReportBurst is the number of reports that may be logged at once when
	// ReportInterval is set.
	ReportBurst int `flag:"report-burst" toml:"report_burst"`

	// ReportJSON logs corruption reports as JSON objects.
	ReportJSON bool `flag:"report-json" toml:"report_json"`

	// ReportSink selects where corruption reports go: "log" sends them
	// through the listguard log, "logrus" logs them as structured logrus
	// entries to the same destination.
	ReportSink string `flag:"report-sink" toml:"report_sink"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be one of: text, json", c.LogFormat)
	}
	switch c.ReportSink {
	case "log", "logrus":
	default:
		return fmt.Errorf("invalid report sink %q, must be one of: log, logrus", c.ReportSink)
	}
	if c.ReportInterval < 0 {
		return fmt.Errorf("report-interval must not be negative: %v", c.ReportInterval)
	}
	if c.ReportBurst < 1 {
		return fmt.Errorf("report-burst must be at least 1: %d", c.ReportBurst)
	}
	return nil
}

// ValidatorOptions returns the ilist options described by c, reporting to r.
func (c *Config) ValidatorOptions(r ilist.Reporter) ilist.Options {
	return ilist.Options{
		OnCorruption: c.OnCorruption,
		Validation:   c.Validate,
		Reporter:     r,
	}
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		log.Infof("\t%s: %s", name, getVal(obj.Field(i)))
	}
}

// WriteTOML writes c as a configuration file that LoadFile accepts.
func (c *Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// LoadFile reads the TOML configuration file at path into c. Keys whose flag
// was set explicitly on flagSet are ignored, so the command line always wins.
func (c *Config) LoadFile(path string, flagSet *flag.FlagSet) error {
	var file Config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys in config file %q: %v", path, undecoded)
	}

	explicit := flag.SetOnCommandLine(flagSet)
	obj := reflect.ValueOf(c).Elem()
	fileObj := reflect.ValueOf(&file).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		key, ok := f.Tag.Lookup("toml")
		if !ok || !md.IsDefined(key) {
			continue
		}
		if name := f.Tag.Get("flag"); explicit[name] {
			log.Debugf("Config file key %q overridden by --%s", key, name)
			continue
		}
		obj.Field(i).Set(fileObj.Field(i))
	}
	return c.validate()
}
