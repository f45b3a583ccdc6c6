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

// Package cli is the main entrypoint for listguard.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"gvisor.dev/listguard/listguard/cmd"
	"gvisor.dev/listguard/listguard/cmd/util"
	"gvisor.dev/listguard/listguard/config"
	"gvisor.dev/listguard/listguard/flag"
	"gvisor.dev/listguard/pkg/corruption"
	"gvisor.dev/listguard/pkg/ilist"
	"gvisor.dev/listguard/pkg/log"
)

// version is set at link time.
var version = "dev"

// versionFlagName is the name of a flag that triggers printing the version.
const versionFlagName = "version"

var (
	configFile = flag.String("config", "", "TOML configuration file. Flags set on the command line take precedence over it.")
	panicLogFD = flag.Int("panic-log-fd", -1, "file descriptor to write Go's runtime messages.")
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)
	flag.Bool(versionFlagName, false, "show version and exit.")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	if flag.Get(flag.Lookup(versionFlagName).Value).(bool) {
		fmt.Fprintf(os.Stdout, "listguard version %s\n", version)
		os.Exit(0)
	}

	// Create a new Config from the flags, then fill in what the file sets.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}
	if *configFile != "" {
		if err := conf.LoadFile(*configFile, flag.CommandLine); err != nil {
			util.Fatalf("%v", err)
		}
	}

	var logFile io.Writer = os.Stderr
	if conf.LogFilename != "" {
		// O_APPEND so that consecutive runs share the file.
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
		util.ErrorLogger = f
	}

	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	emitters := log.MultiEmitter{newEmitter(conf.LogFormat, logFile)}
	if *panicLogFD > -1 {
		// Panics go to the given fd rather than wherever stderr points.
		if err := unix.Dup3(*panicLogFD, int(os.Stderr.Fd()), 0); err != nil {
			util.Fatalf("error dup'ing fd %d to stderr: %v", *panicLogFD, err)
		}
	} else if conf.LogFilename != "" && conf.AlsoLogToStderr {
		emitters = append(emitters, newEmitter(conf.LogFormat, os.Stderr))
	}
	if len(emitters) == 1 {
		log.SetTarget(emitters[0])
	} else {
		log.SetTarget(&emitters)
	}

	// Libraries that log through the standard logger end up in the same place.
	if err := log.CopyStandardLogTo(log.Info); err != nil {
		util.Fatalf("%v", err)
	}

	const delimString = `**************** listguard ****************`
	log.Infof(delimString)
	log.Infof("Version %s, %s, %s, %d CPUs, %s, PID %d", version, runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	var (
		reporter    ilist.Reporter
		logReporter *corruption.LogReporter
	)
	switch conf.ReportSink {
	case "logrus":
		reporter = corruption.NewFieldReporter(newLogrus(conf.LogFormat, logFile))
	default:
		logReporter = corruption.NewLogReporter(log.Log(), conf.ReportInterval, conf.ReportBurst)
		if conf.ReportJSON {
			logReporter.WithJSON()
		}
		reporter = logReporter
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	// Call the subcommand and pass in the configuration.
	status := subcommands.Execute(ctx, conf, reporter)
	if logReporter != nil {
		if dropped := logReporter.Dropped(); dropped > 0 {
			log.Warningf("%d corruption reports were dropped by rate limiting", dropped)
		}
	}
	switch status {
	case subcommands.ExitSuccess:
		log.Infof("Exiting with status: %v", status)
	case cmd.ExitFatalCorruption:
		log.Warningf("Fatal list corruption, exiting with status: %v", status)
	default:
		log.Warningf("Failure to execute command, exiting with status: %v", status)
	}
	stop()
	os.Exit(int(status))
}

// forEachCmd invokes the passed callback for each command supported by
// listguard.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Check), "")
	cb(new(cmd.Replay), "")
	cb(new(cmd.Stress), "")

	const debugGroup = "debug"
	cb(new(cmd.Config), debugGroup)
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	}
	util.Fatalf("invalid log format %q, must be 'text' or 'json'", format)
	panic("unreachable")
}

// newLogrus returns a logrus logger writing to out in the given log format.
func newLogrus(format string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return l
}
