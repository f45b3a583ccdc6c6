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

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/listguard/listguard/cmd/util"
	"gvisor.dev/listguard/listguard/flag"
	"gvisor.dev/listguard/pkg/ilist"
	"gvisor.dev/listguard/pkg/listscript"
	"gvisor.dev/listguard/pkg/log"
)

// Check implements subcommands.Command for the "check" command.
type Check struct {
	scenario string
	verbose  bool
}

// Name implements subcommands.Command.Name.
func (*Check) Name() string {
	return "check"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Check) Synopsis() string {
	return "runs the built-in corruption scenarios"
}

// Usage implements subcommands.Command.Usage.
func (*Check) Usage() string {
	return `check [flags] - runs every built-in scenario, or the one named by -scenario.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Check) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.scenario, "scenario", "", "run only the named scenario.")
	f.BoolVar(&c.verbose, "v", false, "print scenario descriptions.")
}

// Execute implements subcommands.Command.Execute.
func (c *Check) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf, reporter := execArgs(args)

	var scripts []*listscript.Script
	if c.scenario != "" {
		s, err := listscript.Lookup(c.scenario)
		if err != nil {
			util.Fatalf("%v", err)
		}
		scripts = append(scripts, s)
	} else {
		var err error
		scripts, err = listscript.Builtin()
		if err != nil {
			util.Fatalf("loading scenarios: %v", err)
		}
	}

	failed := runScenarios(os.Stdout, scripts, conf.ValidatorOptions(reporter), c.verbose)
	log.Infof("%d of %d scenarios passed", len(scripts)-failed, len(scripts))
	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// runScenarios runs scripts with opts, prints one PASS or FAIL line per
// script to w and returns the number of failed scripts.
func runScenarios(w io.Writer, scripts []*listscript.Script, opts ilist.Options, verbose bool) int {
	r := listscript.Runner{Options: opts}
	failed := 0
	for _, s := range scripts {
		res := r.Run(s)
		if res.Passed() {
			fmt.Fprintf(w, "PASS %s\n", s.Name)
			if verbose && s.Description != "" {
				fmt.Fprintf(w, "\t%s\n", s.Description)
			}
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL %s\n", s.Name)
		for _, sr := range res.Failures() {
			fmt.Fprintf(w, "\tstep %d (%s): %s\n", sr.Index, sr.Step.Op, sr.Failure)
		}
		if res.Halted != s.Halts {
			fmt.Fprintf(w, "\thalted: %v, want %v\n", res.Halted, s.Halts)
		}
	}
	return failed
}
