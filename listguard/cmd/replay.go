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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/listguard/listguard/cmd/util"
	"gvisor.dev/listguard/listguard/flag"
	"gvisor.dev/listguard/pkg/ilist"
	"gvisor.dev/listguard/pkg/listscript"
)

// Replay implements subcommands.Command for the "replay" command.
type Replay struct {
	format string
	strict bool
}

// Name implements subcommands.Command.Name.
func (*Replay) Name() string {
	return "replay"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Replay) Synopsis() string {
	return "runs a scenario script and prints every step"
}

// Usage implements subcommands.Command.Usage.
func (*Replay) Usage() string {
	return `replay [flags] <script.yaml> - runs the script and prints each step with the reports it produced.
A path of "-" reads the script from stdin.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Replay) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.format, "format", "text", "output format: text or json.")
	f.BoolVar(&r.strict, "strict", false, "exit with failure if any step reported corruption, even when the script expected it.")
}

// Execute implements subcommands.Command.Execute.
func (r *Replay) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 || (r.format != "text" && r.format != "json") {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf, reporter := execArgs(args)

	var (
		s   *listscript.Script
		err error
	)
	if path := f.Arg(0); path == "-" {
		s, err = listscript.Read(os.Stdin)
	} else {
		s, err = listscript.Load(path)
	}
	if err != nil {
		util.Fatalf("%v", err)
	}
	runner := listscript.Runner{Options: conf.ValidatorOptions(reporter)}
	res := runner.Run(s)

	if r.format == "json" {
		if err := printReplayJSON(os.Stdout, res); err != nil {
			util.Fatalf("writing result: %v", err)
		}
	} else {
		printReplayText(os.Stdout, res)
	}
	return replayStatus(res, r.strict)
}

func replayStatus(res *listscript.Result, strict bool) subcommands.ExitStatus {
	switch {
	case res.Halted:
		return ExitFatalCorruption
	case !res.Passed():
		return subcommands.ExitFailure
	}
	if strict {
		for _, sr := range res.Steps {
			if _, ok := ilist.AsCorruption(sr.Err); ok {
				return subcommands.ExitFailure
			}
		}
	}
	return subcommands.ExitSuccess
}

// describe renders the operands of a step.
func describe(st listscript.Step) string {
	var b strings.Builder
	b.WriteString(st.Op)
	if len(st.Ring) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(st.Ring, " "))
	}
	for _, kv := range [][2]string{
		{"", st.Entry},
		{"prev=", st.Prev},
		{"next=", st.Next},
		{"target=", st.Target},
		{"state=", st.State},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, " %s%s", kv[0], kv[1])
		}
	}
	return b.String()
}

func outcome(err error) string {
	if err == nil {
		return listscript.WantOK
	}
	if ce, ok := ilist.AsCorruption(err); ok {
		var kinds []string
		for _, k := range ce.Kinds() {
			kinds = append(kinds, k.String())
		}
		if ce.Fatal() {
			return "fatal " + strings.Join(kinds, ",")
		}
		return strings.Join(kinds, ",")
	}
	return err.Error()
}

func printReplayText(w io.Writer, res *listscript.Result) {
	fmt.Fprintf(w, "script %s\n", res.Script.Name)
	for _, sr := range res.Steps {
		fmt.Fprintf(w, "  [%d] %s: ", sr.Index, describe(sr.Step))
		switch {
		case sr.Skipped:
			fmt.Fprintf(w, "skipped\n")
			continue
		case sr.Step.Op == listscript.OpExpect || sr.Step.Op == listscript.OpSetNext || sr.Step.Op == listscript.OpSetPrev:
			fmt.Fprintf(w, "done\n")
		default:
			fmt.Fprintf(w, "%s\n", outcome(sr.Err))
		}
		if ce, ok := ilist.AsCorruption(sr.Err); ok {
			for _, rep := range ce.Reports {
				fmt.Fprintf(w, "        %v\n", rep)
			}
		}
		if sr.Failure != "" {
			fmt.Fprintf(w, "        FAIL: %s\n", sr.Failure)
		}
	}
	result := "PASS"
	if !res.Passed() {
		result = "FAIL"
	}
	if res.Halted {
		result += " (halted on fatal corruption)"
	}
	fmt.Fprintf(w, "result: %s\n", result)
}

type jsonStep struct {
	Index   int             `json:"index"`
	Step    string          `json:"step"`
	Outcome string          `json:"outcome,omitempty"`
	Reports []*ilist.Report `json:"reports,omitempty"`
	Failure string          `json:"failure,omitempty"`
	Skipped bool            `json:"skipped,omitempty"`
}

type jsonResult struct {
	Script string     `json:"script"`
	Passed bool       `json:"passed"`
	Halted bool       `json:"halted"`
	Steps  []jsonStep `json:"steps"`
}

func printReplayJSON(w io.Writer, res *listscript.Result) error {
	out := jsonResult{
		Script: res.Script.Name,
		Passed: res.Passed(),
		Halted: res.Halted,
	}
	for _, sr := range res.Steps {
		js := jsonStep{
			Index:   sr.Index,
			Step:    describe(sr.Step),
			Failure: sr.Failure,
			Skipped: sr.Skipped,
		}
		if !sr.Skipped {
			js.Outcome = outcome(sr.Err)
		}
		if ce, ok := ilist.AsCorruption(sr.Err); ok {
			js.Reports = ce.Reports
		}
		out.Steps = append(out.Steps, js)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
