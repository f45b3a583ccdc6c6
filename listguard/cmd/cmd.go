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

// Package cmd holds implementations of the listguard commands.
package cmd

import (
	"fmt"

	"github.com/google/subcommands"
	"gvisor.dev/listguard/listguard/config"
	"gvisor.dev/listguard/pkg/ilist"
)

// ExitFatalCorruption is returned when a check failed under the fatal
// policy. ExitFailure covers scenario failures and, with -strict, soft
// corruption.
const ExitFatalCorruption subcommands.ExitStatus = 3

// execArgs unpacks the arguments passed by the cli package to
// subcommands.Execute.
func execArgs(args []any) (*config.Config, ilist.Reporter) {
	if len(args) != 2 {
		panic(fmt.Sprintf("expected config and reporter, got %d arguments", len(args)))
	}
	conf := args[0].(*config.Config)
	reporter, _ := args[1].(ilist.Reporter)
	return conf, reporter
}
