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

// Package util groups a bunch of common helper functions used by commands.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gvisor.dev/listguard/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages are
// consumed by tooling that parses the log file.
var ErrorLogger io.Writer

// InternalError is the exit status used by Fatalf. It does not collide with
// the statuses commands return.
const InternalError = 128

type jsonError struct {
	Msg   string    `json:"msg"`
	Level string    `json:"level"`
	Time  time.Time `json:"time"`
}

// Infof writes message to log and stdout.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
	fmt.Printf(format+"\n", args...)
}

// Errorf logs error to the log file and to ErrorLogger, if set.
func Errorf(format string, args ...any) {
	// If an error is encountered after the log file is opened, it is
	// written to both the log file and to stderr.
	log.Warningf(format, args...)
	writeError(format, args...)
}

func writeError(format string, args ...any) {
	if ErrorLogger == nil {
		return
	}
	j := jsonError{
		Msg:   fmt.Sprintf(format, args...),
		Level: "error",
		Time:  time.Now(),
	}
	b, err := json.Marshal(j)
	if err != nil {
		panic(err)
	}
	_, _ = ErrorLogger.Write(append(b, '\n'))
}

// Fatalf logs the same way as Errorf, writes the message to stderr and exits
// with InternalError.
func Fatalf(format string, args ...any) {
	Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "listguard: "+format+"\n", args...)
	os.Exit(InternalError)
}
