// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

// Package console prints highlighted user-facing messages.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	cyan = color.New(color.FgCyan).SprintFunc()
	red  = color.New(color.FgRed).SprintFunc()
)

// Printer writes informational messages to Out and errors to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// Default prints to the process stdout and stderr.
var Default = &Printer{Out: os.Stdout, Err: os.Stderr}

// Info prints "message: data" in cyan, or just message when data is empty.
func (p *Printer) Info(message, data string) {
	if data != "" {
		fmt.Fprintf(p.Out, "%s: %s\n", cyan(message), cyan(data))
		return
	}
	fmt.Fprintln(p.Out, cyan(message))
}

// Error prints "message: data" in red.
func (p *Printer) Error(message, data string) {
	fmt.Fprintf(p.Err, "%s: %s \n", red(message), red(data))
}

func Info(message, data string) {
	Default.Info(message, data)
}

func Error(message, data string) {
	Default.Error(message, data)
}
