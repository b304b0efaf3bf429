package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/lixenwraith/framekit/terminal"
)

// handleCrash resets the terminal and prints the panic with its stack trace
func handleCrash(r any) {
	if r == nil {
		return
	}

	// Restore terminal to sane state immediately
	terminal.EmergencyReset(os.Stdout)
	os.Stdout.Sync()

	// \r\n keeps the trace readable if raw mode survived the reset
	fmt.Fprintf(os.Stderr, "\r\n\x1b[31mframekit crashed: %v\x1b[0m\r\n", r)
	fmt.Fprintf(os.Stderr, "Stack Trace:\r\n%s\r\n", debug.Stack())
	os.Stderr.Sync()

	os.Exit(1)
}

// guarded wraps an errgroup task so a panic restores the terminal before the process dies
func guarded(fn func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				handleCrash(r)
			}
		}()
		return fn()
	}
}
