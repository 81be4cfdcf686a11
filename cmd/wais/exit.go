package main

import (
	"fmt"
	"os"
)

// osExit wraps os.Exit so tests can intercept process termination.
// Tests replace this with a function that panics with exitSentinel,
// letting panic/recover capture the exit code at the exact call site a
// real os.Exit would have stopped at.
var osExit = os.Exit

// exitSentinel is the panic value used by test overrides of osExit. The
// int value is the exit code.
type exitSentinel int

// fatal prints a formatted error message to stderr and exits with code 1,
// matching spec §6's "Exit codes: 0 on clean shutdown; 1 on identity
// load/create failure or transport init failure."
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	osExit(1)
}
