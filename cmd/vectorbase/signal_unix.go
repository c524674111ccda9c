//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals cancel the running command.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
