//go:build windows

package main

import (
	"os"
)

// terminationSignals cancel the running command. Windows only delivers Ctrl+C.
var terminationSignals = []os.Signal{os.Interrupt}
