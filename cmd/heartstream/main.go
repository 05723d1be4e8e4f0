// Command heartstream streams ECG samples to a host over a serial or
// Bluetooth LE link, and carries the host-side tools for checking the
// stream.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
