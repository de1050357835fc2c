// Command ringchan drives a bounded byte channel from the command line.
//
// Usage:
//
//	ringchan [flags] <command>
//
// Commands:
//
//	pump   - copy stdin to stdout through a channel
//	watch  - run a synthetic workload and render live channel state
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
