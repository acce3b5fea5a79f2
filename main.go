package main

import (
	"os"

	"github.com/xolan/wogger/cmd"
)

// Version information injected by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitFunc is os.Exit, replaceable in tests.
var exitFunc = os.Exit

func run() int {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	exitFunc(run())
}
