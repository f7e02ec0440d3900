package main

import (
	"fmt"
	"os"

	"github.com/dshills/semcache/cmd/semcache/commands"
)

// Version information (set by -ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
