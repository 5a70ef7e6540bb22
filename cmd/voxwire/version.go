package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// set via -ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voxwire %s (%s) %s/%s\n", version, commit, runtime.GOOS, runtime.GOARCH)
	},
}
