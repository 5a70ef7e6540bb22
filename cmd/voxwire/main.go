// Package main provides the voxwire CLI.
//
// Usage:
//
//	voxwire serve            - run the development server
//	voxwire talk             - interactive voice conversation client
//	voxwire chat             - interactive chat room client
//	voxwire version          - print version information
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
