// Package main is the entry point for the parley CLI.
//
// Usage:
//
//	parley [flags] <command> [args]
//
// Commands:
//
//	chat      - Chat with the assistant in the terminal
//	serve     - Serve the assistant over a websocket gateway
//	personas  - List the available personas
package main

import (
	"fmt"
	"os"

	"github.com/i2y/parley/cmd/parley/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
