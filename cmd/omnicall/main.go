// Package main provides the omnicall CLI tool.
//
// Usage:
//
//	omnicall [flags] <command> [args]
//
// Commands:
//
//	call     - Start a realtime voice (and optional video) call
//	config   - Configuration management
//	version  - Print version information
//
// Configuration:
//
//	The CLI stores configuration in ~/.omnicall/omnicall/
//	Use 'omnicall config' commands to manage contexts, or set
//	OMNICALL_API_KEY and OMNICALL_BASE_URL (a .env file is honoured).
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/omnicall/cmd/omnicall/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
