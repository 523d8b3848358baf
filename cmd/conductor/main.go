// Command conductor runs the task assignment service: an HTTP API, an MCP
// server over stdio, a self-contained demo and a small HTTP client.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
