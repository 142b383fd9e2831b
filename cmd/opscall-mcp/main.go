// opscall-mcp is a standalone MCP stdio server exposing the service caller
// tools to agent hosts.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/opscall/opscall/pkg/mcpserve"
	"github.com/opscall/opscall/pkg/registry"
)

var version = "dev"

func main() {
	s := mcpserve.NewServer(version, registry.Demo())
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
