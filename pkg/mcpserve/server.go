// Package mcpserve exposes the console over MCP, so agents can enumerate
// services, inspect their request shapes, and invoke them with expression
// maps — the same pipeline the interactive front-ends use.
package mcpserve

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opscall/opscall/pkg/registry"
)

// NewServer creates an MCP server with the opscall tools registered against
// the given registry.
func NewServer(version string, reg registry.Registry) *server.MCPServer {
	s := server.NewMCPServer(
		"opscall",
		version,
		server.WithToolCapabilities(true),
	)

	h := &handlers{reg: reg}

	s.AddTool(
		mcp.NewTool("opscall/services",
			mcp.WithDescription("List the available service names"),
		),
		h.HandleServices,
	)

	s.AddTool(
		mcp.NewTool("opscall/describe",
			mcp.WithDescription("Describe a service's request and response fields with their paths and types"),
			mcp.WithString("service", mcp.Required(), mcp.Description("Service name, e.g. /add_two_ints")),
		),
		h.HandleDescribe,
	)

	s.AddTool(
		mcp.NewTool("opscall/call",
			mcp.WithDescription("Invoke a service with a path-to-expression map"),
			mcp.WithString("service", mcp.Required(), mcp.Description("Service name")),
			mcp.WithObject("expressions", mcp.Description("Map of leaf path to expression text, e.g. {\"/add_two_ints/a\": \"2\"}")),
			mcp.WithNumber("counter", mcp.Description("Value expressions see as the variable i (default 0)")),
		),
		h.HandleCall,
	)

	return s
}
