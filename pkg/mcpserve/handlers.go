package mcpserve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opscall/opscall/pkg/message"
	"github.com/opscall/opscall/pkg/rebuild"
	"github.com/opscall/opscall/pkg/registry"
	"github.com/opscall/opscall/pkg/session"
	"github.com/opscall/opscall/pkg/tree"
)

type handlers struct {
	reg registry.Registry
}

// HandleServices implements the opscall/services tool.
func (h *handlers) HandleServices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := session.ListAvailable(ctx, h.reg)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(strings.Join(names, "\n")), nil
}

// HandleDescribe implements the opscall/describe tool.
func (h *handlers) HandleDescribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["service"].(string)
	if name == "" {
		return errorResult("service argument is required"), nil
	}

	svc, err := h.reg.Resolve(ctx, name)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	reqTree := tree.ProjectRoot(svc.Name, message.New(svc.Request), true)
	respTree := tree.ProjectRoot(svc.Name, message.New(svc.Response), false)

	out := map[string]any{
		"service":     svc.Name,
		"description": svc.Description,
		"request":     describeNodes(reqTree),
		"response":    describeNodes(respTree),
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return textResult(string(data)), nil
}

// describeNodes flattens a projected tree into path/type rows.
func describeNodes(root *tree.Node) []map[string]string {
	var rows []map[string]string
	root.Walk(func(n *tree.Node) {
		if n == root {
			return
		}
		rows = append(rows, map[string]string{
			"path": n.Path,
			"type": n.TypeName,
		})
	})
	return rows
}

// HandleCall implements the opscall/call tool.
func (h *handlers) HandleCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["service"].(string)
	if name == "" {
		return errorResult("service argument is required"), nil
	}

	sess, err := session.New(ctx, h.reg, name)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if counter, ok := args["counter"].(float64); ok {
		if err := sess.SetCounter(int(counter)); err != nil {
			return errorResult(err.Error()), nil
		}
	}

	// Expressions for paths outside the default tree shape (grown array
	// elements) are legal: reconstruction infers array growth from the map,
	// so they bypass SetExpression's tree check via a direct rebuild below.
	exprs := make(map[string]string)
	if raw, ok := args["expressions"].(map[string]any); ok {
		for path, text := range raw {
			exprs[path] = fmt.Sprint(text)
		}
	}
	for path, text := range exprs {
		// Best effort: keep the visible tree in sync where the path exists.
		sess.SetExpression(path, text)
	}

	reqMsg, diags := rebuild.FromExpressions(sess.Service().Request, name, exprs, sess.Counter())
	resp, callErr := sess.Service().Handle.Invoke(ctx, reqMsg)

	out := map[string]any{
		"service": name,
		"request": reqMsg.ToMap(),
	}
	var diagTexts []string
	for _, d := range diags {
		diagTexts = append(diagTexts, d.String())
	}
	if len(diagTexts) > 0 {
		out["diagnostics"] = diagTexts
	}
	if callErr != nil {
		out["error"] = callErr.Error()
	} else {
		out["response"] = resp.ToMap()
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: callErr != nil,
	}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
