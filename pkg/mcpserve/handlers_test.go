package mcpserve

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opscall/opscall/pkg/registry"
)

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T", result.Content[0])
	}
	return tc.Text
}

func TestHandleServices(t *testing.T) {
	h := &handlers{reg: registry.Demo()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := h.HandleServices(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatal("unexpected error result")
	}
	if !strings.Contains(textOf(t, result), "/add_two_ints") {
		t.Errorf("listing = %q", textOf(t, result))
	}
}

func TestHandleDescribe_MissingService(t *testing.T) {
	h := &handlers{reg: registry.Demo()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := h.HandleDescribe(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing service argument")
	}
}

func TestHandleDescribe(t *testing.T) {
	h := &handlers{reg: registry.Demo()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"service": "/add_two_ints"}

	result, err := h.HandleDescribe(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("error: %s", textOf(t, result))
	}
	text := textOf(t, result)
	if !strings.Contains(text, "/add_two_ints/a") || !strings.Contains(text, "int64") {
		t.Errorf("describe output = %s", text)
	}
}

func TestHandleCall(t *testing.T) {
	h := &handlers{reg: registry.Demo()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"service": "/add_two_ints",
		"expressions": map[string]any{
			"/add_two_ints/a": "2",
			"/add_two_ints/b": "40",
		},
	}

	result, err := h.HandleCall(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("error: %s", textOf(t, result))
	}
	if !strings.Contains(textOf(t, result), `"sum": 42`) {
		t.Errorf("call output = %s", textOf(t, result))
	}
}

func TestHandleCall_CounterVariable(t *testing.T) {
	h := &handlers{reg: registry.Demo()}
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"service": "/add_two_ints",
		"counter": float64(4),
		"expressions": map[string]any{
			"/add_two_ints/a": "i * 2",
			"/add_two_ints/b": "1",
		},
	}

	result, err := h.HandleCall(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(textOf(t, result), `"sum": 9`) {
		t.Errorf("call output = %s", textOf(t, result))
	}
}
