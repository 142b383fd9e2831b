package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/message"
)

// MCP is a registry backed by an MCP server process: every tool the server
// announces becomes a service, its input schema the request descriptor and
// its output schema (when declared) the response descriptor.
//
// MCP uses JSON-RPC 2.0 over stdio with an initialization handshake.
type MCP struct {
	binary string
	cmd    *exec.Cmd
	stdin  *json.Encoder
	reader *bufio.Reader
	nextID int64
	mu     sync.Mutex
	done   chan struct{}

	tools map[string]*mcpTool
}

// mcpTool is one discovered tool with its raw schema documents.
type mcpTool struct {
	name         string
	description  string
	inputSchema  json.RawMessage
	outputSchema json.RawMessage
}

// jsonrpcRequest is a JSON-RPC 2.0 request.
type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// jsonrpcResponse is a JSON-RPC 2.0 response.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

// jsonrpcError is a JSON-RPC error object.
type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpContent is an item in an MCP tools/call response content array.
type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// mcpCallResult is the result of an MCP tools/call response.
type mcpCallResult struct {
	Content           []mcpContent    `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// SpawnMCP starts an MCP server process, performs the initialization
// handshake, and discovers its tools.
func SpawnMCP(ctx context.Context, binary string, argv ...string) (*MCP, error) {
	cmd := exec.CommandContext(ctx, binary, argv...)
	cmd.Env = os.Environ()

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start MCP process %q: %w", binary, err)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	// Drain stderr in background
	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			fmt.Fprintf(os.Stderr, "  [mcp:%s] %s\n", binary, scanner.Text())
		}
	}()

	r := &MCP{
		binary: binary,
		cmd:    cmd,
		stdin:  json.NewEncoder(stdinPipe),
		reader: bufio.NewReader(stdout),
		tools:  make(map[string]*mcpTool),
		done:   done,
	}

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := r.initialize(initCtx); err != nil {
		r.kill()
		return nil, fmt.Errorf("MCP initialize: %w", err)
	}
	r.notify("notifications/initialized", nil)

	if err := r.discoverTools(initCtx); err != nil {
		r.kill()
		return nil, fmt.Errorf("MCP tools/list: %w", err)
	}
	fmt.Fprintf(os.Stderr, "  [mcp:%s] initialized, %d services discovered\n", binary, len(r.tools))
	return r, nil
}

func (r *MCP) initialize(ctx context.Context) error {
	resp, err := r.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "opscall",
			"version": "0.1.0",
		},
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize error [%d]: %s", resp.Error.Code, resp.Error.Message)
	}
	return nil
}

func (r *MCP) discoverTools(ctx context.Context) error {
	resp, err := r.call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("tools/list error [%d]: %s", resp.Error.Code, resp.Error.Message)
	}

	var listResult struct {
		Tools []struct {
			Name         string          `json:"name"`
			Description  string          `json:"description"`
			InputSchema  json.RawMessage `json:"inputSchema"`
			OutputSchema json.RawMessage `json:"outputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &listResult); err != nil {
		return fmt.Errorf("parse tools/list result: %w", err)
	}

	for _, t := range listResult.Tools {
		r.tools[t.Name] = &mcpTool{
			name:         t.Name,
			description:  t.Description,
			inputSchema:  t.InputSchema,
			outputSchema: t.OutputSchema,
		}
	}
	return nil
}

// ListServiceNames implements Registry.
func (r *MCP) ListServiceNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Resolve implements Registry.  Tools with unusable schemas resolve to a
// SchemaError; callers omit them from pickers with a warning.
func (r *MCP) Resolve(ctx context.Context, name string) (*Service, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if len(t.inputSchema) == 0 {
		return nil, &SchemaError{Service: name, Err: fmt.Errorf("tool declares no input schema")}
	}
	req, err := describe.Compile(name, t.inputSchema)
	if err != nil {
		return nil, &SchemaError{Service: name, Err: err}
	}

	resp := textResponseDescriptor()
	if len(t.outputSchema) > 0 {
		if compiled, err := describe.Compile(name+".Response", t.outputSchema); err == nil && compiled.IsRecord() {
			resp = compiled
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "  [mcp:%s] %s: output schema unusable, falling back to text: %v\n", r.binary, name, err)
		}
	}

	return &Service{
		Name:        name,
		Description: t.description,
		Request:     req,
		Response:    resp,
		Handle:      &mcpHandle{reg: r, tool: name, resp: resp},
	}, nil
}

// textResponseDescriptor is the response shape for tools that declare no
// structured output: the joined text content.
func textResponseDescriptor() *describe.Descriptor {
	return describe.NewRecord("ToolResult",
		describe.Field{Name: "text", Desc: describe.NewPrimitive(describe.String)},
	)
}

// mcpHandle invokes one tool.
type mcpHandle struct {
	reg  *MCP
	tool string
	resp *describe.Descriptor
}

// Invoke implements CallHandle.  Remote failures come back as *RemoteError
// so sessions can render them in the uniform error-tree shape.
func (h *mcpHandle) Invoke(ctx context.Context, req *message.Message) (*message.Message, error) {
	resp, err := h.reg.call(ctx, "tools/call", map[string]any{
		"name":      h.tool,
		"arguments": req.ToMap(),
	})
	if err != nil {
		return nil, &RemoteError{Service: h.tool, Message: err.Error()}
	}
	if resp.Error != nil {
		return nil, &RemoteError{Service: h.tool, Message: fmt.Sprintf("[%d] %s", resp.Error.Code, resp.Error.Message)}
	}

	var result mcpCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, &RemoteError{Service: h.tool, Message: fmt.Sprintf("parse result: %v", err)}
	}
	if result.IsError {
		var texts []string
		for _, c := range result.Content {
			if c.Type == "text" {
				texts = append(texts, c.Text)
			}
		}
		return nil, &RemoteError{Service: h.tool, Message: strings.Join(texts, "; ")}
	}

	// Prefer structured content when the tool returns it.
	if len(result.StructuredContent) > 0 {
		var data map[string]any
		if err := json.Unmarshal(result.StructuredContent, &data); err == nil {
			return message.FromMap(h.resp, data), nil
		}
	}

	var texts []string
	for _, c := range result.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}
	out := message.New(textResponseDescriptor())
	out.SetField("text", strings.Join(texts, "\n"))
	return out, nil
}

// call sends one request and reads its matching response.
func (r *MCP) call(ctx context.Context, method string, params any) (*jsonrpcResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return nil, fmt.Errorf("MCP process has exited")
	default:
	}

	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddInt64(&r.nextID, 1),
		Method:  method,
		Params:  params,
	}
	if err := r.stdin.Encode(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	return r.readResponse(ctx)
}

// notify sends a JSON-RPC notification (no id, no response expected).
func (r *MCP) notify(method string, params any) {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	r.stdin.Encode(msg)
}

// readResponse reads a single JSON-RPC response, skipping notifications.
func (r *MCP) readResponse(ctx context.Context) (*jsonrpcResponse, error) {
	type readResult struct {
		resp *jsonrpcResponse
		err  error
	}

	ch := make(chan readResult, 1)
	go func() {
		for {
			line, err := r.reader.ReadString('\n')
			if err != nil {
				ch <- readResult{err: fmt.Errorf("read: %w", err)}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			var peek struct {
				ID     *int64 `json:"id"`
				Method string `json:"method"`
			}
			if err := json.Unmarshal([]byte(line), &peek); err != nil {
				continue
			}
			// Skip server-initiated notifications.
			if peek.ID == nil && peek.Method != "" {
				continue
			}

			var resp jsonrpcResponse
			if err := json.Unmarshal([]byte(line), &resp); err != nil {
				ch <- readResult{err: fmt.Errorf("unmarshal response: %w", err)}
				return
			}
			ch <- readResult{resp: &resp}
			return
		}
	}()

	select {
	case result := <-ch:
		return result.resp, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, fmt.Errorf("MCP process exited while waiting for response")
	}
}

// Shutdown interrupts the server process, escalating to a kill after grace.
func (r *MCP) Shutdown(grace time.Duration) error {
	r.cmd.Process.Signal(os.Interrupt)
	select {
	case <-r.done:
		return nil
	case <-time.After(grace):
		return r.kill()
	}
}

func (r *MCP) kill() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	if r.cmd.Process != nil {
		return r.cmd.Process.Kill()
	}
	return nil
}
