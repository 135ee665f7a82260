package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/rohankatakam/patchnote/internal/errors"
	"github.com/rohankatakam/patchnote/internal/logging"
	"github.com/rohankatakam/patchnote/internal/mcp/tools"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "patchnote"
	ServerVersion   = "0.1.0"
)

// JSON-RPC error codes
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Tool represents an MCP tool
type Tool interface {
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
	GetSchema() map[string]interface{}
	Description() string
}

// Resource represents an MCP resource
type Resource interface {
	Read(ctx context.Context) (interface{}, error)
}

// ResourceFunc adapts a function to Resource
type ResourceFunc func(ctx context.Context) (interface{}, error)

func (f ResourceFunc) Read(ctx context.Context) (interface{}, error) { return f(ctx) }

// Handler handles MCP protocol requests
type Handler struct {
	tools     map[string]Tool
	resources map[string]Resource
	logger    *slog.Logger
}

// NewHandler creates a new MCP handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		tools:     make(map[string]Tool),
		resources: make(map[string]Resource),
		logger:    logging.OrDiscard(logger).With("component", "mcp"),
	}
}

// RegisterTool registers a tool with the handler
func (h *Handler) RegisterTool(name string, tool Tool) {
	h.tools[name] = tool
}

// RegisterResource registers a resource with the handler
func (h *Handler) RegisterResource(name string, resource Resource) {
	h.resources[name] = resource
}

// Handle processes a JSON-RPC request. Notifications (no ID) return nil.
func (h *Handler) Handle(ctx context.Context, req *tools.JSONRPCRequest) *tools.JSONRPCResponse {
	var resp *tools.JSONRPCResponse
	switch req.Method {
	case "initialize":
		resp = h.handleInitialize(req)
	case "ping":
		resp = result(req, map[string]interface{}{})
	case "tools/list":
		resp = h.handleToolsList(req)
	case "tools/call":
		resp = h.handleToolCall(ctx, req)
	case "resources/list":
		resp = h.handleResourcesList(req)
	case "resources/read":
		resp = h.handleResourceRead(ctx, req)
	default:
		resp = rpcError(req, codeMethodNotFound, "Method not found")
	}

	if req.ID == nil {
		return nil
	}
	return resp
}

func result(req *tools.JSONRPCRequest, v interface{}) *tools.JSONRPCResponse {
	return &tools.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: v}
}

func rpcError(req *tools.JSONRPCRequest, code int, message string) *tools.JSONRPCResponse {
	var id interface{}
	if req != nil {
		id = req.ID
	}
	return &tools.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &tools.JSONRPCError{Code: code, Message: message},
	}
}

func (h *Handler) handleInitialize(req *tools.JSONRPCRequest) *tools.JSONRPCResponse {
	return result(req, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
		"serverInfo": map[string]string{
			"name":    ServerName,
			"version": ServerVersion,
		},
	})
}

func (h *Handler) handleToolsList(req *tools.JSONRPCRequest) *tools.JSONRPCResponse {
	names := make([]string, 0, len(h.tools))
	for name := range h.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	toolsList := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		tool := h.tools[name]
		toolsList = append(toolsList, map[string]interface{}{
			"name":        name,
			"description": tool.Description(),
			"inputSchema": tool.GetSchema(),
		})
	}
	return result(req, map[string]interface{}{"tools": toolsList})
}

// handleToolCall runs a tool. Tool failures are reported in-band with
// isError so the client sees the user-facing message.
func (h *Handler) handleToolCall(ctx context.Context, req *tools.JSONRPCRequest) *tools.JSONRPCResponse {
	toolName, ok := req.Params["name"].(string)
	if !ok {
		return rpcError(req, codeInvalidParams, "Invalid params: 'name' is required")
	}

	tool, exists := h.tools[toolName]
	if !exists {
		return rpcError(req, codeInvalidParams, "Tool not found: "+toolName)
	}

	args, ok := req.Params["arguments"].(map[string]interface{})
	if !ok {
		args = make(map[string]interface{})
	}

	out, err := tool.Execute(ctx, args)
	if err != nil {
		h.logger.Warn("tool failed", "tool", toolName, "error", err)
		return result(req, textContent(errors.UserMessage(err), true))
	}

	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return rpcError(req, codeInternalError, "encode result: "+err.Error())
	}
	return result(req, textContent(string(text), false))
}

func textContent(text string, isError bool) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{{"type": "text", "text": text}},
		"isError": isError,
	}
}

func (h *Handler) handleResourcesList(req *tools.JSONRPCRequest) *tools.JSONRPCResponse {
	names := make([]string, 0, len(h.resources))
	for name := range h.resources {
		names = append(names, name)
	}
	sort.Strings(names)

	resourcesList := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		resourcesList = append(resourcesList, map[string]interface{}{
			"uri":      name,
			"name":     name,
			"mimeType": "application/json",
		})
	}
	return result(req, map[string]interface{}{"resources": resourcesList})
}

func (h *Handler) handleResourceRead(ctx context.Context, req *tools.JSONRPCRequest) *tools.JSONRPCResponse {
	name, ok := req.Params["uri"].(string)
	if !ok {
		name, ok = req.Params["name"].(string)
	}
	if !ok {
		return rpcError(req, codeInvalidParams, "Invalid params: 'uri' is required")
	}

	resource, exists := h.resources[name]
	if !exists {
		return rpcError(req, codeInvalidParams, "Resource not found: "+name)
	}

	out, err := resource.Read(ctx)
	if err != nil {
		return rpcError(req, codeInternalError, "Resource read error: "+errors.UserMessage(err))
	}
	text, err := json.Marshal(out)
	if err != nil {
		return rpcError(req, codeInternalError, "encode resource: "+err.Error())
	}
	return result(req, map[string]interface{}{
		"contents": []map[string]interface{}{{
			"uri":      name,
			"mimeType": "application/json",
			"text":     string(text),
		}},
	})
}
