package tools

import (
	"fmt"
	"strings"

	"github.com/rohankatakam/patchnote/internal/github"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      interface{}            `json:"id,omitempty"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// repoSchema is the shared "repo" argument
var repoSchema = map[string]interface{}{
	"type":        "string",
	"description": "Repository as owner/repo. Defaults to the server's repository.",
}

func objectSchema(required []string, props map[string]interface{}) map[string]interface{} {
	props["repo"] = repoSchema
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RepoArgs resolves the "repo" argument, falling back to def
func RepoArgs(args map[string]interface{}, def string) (owner, repo string, err error) {
	ref, _ := args["repo"].(string)
	if strings.TrimSpace(ref) == "" {
		ref = def
	}
	if ref == "" {
		return "", "", fmt.Errorf("repo is required")
	}
	return github.ParseRepoRef(ref)
}

// stringArg returns a required string argument
func stringArg(args map[string]interface{}, name string) (string, error) {
	s, ok := args[name].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return strings.TrimSpace(s), nil
}

// intArg accepts JSON numbers, which decode as float64
func intArg(args map[string]interface{}, name string) (int, error) {
	switch v := args[name].(type) {
	case float64:
		if v != float64(int(v)) || v <= 0 {
			return 0, fmt.Errorf("%s must be a positive integer", name)
		}
		return int(v), nil
	case int:
		if v <= 0 {
			return 0, fmt.Errorf("%s must be a positive integer", name)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%s is required", name)
	}
}
