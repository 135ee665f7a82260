package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/rohankatakam/patchnote/internal/mcp/tools"
)

const maxMessageSize = 4 << 20

// StdioTransport handles newline-delimited JSON-RPC over a reader/writer
// pair, normally stdin and stdout
type StdioTransport struct {
	scanner *bufio.Scanner
	handler *Handler

	mu  sync.Mutex
	out io.Writer
}

// NewStdioTransport creates a new stdio transport
func NewStdioTransport(handler *Handler, in io.Reader, out io.Writer) *StdioTransport {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)
	return &StdioTransport{
		scanner: scanner,
		handler: handler,
		out:     out,
	}
}

// Start serves requests until the input closes or ctx is cancelled
func (t *StdioTransport) Start(ctx context.Context) error {
	for t.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(t.scanner.Text())
		if line == "" {
			continue
		}

		var req tools.JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			t.send(rpcError(nil, codeParseError, "Parse error"))
			continue
		}

		if resp := t.handler.Handle(ctx, &req); resp != nil {
			t.send(resp)
		}
	}
	return t.scanner.Err()
}

func (t *StdioTransport) send(resp *tools.JSONRPCResponse) {
	respJSON, err := json.Marshal(resp)
	if err != nil {
		respJSON, _ = json.Marshal(rpcError(&tools.JSONRPCRequest{ID: resp.ID}, codeInternalError, "encode response"))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.out.Write(append(respJSON, '\n'))
}
