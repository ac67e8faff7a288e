// Package mcp serves the local activity journal to MCP clients over a
// newline-delimited JSON-RPC 2.0 stdio transport.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/blackwell-systems/worktrack/internal/store"
)

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Journal is the read side of the local database the tools query.
type Journal interface {
	ListSummaries(ctx context.Context, since time.Time, limit int) ([]store.SummaryRow, error)
	ListSessions(ctx context.Context, limit int) ([]store.SessionRow, error)
}

// Server is an MCP stdio server. Calls are dispatched to registered tools.
type Server struct {
	tools   []toolDef
	journal Journal
	version string
	now     func() time.Time
}

type toolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     toolHandler
}

type toolHandler func(ctx context.Context, args json.RawMessage) (any, error)

type request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// toolsCallResult wraps a tool result as MCP text content. Tool failures are
// reported in-band with IsError rather than as JSON-RPC errors.
type toolsCallResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolListEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// NewServer constructs a Server whose tools read from journal. version is
// reported in the initialize handshake.
func NewServer(journal Journal, version string) *Server {
	s := &Server{journal: journal, version: version, now: time.Now}
	addTools(s)
	return s
}

func (s *Server) registerTool(def toolDef) {
	s.tools = append(s.tools, def)
}

func (s *Server) lookup(name string) (toolDef, bool) {
	for _, t := range s.tools {
		if t.Name == name {
			return t, true
		}
	}
	return toolDef{}, false
}

// Run reads one request per line from r and writes one response per line to
// w until ctx is cancelled or r reaches EOF, both of which return nil. Read
// and write failures are returned.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if line == "" {
				continue
			}
			if err := s.handleLine(ctx, line, bw); err != nil {
				return err
			}
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line string, bw *bufio.Writer) error {
	var req request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return writeResponse(bw, response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
	}
	// Notifications carry no id and get no response.
	if req.ID == nil {
		return nil
	}

	resp := response{JSONRPC: "2.0", ID: req.ID}
	resp.Result, resp.Error = s.dispatch(ctx, req)
	return writeResponse(bw, resp)
}

func (s *Server) dispatch(ctx context.Context, req request) (any, *rpcError) {
	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "worktrack", "version": s.version},
		}, nil

	case "ping":
		return map[string]any{}, nil

	case "tools/list":
		entries := make([]toolListEntry, 0, len(s.tools))
		for _, t := range s.tools {
			entries = append(entries, toolListEntry{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		return map[string]any{"tools": entries}, nil

	case "tools/call":
		var params toolsCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: "Invalid params"}
		}
		return s.callTool(ctx, params), nil

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}
}

func (s *Server) callTool(ctx context.Context, params toolsCallParams) toolsCallResult {
	tool, ok := s.lookup(params.Name)
	if !ok {
		return textResult(fmt.Sprintf("unknown tool: %s", params.Name), true)
	}
	args := params.Arguments
	if args == nil {
		args = json.RawMessage(`{}`)
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		return textResult(err.Error(), true)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return textResult(err.Error(), true)
	}
	return textResult(string(data), false)
}

func textResult(text string, isError bool) toolsCallResult {
	return toolsCallResult{Content: []mcpContent{{Type: "text", Text: text}}, IsError: isError}
}

// writeResponse writes resp as a single line and flushes.
func writeResponse(bw *bufio.Writer, resp response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := bw.Write(append(data, '\n')); err != nil {
		return err
	}
	return bw.Flush()
}
