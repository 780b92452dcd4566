package warehouse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClientListAndCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transport, server := newInMemoryPair()

	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": "mock-warehouse", "version": "1.0.0"},
		}, nil
	})
	server.handle("tools/list", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"tools": []ToolDefinition{
				{Name: "list_databases", Description: "Lists available databases"},
				{
					Name:        "read_query",
					Description: "Executes a read-only SQL query",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
				},
			},
		}, nil
	})
	server.handle("tools/call", func(id string, params json.RawMessage) (any, *rpcError) {
		var payload struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(params, &payload); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		if payload.Name != "read_query" {
			return nil, &rpcError{Code: -32001, Message: "unknown tool"}
		}
		query, _ := payload.Arguments["query"].(string)
		return CallResult{
			Content: []Content{{Type: "text", Text: fmt.Sprintf("rows for: %s", query)}},
		}, nil
	})

	go server.serve(ctx)

	client, err := NewClient(ctx, transport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	if got := client.Server().Name; got != "mock-warehouse" {
		t.Fatalf("unexpected server name %q", got)
	}

	defs, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "list_databases" || defs[1].Name != "read_query" {
		t.Fatalf("unexpected tools: %#v", defs)
	}

	result, err := client.CallTool(ctx, "read_query", map[string]any{"query": "SELECT 1"})
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if got := result.Text(); got != "rows for: SELECT 1" {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestClientListToolsPagination(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transport, server := newInMemoryPair()

	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": "mock", "version": "1"},
		}, nil
	})

	pages := map[string]map[string]any{
		"": {
			"tools":      []ToolDefinition{{Name: "list_schemas"}},
			"nextCursor": "page-2",
		},
		"page-2": {
			"tools": []ToolDefinition{{Name: "describe_table"}},
		},
	}
	server.handle("tools/list", func(id string, params json.RawMessage) (any, *rpcError) {
		var payload struct {
			Cursor string `json:"cursor"`
		}
		_ = json.Unmarshal(params, &payload)
		page, ok := pages[payload.Cursor]
		if !ok {
			return nil, &rpcError{Code: -32001, Message: "bad cursor"}
		}
		return page, nil
	})

	go server.serve(ctx)

	client, err := NewClient(ctx, transport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	defs, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "list_schemas" || defs[1].Name != "describe_table" {
		t.Fatalf("unexpected tools: %#v", defs)
	}
}

func TestClientCallToolError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transport, server := newInMemoryPair()

	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": "mock", "version": "1"},
		}, nil
	})
	server.handle("tools/call", func(id string, params json.RawMessage) (any, *rpcError) {
		return CallResult{
			IsError: true,
			Content: []Content{{Type: "text", Text: "syntax error near FROM"}},
		}, nil
	})

	go server.serve(ctx)

	client, err := NewClient(ctx, transport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	_, err = client.CallTool(ctx, "read_query", map[string]any{"query": "SELEC"})
	if err == nil || !strings.Contains(err.Error(), "syntax error") {
		t.Fatalf("expected tool failure error, got %v", err)
	}
}

func TestClientHandshakeFailureIsConnectionError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transport, server := newInMemoryPair()
	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "server unavailable"}
	})

	go server.serve(ctx)

	_, err := NewClient(ctx, transport, Options{})
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %v", err)
	}
}

func TestClientcloseIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transport, server := newInMemoryPair()
	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": "mock", "version": "1"},
		}, nil
	})

	go server.serve(ctx)

	client, err := NewClient(ctx, transport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if _, err := client.ListTools(ctx); err == nil {
		t.Fatalf("expected error listing tools on closed client")
	}
}

// ----------------------------------------------------------------------------
// Helpers

type inMemoryServer struct {
	reader   *bufio.Reader
	writer   io.Writer
	handlers map[string]func(id string, params json.RawMessage) (any, *rpcError)
	mu       sync.RWMutex
}

func newInMemoryPair() (Transport, *inMemoryServer) {
	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	transport := &stdioTransport{
		reader:       bufio.NewReader(clientRead),
		writer:       clientWrite,
		stdinCloser:  clientWrite,
		stdoutCloser: clientRead,
	}

	server := &inMemoryServer{
		reader:   bufio.NewReader(serverRead),
		writer:   serverWrite,
		handlers: make(map[string]func(id string, params json.RawMessage) (any, *rpcError)),
	}

	return transport, server
}

func (s *inMemoryServer) handle(method string, fn func(id string, params json.RawMessage) (any, *rpcError)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

func (s *inMemoryServer) serve(ctx context.Context) {
	for {
		payload, err := readFrame(s.reader)
		if err != nil {
			return
		}

		var req request
		if err := json.Unmarshal(payload, &req); err != nil {
			_ = writeFrame(s.writer, responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Error: &rpcError{Code: -32700, Message: err.Error()}})
			continue
		}

		s.mu.RLock()
		handler := s.handlers[req.Method]
		s.mu.RUnlock()

		if handler == nil {
			_ = writeFrame(s.writer, responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Error: &rpcError{Code: -32601, Message: "method not found"}})
			continue
		}

		result, rpcErr := handler(req.ID, mustRaw(req.Params))
		if rpcErr != nil {
			_ = writeFrame(s.writer, responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Error: rpcErr})
			continue
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			_ = writeFrame(s.writer, responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Error: &rpcError{Code: -32603, Message: err.Error()}})
			continue
		}

		_ = writeFrame(s.writer, responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Result: encoded})
	}
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			value := strings.TrimSpace(line[len("content-length:"):])
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, err
			}
			length = n
		}
	}
	if length < 0 {
		return nil, errors.New("missing Content-Length header")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, v responseEnvelope) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func mustRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, _ := json.Marshal(v)
	return data
}
