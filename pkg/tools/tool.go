package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxalytics/voxalytics/pkg/warehouse"
)

// Tool exposes a descriptor and an invocation handler.
type Tool interface {
	Spec() Descriptor
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// InvocationError wraps the originating failure of a tool call. It never
// escapes the dispatcher uncaught; the loop sees it as an error-string
// result.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tools: invoking %s: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// WarehouseInvoker is the subset of the warehouse client the binding needs.
type WarehouseInvoker interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (warehouse.CallResult, error)
}

// warehouseTool forwards invocations to a remote warehouse tool.
type warehouseTool struct {
	client WarehouseInvoker
	spec   Descriptor
}

func (t *warehouseTool) Spec() Descriptor { return t.spec }

// Invoke calls the remote tool and returns its textual payload. JSON-only
// payloads fall back to their string representation.
func (t *warehouseTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	result, err := t.client.CallTool(ctx, t.spec.Name, args)
	if err != nil {
		return "", &InvocationError{Tool: t.spec.Name, Err: err}
	}

	output := strings.TrimSpace(result.Text())
	if output == "" {
		output = strings.TrimSpace(result.JSON())
	}
	return output, nil
}

// Bind wraps each remote tool definition as a locally callable Tool backed by
// the given client.
func Bind(client WarehouseInvoker, defs []warehouse.ToolDefinition) []Tool {
	bound := make([]Tool, 0, len(defs))
	for _, def := range defs {
		bound = append(bound, &warehouseTool{client: client, spec: DescriptorFromDefinition(def)})
	}
	return bound
}
