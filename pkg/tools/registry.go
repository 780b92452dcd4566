package tools

import (
	"fmt"
	"strings"
	"sync"

	"github.com/voxalytics/voxalytics/pkg/models"
)

// Registry is an in-memory tool catalog keyed by lower-cased name. Lookup
// order matches registration order, which matches the remote listing order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	specs map[string]Descriptor
	order []string
}

// NewRegistry constructs a registry seeded with the provided tools. Invalid
// entries are skipped silently.
func NewRegistry(tools []Tool) *Registry {
	reg := &Registry{
		tools: make(map[string]Tool),
		specs: make(map[string]Descriptor),
	}
	for _, tool := range tools {
		_ = reg.Register(tool)
	}
	return reg
}

// Register adds a tool. Duplicate names return an error.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	spec := tool.Spec()
	key := strings.ToLower(strings.TrimSpace(spec.Name))
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[key]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	r.tools[key] = tool
	r.specs[key] = spec
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the tool and its descriptor if present.
func (r *Registry) Lookup(name string) (Tool, Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(name))
	tool, ok := r.tools[key]
	if !ok {
		return nil, Descriptor{}, false
	}
	return tool, r.specs[key], true
}

// Descriptors returns a snapshot of the descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Descriptor, 0, len(r.order))
	for _, key := range r.order {
		specs = append(specs, r.specs[key])
	}
	return specs
}

// Definitions renders every descriptor into the shape offered to the model,
// in registration order.
func (r *Registry) Definitions() []models.ToolDefinition {
	specs := r.Descriptors()
	defs := make([]models.ToolDefinition, 0, len(specs))
	for _, spec := range specs {
		defs = append(defs, spec.Definition())
	}
	return defs
}

// Len reports how many tools are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
