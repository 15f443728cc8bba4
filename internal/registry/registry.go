package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"
)

// ToolProvider resolves MCP tool definitions.
type ToolProvider interface {
	Tools(context.Context) ([]mcp.Tool, error)
}

var _ ToolProvider = (*Registry)(nil)

// bytesPerToken approximates how much JSON one model token carries.
const bytesPerToken = 4

// Registry maintains the report tool definitions for discovery.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]mcp.Tool
}

// New constructs an empty Registry ready for tool population.
func New() *Registry {
	return &Registry{
		tools: map[string]mcp.Tool{},
	}
}

// Register stores a tool definition for discovery.
func (r *Registry) Register(tool mcp.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = tool
}

// Get returns a tool by name when present.
func (r *Registry) Get(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns a stable-sorted list of registered tool definitions.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools, nil
}

// ModelContextSize exposes the model's context window in tokens.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}

// PayloadBudget returns the response size, in bytes, that keeps one tool
// result within a quarter of the model's context window, capped at ceiling.
func (r *Registry) PayloadBudget(modelName string, ceiling int) int {
	budget := r.ModelContextSize(modelName) * bytesPerToken / 4
	if ceiling > 0 && (budget <= 0 || budget > ceiling) {
		return ceiling
	}
	return budget
}
