package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Tool represents an executable tool.
// Eino tools implement ToolInfo + InvokableRun.
type Tool interface {
	Info(ctx context.Context) (*schema.ToolInfo, error)
	InvokableRun(ctx context.Context, args string, opts ...tool.Option) (string, error)
}

// Registry manages tools by name and enforces a per-call timeout.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	callTimeout time.Duration
}

// NewRegistry creates a new registry. A non-positive timeout disables the
// per-call deadline.
func NewRegistry(callTimeout time.Duration) *Registry {
	return &Registry{
		tools:       make(map[string]Tool),
		callTimeout: callTimeout,
	}
}

// Register adds a tool to registry
func (r *Registry) Register(tool Tool) error {
	info, err := tool.Info(context.Background())
	if err != nil {
		return err
	}
	if info == nil || info.Name == "" {
		return fmt.Errorf("tool info missing name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[info.Name]; exists {
		return fmt.Errorf("tool already registered: %s", info.Name)
	}
	r.tools[info.Name] = tool
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolInfos returns tool infos for the given names, used for model binding.
// Unknown names are skipped.
func (r *Registry) GetToolInfos(ctx context.Context, names []string) ([]*schema.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		tool, ok := r.tools[name]
		if !ok {
			continue
		}
		info, err := tool.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info %s: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Execute runs a tool by name under the registry's call timeout. A timeout
// surfaces as an error from the tool, not as a registry failure.
func (r *Registry) Execute(ctx context.Context, name, args string) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	return tool.InvokableRun(ctx, args)
}
