// Package tools is the inventory of capabilities the language model can
// invoke during a conversation. Tools describe themselves with a JSON
// schema for prompt injection and report results that may patch the
// call's accumulated search criteria.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/conversation"
	"github.com/estateline/estateline/pkg/trace"
)

// Tool is one callable capability exposed to the language model.
type Tool interface {
	// Name is the identifier the model calls the tool by.
	Name() string

	// Description tells the model what the tool is for.
	Description() string

	// Parameters is the JSON schema for the tool's arguments.
	Parameters() map[string]any

	// Execute performs the tool logic using the decoded argument map.
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Result is the outcome of a tool execution.
type Result struct {
	// Content goes back to the model as the tool-result message.
	Content string

	// IsError marks the content as a failure report.
	IsError bool

	// Criteria, when set, is merged into the conversation's accumulated
	// search criteria.
	Criteria *conversation.SearchCriteria
}

// Registry is the central inventory of tools available to the agent.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool to the registry, replacing any previous tool
// with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns the registered tools sorted by name, so the schema the
// model sees is stable between turns.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		all = append(all, tool)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return all
}

// Dispatch executes the named tool and always produces a result the
// generation loop can feed back to the model: unknown tools, execution
// errors, and panics all come back as error-bearing results instead of
// propagating.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (result *Result) {
	ctx, span := trace.InstrumentToolExecution(ctx, name)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				zap.String("tool", name), zap.Any("panic", rec))
			result = &Result{
				Content: fmt.Sprintf("tool %s failed unexpectedly", name),
				IsError: true,
			}
		}
		if result != nil && result.IsError {
			span.SetAttributes(attribute.Bool(trace.AttrToolError, true))
		}
	}()

	tool, ok := r.Get(name)
	if !ok {
		r.logger.Warn("model requested unknown tool", zap.String("tool", name))
		return &Result{
			Content: fmt.Sprintf("unknown tool: %s", name),
			IsError: true,
		}
	}

	res, err := tool.Execute(ctx, args)
	if err != nil {
		r.logger.Warn("tool execution failed",
			zap.String("tool", name), zap.Error(err))
		return &Result{Content: err.Error(), IsError: true}
	}
	if res == nil {
		return &Result{Content: "", IsError: false}
	}
	return res
}
