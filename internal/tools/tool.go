package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ErrToolNotFound is returned by Lookup for names that are not registered.
var ErrToolNotFound = errors.New("tool not found")

// Tool defines the interface for all agent capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// Registry manages the set of available tools. It is read-mostly and safe
// for use by concurrent runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Lookup returns the named tool or an error wrapping ErrToolNotFound.
func (r *Registry) Lookup(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Catalog describes every tool for a planning prompt.
func (r *Registry) Catalog() string {
	var sb strings.Builder
	for _, t := range r.List() {
		params, _ := json.Marshal(t.Parameters())
		fmt.Fprintf(&sb, "- %s: %s\n  parameters: %s\n", t.Name(), t.Description(), params)
	}
	if sb.Len() == 0 {
		return "No tools available."
	}
	return strings.TrimRight(sb.String(), "\n")
}

// LLMTools converts the registry into function definitions for llms.WithTools.
func (r *Registry) LLMTools() []llms.Tool {
	var out []llms.Tool
	for _, t := range r.List() {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

type chatIDKey struct{}

// WithChatID attaches the originating chat to ctx for tools that reply or schedule.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

// ChatIDFrom returns the chat attached by WithChatID.
func ChatIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(chatIDKey{}).(string)
	return id, ok && id != ""
}
