package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

type MultiplyTool struct{}

func NewMultiplyTool() *MultiplyTool {
	return &MultiplyTool{}
}

func (m *MultiplyTool) Name() string {
	return "multiply"
}

func (m *MultiplyTool) Description() string {
	return "Multiply two numbers."
}

func (m *MultiplyTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number", "description": "First factor"},
			"b": map[string]any{"type": "number", "description": "Second factor"},
		},
		"required": []string{"a", "b"},
	}
}

func (m *MultiplyTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		A *float64 `json:"a"`
		B *float64 `json:"b"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if args.A == nil || args.B == nil {
		return "", fmt.Errorf("both a and b are required")
	}
	a, b := *args.A, *args.B
	return fmt.Sprintf("%s multiplied by %s is %s", num(a), num(b), num(a*b)), nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
