package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	jsonFence      = "```json"
	fence          = "```"
	reasoningClose = "</think>"
	toolCallOpen   = "<tool_call>"
	toolCallClose  = "</tool_call>"
)

// ExtractPlanJSON returns the body of the first ```json fence in text, or text
// unchanged when there is none.
func ExtractPlanJSON(text string) string {
	start := strings.Index(text, jsonFence)
	if start < 0 {
		return text
	}
	body := text[start+len(jsonFence):]
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// StripReasoning drops everything up to and including the last closing
// reasoning marker.
func StripReasoning(text string) string {
	idx := strings.LastIndex(text, reasoningClose)
	if idx < 0 {
		return text
	}
	return strings.TrimSpace(text[idx+len(reasoningClose):])
}

// ParsePlan turns a raw model reply into a validated plan.
func ParsePlan(text string) (*Plan, error) {
	payload := ExtractPlanJSON(StripReasoning(text))
	var plan Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// LegacyToolCall is the inline tool call some models emit inside their text.
type LegacyToolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Arguments returns the call arguments as a JSON object string.
func (c LegacyToolCall) Arguments() string {
	if len(c.Args) == 0 || string(c.Args) == "null" {
		return "{}"
	}
	return string(c.Args)
}

// ParseLegacyToolCall looks for a <tool_call> block in text. ok is false when
// there is no block at all; err is set when a block exists but is not valid.
func ParseLegacyToolCall(text string) (call LegacyToolCall, ok bool, err error) {
	start := strings.LastIndex(text, toolCallOpen)
	if start < 0 {
		return LegacyToolCall{}, false, nil
	}
	body := text[start+len(toolCallOpen):]
	if end := strings.Index(body, toolCallClose); end >= 0 {
		body = body[:end]
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &call); err != nil {
		return LegacyToolCall{}, true, fmt.Errorf("invalid tool_call block: %w", err)
	}
	if call.Name == "" {
		return LegacyToolCall{}, true, fmt.Errorf("invalid tool_call block: missing name")
	}
	return call, true, nil
}
