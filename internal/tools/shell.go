package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

const maxShellOutput = 20000

// ShellTool runs commands with bash inside the workspace.
type ShellTool struct {
	Dir     string
	Timeout time.Duration
}

func NewShellTool(ws *Workspace) *ShellTool {
	return &ShellTool{Dir: ws.Root, Timeout: 2 * time.Minute}
}

func (s *ShellTool) Name() string {
	return "shell_exec"
}

func (s *ShellTool) Description() string {
	return "Execute a shell command in the workspace and return its stdout and stderr."
}

func (s *ShellTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

type shellResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

func (s *ShellTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if args.Command == "" {
		return "", fmt.Errorf("empty command")
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", args.Command)
	cmd.Dir = s.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// A non-zero exit is a normal result the model should read, not a tool failure.
	res := shellResult{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to run command: %w", err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	res.Stdout = truncate(stdout.String(), maxShellOutput)
	res.Stderr = truncate(stderr.String(), maxShellOutput)

	out, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
