package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace confines file tools to a single root directory.
type Workspace struct {
	Root string
}

func NewWorkspace(root string) *Workspace {
	absRoot, _ := filepath.Abs(root)
	return &Workspace{Root: absRoot}
}

// Resolve maps a relative name to an absolute path inside the workspace.
func (w *Workspace) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("file_name is required")
	}
	targetPath := filepath.Join(w.Root, name)

	rel, err := filepath.Rel(w.Root, targetPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return targetPath, nil
}

// CreateFileTool writes a new file, creating parent directories as needed.
type CreateFileTool struct {
	Workspace *Workspace
}

func NewCreateFileTool(ws *Workspace) *CreateFileTool {
	return &CreateFileTool{Workspace: ws}
}

func (f *CreateFileTool) Name() string {
	return "create_file"
}

func (f *CreateFileTool) Description() string {
	return "Create a file in the workspace with the given contents. Overwrites an existing file."
}

func (f *CreateFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_name": map[string]any{
				"type":        "string",
				"description": "Relative path of the file inside the workspace",
			},
			"file_contents": map[string]any{
				"type":        "string",
				"description": "The content to write",
			},
		},
		"required": []string{"file_name", "file_contents"},
	}
}

func (f *CreateFileTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		FileName     string `json:"file_name"`
		FileContents string `json:"file_contents"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	targetPath, err := f.Workspace.Resolve(args.FileName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(targetPath, []byte(args.FileContents), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Successfully created %s", args.FileName), nil
}

// StrReplaceTool replaces text inside an existing file.
type StrReplaceTool struct {
	Workspace *Workspace
}

func NewStrReplaceTool(ws *Workspace) *StrReplaceTool {
	return &StrReplaceTool{Workspace: ws}
}

func (f *StrReplaceTool) Name() string {
	return "str_replace"
}

func (f *StrReplaceTool) Description() string {
	return "Replace text in a workspace file. Replaces the first match unless all_occurrences is true."
}

func (f *StrReplaceTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_name": map[string]any{
				"type":        "string",
				"description": "Relative path of the file inside the workspace",
			},
			"old_str": map[string]any{
				"type":        "string",
				"description": "Text to replace",
			},
			"new_str": map[string]any{
				"type":        "string",
				"description": "Replacement text",
			},
			"all_occurrences": map[string]any{
				"type":        "boolean",
				"description": "Replace every match instead of only the first",
			},
		},
		"required": []string{"file_name", "old_str", "new_str"},
	}
}

func (f *StrReplaceTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		FileName       string `json:"file_name"`
		OldStr         string `json:"old_str"`
		NewStr         string `json:"new_str"`
		AllOccurrences bool   `json:"all_occurrences"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if args.OldStr == "" {
		return "", fmt.Errorf("old_str is required")
	}

	targetPath, err := f.Workspace.Resolve(args.FileName)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	content := string(data)
	if !strings.Contains(content, args.OldStr) {
		return fmt.Sprintf("No match for %q in %s", args.OldStr, args.FileName), nil
	}

	n := 1
	if args.AllOccurrences {
		n = -1
	}
	updated := strings.Replace(content, args.OldStr, args.NewStr, n)
	if err := os.WriteFile(targetPath, []byte(updated), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	scope := "first match"
	if args.AllOccurrences {
		scope = "all matches"
	}
	return fmt.Sprintf("Replaced %s of %q in %s", scope, args.OldStr, args.FileName), nil
}

// ReadFileTool returns the contents of a workspace file.
type ReadFileTool struct {
	Workspace *Workspace
}

func NewReadFileTool(ws *Workspace) *ReadFileTool {
	return &ReadFileTool{Workspace: ws}
}

func (f *ReadFileTool) Name() string {
	return "read_file"
}

func (f *ReadFileTool) Description() string {
	return "Read a file from the workspace."
}

func (f *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_name": map[string]any{
				"type":        "string",
				"description": "Relative path of the file inside the workspace",
			},
		},
		"required": []string{"file_name"},
	}
}

func (f *ReadFileTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		FileName string `json:"file_name"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	targetPath, err := f.Workspace.Resolve(args.FileName)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}
