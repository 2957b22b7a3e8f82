package agent

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PromptManager resolves prompts. A file named <prompt>.md in Directory
// overrides the built-in text; any other .md files form the agent persona
// that is prepended to system prompts.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// Persona concatenates the persona files in a stable order.
func (pm *PromptManager) Persona() string {
	if pm == nil || pm.Directory == "" {
		return ""
	}
	files, err := os.ReadDir(pm.Directory)
	if err != nil {
		return ""
	}

	order := map[string]int{
		"identity.md": 1,
		"soul.md":     2,
		"user.md":     3,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		if _, isPrompt := defaultPrompts[PromptName(strings.TrimSuffix(name, ".md"))]; isPrompt {
			continue
		}
		path := filepath.Join(pm.Directory, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read persona file %s: %v", path, err)
			continue
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}
	return strings.Join(contents, "\n\n---\n\n")
}

// Render returns the named prompt with {key} placeholders filled from vars.
func (pm *PromptManager) Render(name PromptName, vars map[string]string) string {
	text := pm.raw(name)
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// System returns a system prompt with the persona in front of it.
func (pm *PromptManager) System(name PromptName) string {
	text := pm.raw(name)
	if persona := pm.Persona(); persona != "" {
		return persona + "\n\n---\n\n" + text
	}
	return text
}

func (pm *PromptManager) raw(name PromptName) string {
	if pm != nil && pm.Directory != "" {
		path := filepath.Join(pm.Directory, string(name)+".md")
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return defaultPrompts[name]
}
