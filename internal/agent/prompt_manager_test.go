package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptManagerPersona(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"identity.md":     "Identity Content",
		"soul.md":         "Soul Content",
		"capabilities.md": "Capabilities Content",
		"user.md":         "User Content",
		"report.md":       "Custom report prompt",
		"notes.txt":       "ignored",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644))
	}

	pm := NewPromptManager(tempDir)
	persona := pm.Persona()

	for _, part := range []string{"Identity Content", "Soul Content", "User Content", "Capabilities Content"} {
		assert.Contains(t, persona, part)
	}
	assert.NotContains(t, persona, "Custom report prompt", "prompt overrides are not persona")
	assert.NotContains(t, persona, "ignored")

	// identity, soul and user come first, the rest by name.
	assert.Less(t, strings.Index(persona, "Identity Content"), strings.Index(persona, "Soul Content"))
	assert.Less(t, strings.Index(persona, "Soul Content"), strings.Index(persona, "User Content"))
	assert.Less(t, strings.Index(persona, "User Content"), strings.Index(persona, "Capabilities Content"))

	assert.Equal(t, "Custom report prompt", pm.Render(PromptReport, nil))

	system := pm.System(PromptExecuteSystem)
	assert.True(t, strings.HasPrefix(system, "Identity Content"))
	assert.True(t, strings.HasSuffix(system, defaultPrompts[PromptExecuteSystem]))
}

func TestPromptManagerRender(t *testing.T) {
	pm := NewPromptManager("")
	out := pm.Render(PromptExecuteStep, map[string]string{
		"user_message": "make tea",
		"step":         "boil water",
	})
	assert.Contains(t, out, "make tea")
	assert.Contains(t, out, "boil water")
	assert.NotContains(t, out, "{step}")

	// Values are inserted verbatim, even when they look like placeholders.
	out = pm.Render(PromptPlanFix, map[string]string{"error": "bad {step}"})
	assert.Contains(t, out, "bad {step}")
}

func TestPromptManagerDefaults(t *testing.T) {
	var pm *PromptManager
	assert.Equal(t, defaultPrompts[PromptReport], pm.Render(PromptReport, nil))
	assert.Equal(t, defaultPrompts[PromptPlannerSystem], pm.System(PromptPlannerSystem))
	assert.Empty(t, NewPromptManager(filepath.Join(t.TempDir(), "missing")).Persona())

	for name, text := range defaultPrompts {
		assert.NotEmpty(t, text, name)
	}
}
