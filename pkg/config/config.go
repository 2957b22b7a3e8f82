package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rahul/stepwise/internal/governance"
	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultName            = "stepwise"
	DefaultWorkspace       = "./workspace"
	DefaultMemoryPath      = "stepwise.db"
	DefaultRecursionLimit  = 100
	DefaultMaxPlanAttempts = 5
	DefaultMaxToolRounds   = 20
	DefaultPromptsDir      = "./prompts"
	DefaultLLMLog          = "logs/llm.jsonl"
)

// providerOrder decides which enabled provider is the default.
var providerOrder = []string{"openai", "openrouter", "anthropic", "ollama"}

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app"`
	Agent     AgentConfig               `json:"agent" yaml:"agent"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory"`
	Policy    PolicyConfig              `json:"policy" yaml:"policy"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name"`
	Workspace string `json:"workspace" yaml:"workspace"`
	LLMLog    string `json:"llm_log" yaml:"llm_log"`
}

type AgentConfig struct {
	RecursionLimit  int      `json:"recursion_limit" yaml:"recursion_limit"`
	MaxPlanAttempts int      `json:"max_plan_attempts" yaml:"max_plan_attempts"`
	MaxToolRounds   int      `json:"max_tool_rounds" yaml:"max_tool_rounds"`
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	PromptsDir      string   `json:"prompts_dir" yaml:"prompts_dir"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	// Channel is the chat that send_message targets when a run has none.
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

type ProviderConfig struct {
	APIKey            string  `json:"api_key" yaml:"api_key"`
	Model             string  `json:"model" yaml:"model"`
	BaseURL           string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	RequestsPerMinute float64 `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

type PolicyConfig struct {
	DeniedTools    []string `json:"denied_tools" yaml:"denied_tools"`
	DeniedPatterns []string `json:"denied_patterns" yaml:"denied_patterns"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		App: AppConfig{
			Name:      DefaultName,
			Workspace: DefaultWorkspace,
			LLMLog:    DefaultLLMLog,
		},
		Agent: AgentConfig{
			RecursionLimit:  DefaultRecursionLimit,
			MaxPlanAttempts: DefaultMaxPlanAttempts,
			MaxToolRounds:   DefaultMaxToolRounds,
			PromptsDir:      DefaultPromptsDir,
		},
		Memory: MemoryConfig{Type: "sqlite", Path: DefaultMemoryPath},
		Policy: PolicyConfig{DeniedPatterns: append([]string(nil), governance.DefaultDeniedPatterns...)},
	}
}

// LoadConfig reads a JSON or YAML config file, chosen by extension, on top
// of DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if cfg.App.Workspace == "" {
		return ValidationError{Field: "app.workspace", Message: "required field is empty"}
	}
	if cfg.Agent.RecursionLimit <= 0 {
		return ValidationError{Field: "agent.recursion_limit", Message: "must be positive"}
	}
	if cfg.Agent.MaxPlanAttempts <= 0 {
		return ValidationError{Field: "agent.max_plan_attempts", Message: "must be positive"}
	}
	if cfg.Agent.MaxToolRounds <= 0 {
		return ValidationError{Field: "agent.max_tool_rounds", Message: "must be positive"}
	}
	if t := cfg.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		return ValidationError{Field: "agent.temperature", Message: "must be between 0 and 2"}
	}

	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		if p.Model == "" {
			return ValidationError{Field: "providers." + name + ".model", Message: "required field is empty"}
		}
		if p.RequestsPerMinute < 0 {
			return ValidationError{Field: "providers." + name + ".requests_per_minute", Message: "must not be negative"}
		}
	}
	for name, g := range cfg.Gateways {
		if g.Enabled && g.Token == "" {
			return ValidationError{Field: "gateways." + name + ".token", Message: "required when enabled"}
		}
	}
	for i, p := range cfg.Policy.DeniedPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return ValidationError{Field: fmt.Sprintf("policy.denied_patterns[%d]", i), Message: err.Error()}
		}
	}
	return nil
}

// GetDefaultProvider returns the first enabled provider. Known providers are
// tried in a fixed order, then any others by name.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for _, name := range providerOrder {
		if p, ok := c.Providers[name]; ok && p.Enabled {
			return name, p
		}
	}
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// Gateway returns the named gateway config if it is enabled.
func (c *Config) Gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled {
		return g, true
	}
	return GatewayConfig{}, false
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	return c.Gateway("telegram")
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	return c.Gateway("discord")
}
