package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/rahul/stepwise/internal/agent"
	"github.com/rahul/stepwise/internal/governance"
	"github.com/rahul/stepwise/internal/llm"
	"github.com/rahul/stepwise/internal/observability"
	"github.com/rahul/stepwise/internal/store"
	"github.com/rahul/stepwise/internal/tools"
	"github.com/rahul/stepwise/pkg/config"
	"github.com/tmc/langchaingo/llms"
)

// app holds everything a command needs, built from one config file.
type app struct {
	cfg      *config.Config
	store    *store.HistoryStore
	registry *tools.Registry
	browser  *tools.BrowserTool
	message  *tools.MessageTool
	policy   *governance.DefaultPolicyEngine
	prompts  *agent.PromptManager
	logger   *observability.Logger
	provider string
}

func loadApp(path string, opts ...observability.LoggerOption) (*app, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.App.Workspace, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	history, err := store.NewHistoryStore(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	policy, err := governance.NewPolicyEngine(cfg.Policy.DeniedTools, cfg.Policy.DeniedPatterns)
	if err != nil {
		history.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		store:   history,
		policy:  policy,
		prompts: agent.NewPromptManager(cfg.Agent.PromptsDir),
		logger:  observability.NewLogger(append([]observability.LoggerOption{observability.WithLLMLog(cfg.App.LLMLog)}, opts...)...),
	}
	a.registerTools()
	return a, nil
}

func (a *app) registerTools() {
	ws := tools.NewWorkspace(a.cfg.App.Workspace)
	a.registry = tools.NewRegistry()
	a.registry.Register(tools.NewCreateFileTool(ws))
	a.registry.Register(tools.NewStrReplaceTool(ws))
	a.registry.Register(tools.NewReadFileTool(ws))
	a.registry.Register(tools.NewShellTool(ws))
	a.registry.Register(tools.NewMultiplyTool())
	a.registry.Register(tools.NewCronTool(a.store))
	a.registry.Register(tools.NewScraperTool())

	// The sender is attached once gateways are running.
	a.message = tools.NewMessageTool(nil, "")
	a.registry.Register(a.message)

	if search, err := tools.NewSearchTool(5); err != nil {
		log.Printf("Warning: failed to initialize search tool: %v", err)
	} else {
		a.registry.Register(search)
	}

	a.browser = tools.NewBrowserTool()
	a.registry.Register(a.browser)
}

// runner wires the agent around model.
func (a *app) runner(model llms.Model) *agent.Runner {
	var opts []llms.CallOption
	if t := a.cfg.Agent.Temperature; t != nil {
		opts = append(opts, llms.WithTemperature(*t))
	}

	planner := agent.NewPlanner(model, a.prompts, a.logger)
	planner.MaxAttempts = a.cfg.Agent.MaxPlanAttempts
	planner.Options = opts

	executor := agent.NewExecutor(model, a.registry, a.prompts, a.policy, a.logger)
	executor.MaxToolRounds = a.cfg.Agent.MaxToolRounds
	executor.Options = opts
	executor.InlineTools = !llm.NativeToolCalls(a.provider)

	reporter := agent.NewReporter(model, a.prompts, a.logger)
	reporter.Options = opts

	return &agent.Runner{
		Planner:        planner,
		Executor:       executor,
		Reporter:       reporter,
		Registry:       a.registry,
		Recorder:       a.store,
		History:        a.store,
		Logger:         a.logger,
		RecursionLimit: a.cfg.Agent.RecursionLimit,
	}
}

func (a *app) model() (llms.Model, error) {
	model, name, err := llm.FromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("Using provider %s", name)
	a.provider = name
	return model, nil
}

func (a *app) Close() {
	a.browser.Close()
	a.store.Close()
}
