package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rahul/stepwise/internal/agent"
	"github.com/rahul/stepwise/internal/observability"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Carry out one request and print the final report",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

var (
	runRecursionLimit int
	runChatID         string
	runQuiet          bool
)

func init() {
	runCmd.Flags().IntVar(&runRecursionLimit, "recursion-limit", 0, "maximum state transitions for the run (0 uses the config value)")
	runCmd.Flags().StringVar(&runChatID, "chat", "", "chat id to record the run under")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print progress events")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	// Structured events go to stderr so stdout carries only the report.
	a, err := loadApp(configPath, observability.WithOutput(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer a.Close()

	model, err := a.model()
	if err != nil {
		return err
	}
	runner := a.runner(model)
	if !runQuiet {
		runner.OnEvent = printEvent(cmd.ErrOrStderr())
	}

	request := strings.Join(args, " ")
	run := agent.NewRunState(runChatID, request)
	report, err := runner.Execute(cmd.Context(), run, runRecursionLimit)
	if err != nil {
		return fmt.Errorf("run %s: %w", run.ID, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), report)
	return nil
}

// printEvent renders executor progress for a terminal.
func printEvent(w io.Writer) func(*agent.RunState, agent.Event) {
	return func(run *agent.RunState, ev agent.Event) {
		switch ev.Kind {
		case agent.EventToolCall:
			fmt.Fprintf(w, "[step %d] -> %s %s\n", ev.StepIndex+1, ev.Tool, ev.Arguments)
		case agent.EventToolResult:
			status := "ok"
			if ev.Failed {
				status = "failed"
			}
			fmt.Fprintf(w, "[step %d] <- %s (%s) %s\n", ev.StepIndex+1, ev.Tool, status, oneLine(ev.Content, 120))
		case agent.EventAnswer:
			fmt.Fprintf(w, "[step %d] done: %s\n", ev.StepIndex+1, oneLine(ev.Content, 120))
		}
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
