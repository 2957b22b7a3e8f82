package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rahul/stepwise/internal/agent"
	"github.com/rahul/stepwise/internal/observability"
	"github.com/rahul/stepwise/internal/store"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the plan and observation log of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var (
	runsLimit int
	runsChat  string
)

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")
	runsCmd.Flags().StringVar(&runsChat, "chat", "", "only list runs from this chat")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	a, err := loadApp(configPath, observability.WithOutput(io.Discard))
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.ListRuns(runsChat, runsLimit)
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(w io.Writer, runs []store.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTEPS\tREQUEST")
	for _, r := range runs {
		steps := "-"
		if r.Plan != nil {
			steps = fmt.Sprintf("%d/%d", r.Plan.Completed(), len(r.Plan.Steps))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.StartedAt.Format(time.DateTime), r.Status, steps, oneLine(r.UserMessage, 60))
	}
	tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp(configPath, observability.WithOutput(io.Discard))
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.store.GetRun(args[0])
	if err != nil {
		return err
	}
	obs, err := a.store.Observations(run.ID)
	if err != nil {
		return err
	}
	printRun(cmd.OutOrStdout(), run, obs)
	return nil
}

func printRun(w io.Writer, run *store.Run, obs []store.Observation) {
	fmt.Fprintf(w, "Run %s (%s)\nRequest: %s\n", run.ID, run.Status, run.UserMessage)
	if run.Plan != nil {
		fmt.Fprintf(w, "\nGoal: %s\n", run.Plan.Goal)
		for i, s := range run.Plan.Steps {
			mark := " "
			if s.Status == agent.StatusCompleted {
				mark = "x"
			}
			fmt.Fprintf(w, "  [%s] %d. %s\n", mark, i+1, s.Title)
		}
	}

	fmt.Fprintf(w, "\nObservations (%d):\n", len(obs))
	for _, o := range obs {
		fmt.Fprintf(w, "%3d %-6s %s\n", o.Seq, o.Role, oneLine(o.Text, 100))
		for _, tc := range o.ToolCalls {
			if tc.Result != "" {
				fmt.Fprintf(w, "           <- %s: %s\n", tc.Name, oneLine(tc.Result, 90))
			} else {
				fmt.Fprintf(w, "           -> %s %s\n", tc.Name, oneLine(tc.Arguments, 90))
			}
		}
	}

	switch {
	case run.FinalReport != "":
		fmt.Fprintf(w, "\nReport:\n%s\n", run.FinalReport)
	case run.Detail != "":
		fmt.Fprintf(w, "\nDetail: %s\n", run.Detail)
	}
}
