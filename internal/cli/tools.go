package cli

import (
	"fmt"
	"io"

	"github.com/rahul/stepwise/internal/governance"
	"github.com/rahul/stepwise/internal/observability"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(configPath, observability.WithOutput(io.Discard))
		if err != nil {
			return err
		}
		defer a.Close()

		for _, t := range a.registry.List() {
			denied := ""
			if res, err := a.policy.Evaluate(cmd.Context(), governance.Request{Tool: t.Name()}); err == nil && res.Effect == governance.EffectDeny {
				denied = " (denied by policy)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s%s\n", t.Name(), t.Description(), denied)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
