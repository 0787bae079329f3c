package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newWorkersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workers",
		Aliases: []string{"agents"},
		Short:   "Manage the agents tasks are distributed to",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List agents in pool order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				workers, err := a.backend.ListWorkers(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list agents: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(workers) == 0 {
					fmt.Fprintln(out, "No agents. Add one with: listctl workers add NAME")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tADDED")
				for _, wk := range workers {
					fmt.Fprintf(w, "%s\t%s\t%s\n", wk.ID, wk.Name, formatAge(wk.CreatedAt))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "add NAME...",
			Short: "Add one or more agents",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, name := range args {
					name = strings.TrimSpace(name)
					if name == "" {
						return errors.New("agent name cannot be empty")
					}
					wk, err := a.backend.AddWorker(cmd.Context(), name)
					if err != nil {
						return fmt.Errorf("failed to add agent %q: %w", name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", wk.Name, wk.ID)
				}
				return nil
			},
		},
	)
	return cmd
}
