package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAttemptsCmd(a *app) *cobra.Command {
	var (
		owner string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "attempts",
		Aliases: []string{"history"},
		Short:   "List upload attempts, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			attempts, err := a.backend.ListAttempts(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("failed to list attempts: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintln(out, "No uploads yet.")
				return nil
			}
			if limit > 0 && len(attempts) > limit {
				attempts = attempts[:limit]
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tFILE\tOWNER\tSTATUS\tCREATED\tERROR")
			for _, at := range attempts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					at.ID,
					at.Kind,
					at.SourceFileName,
					at.OwnerID,
					at.Status,
					formatAge(at.CreatedAt),
					at.Error,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "only show attempts by this owner (default all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows to show, 0 for all")
	return cmd
}
