package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/listingest/internal/core"
)

func newListsCmd(a *app) *cobra.Command {
	var worker string

	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show persisted task lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				lists []core.PersistedList
				err   error
			)
			if worker != "" {
				lists, err = a.backend.ListListsByWorker(cmd.Context(), core.WorkerID(worker))
			} else {
				lists, err = a.backend.ListLists(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to list task lists: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(lists) == 0 {
				fmt.Fprintln(out, "No lists found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAGENT\tTASKS\tFILE\tUPLOAD\tCREATED")
			for _, l := range lists {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					l.ID,
					l.WorkerID,
					len(l.Tasks),
					l.SourceFileName,
					l.UploadID,
					formatAge(l.CreatedAt),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&worker, "worker", "w", "", "only show lists assigned to this agent ID")
	return cmd
}
