package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/listingest/internal/core"
)

func newSweepCmd(a *app) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail uploads stuck in pending or processing",
		Long: `Mark upload attempts that have not reached a terminal state within
--max-age as failed. The server does this periodically; this command runs a
single pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("max-age") {
				maxAge = a.cfg.Upload.Timeout
			}
			n := core.NewSweeper(a.backend, core.SweepConfig{MaxAge: maxAge}).SweepOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d abandoned uploads marked failed\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 5*time.Minute, "age after which an open upload is abandoned (default UPLOAD_TIMEOUT)")
	return cmd
}
