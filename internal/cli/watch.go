package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		kind  string
		owner string
		once  bool
	)

	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Ingest files dropped into a directory",
		Long: `Watch a directory and ingest every list file placed in it.

Processed files move to Uploaded/ or Failed/ inside the directory. Failed
files get a .error.txt note explaining why. With --once the directory is
scanned a single time and the command exits.

DIR defaults to WATCH_DIR.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("no directory given and WATCH_DIR is not set")
			}
			if !cmd.Flags().Changed("kind") {
				kind = a.cfg.Watch.Kind
			}
			if !cmd.Flags().Changed("owner") {
				owner = a.cfg.Watch.Owner
			}

			out := cmd.OutOrStdout()
			w, err := watch.New(watch.Config{
				Dir:         dir,
				Kind:        core.RecordKind(kind),
				OwnerID:     owner,
				Debounce:    a.cfg.Watch.Debounce,
				MaxFileSize: a.cfg.Upload.MaxFileSize,
				Timeout:     a.cfg.Upload.Timeout,
			}, a.engine(), watch.OnResult(func(o watch.Outcome) {
				name := filepath.Base(o.File)
				if o.Err != nil {
					fmt.Fprintf(out, "%s: FAILED [%s] %s\n", name, core.MapError(o.Err).Code, core.FormatUserError(o.Err))
					return
				}
				printResult(cmd, name, o.Result)
			}))
			if err != nil {
				return err
			}

			if once {
				n, err := w.ScanOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d files processed\n", n)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(out, "Watching %s for %s (Ctrl+C to stop)\n", dir, kind)
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(core.KindTask), "record kind: tasks or contacts (default WATCH_KIND)")
	cmd.Flags().StringVar(&owner, "owner", "watcher", "owner recorded on upload attempts (default WATCH_OWNER)")
	cmd.Flags().BoolVar(&once, "once", false, "scan the directory once and exit")
	return cmd
}
