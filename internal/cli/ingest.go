package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/listingest/internal/core"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		kind  string
		owner string
	)

	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Ingest one or more list files",
		Long: `Ingest CSV, XLSX or XLS files as task or contact lists.

Tasks are distributed across the configured agents; contacts are stored
as-is. Each file is a separate upload attempt. Files are processed in order
and the command fails if any of them fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := core.RecordKind(kind)
			if !k.Valid() {
				return fmt.Errorf("unknown kind %q (want tasks or contacts)", kind)
			}

			engine := a.engine()
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				res, err := a.ingestFile(cmd.Context(), engine, k, owner, path)
				if err != nil {
					failed++
					msg := core.MapError(err)
					fmt.Fprintf(out, "%s: FAILED [%s] %s\n", filepath.Base(path), msg.Code, core.FormatUserError(err))
					if res != nil && res.UploadID != "" {
						fmt.Fprintf(out, "  upload: %s\n", res.UploadID)
					}
					continue
				}
				printResult(cmd, filepath.Base(path), res)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(core.KindTask), "record kind: tasks or contacts")
	cmd.Flags().StringVar(&owner, "owner", core.AnonymousOwner, "owner recorded on the upload attempt")
	return cmd
}

func (a *app) ingestFile(ctx context.Context, engine *core.Engine, kind core.RecordKind, owner, path string) (*core.IngestResult, error) {
	name := filepath.Base(path)

	format, err := core.DetectFormat(name, "")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}
	if limit := a.cfg.Upload.MaxFileSize; limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("file too large: %d bytes exceeds %d", info.Size(), limit)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if a.cfg.Upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Upload.Timeout)
		defer cancel()
	}

	return engine.Ingest(ctx, core.IngestRequest{
		Kind:     kind,
		FileName: name,
		Size:     int64(len(data)),
		Format:   format,
		Data:     data,
		OwnerID:  owner,
	})
}

func printResult(cmd *cobra.Command, name string, res *core.IngestResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ingested %d %s", name, res.RecordsProcessed, res.Kind)
	if res.Kind == core.KindTask {
		fmt.Fprintf(out, " into %d lists across %d agents", res.ListsCreated, res.WorkersAssigned)
	}
	if res.RowsDropped > 0 {
		fmt.Fprintf(out, " (%d rows dropped)", res.RowsDropped)
	}
	fmt.Fprintf(out, "\n  upload: %s\n", res.UploadID)
}
