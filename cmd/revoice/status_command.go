package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/config"
	"revoice/internal/fileutil"
	"revoice/internal/logging"
	"revoice/internal/subtitles"
	"revoice/internal/workspace"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var workdirFlag string

	cmd := &cobra.Command{
		Use:   "status [INPUT]",
		Short: "Show dubbing progress for a work directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			workdir := strings.TrimSpace(workdirFlag)
			if workdir == "" && len(args) == 1 {
				input, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				workdir = workspace.DefaultRoot(input)
			}
			if workdir == "" {
				workdir = cfg.Paths.WorkDir
			}
			if workdir == "" {
				return fmt.Errorf("provide the input video or --workdir to locate the work directory")
			}

			store, err := workspace.Open(workdir, logging.NewNop())
			if err != nil {
				if errors.Is(err, workspace.ErrLocked) {
					return fmt.Errorf("a dubbing run is active in %s; check again when it finishes", workdir)
				}
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			ledger := store.Ledger()
			fmt.Fprintf(out, "Work directory: %s\n", store.Root())
			if len(ledger) == 0 {
				fmt.Fprintln(out, "No segments recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(ledger))
			for key, record := range ledger {
				start, end, err := workspace.ParseSegmentKey(key)
				if err != nil {
					continue
				}
				clip := filepath.Base(record.Output)
				if !fileutil.FileExists(record.Output) {
					clip += " (missing)"
				}
				rows = append(rows, []string{
					key,
					fmt.Sprintf("%s - %s",
						subtitles.FormatTimestamp(float64(start)),
						subtitles.FormatTimestamp(float64(end))),
					yesNo(record.Completed),
					clip,
				})
			}
			sort.Slice(rows, func(i, j int) bool {
				si, _, _ := workspace.ParseSegmentKey(rows[i][0])
				sj, _, _ := workspace.ParseSegmentKey(rows[j][0])
				return si < sj
			})

			fmt.Fprintln(out, renderTable([]string{"SEGMENT", "WINDOW", "DONE", "CLIP"}, rows))
			fmt.Fprintf(out, "%d segment(s) recorded\n", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&workdirFlag, "workdir", "", "Work directory to inspect")
	return cmd
}
