package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"revoice/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external binaries a dubbing run needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Defaults(cfg.Engines.Synthesis.Command))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				detail := status.Detail
				if status.Available {
					detail = "found"
				}
				rows = append(rows, []string{status.Name, status.Command, yesNo(status.Available), detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"DEPENDENCY", "COMMAND", "OK", "DETAIL"}, rows))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required binaries missing", len(missing))
			}
			return nil
		},
	}
}
