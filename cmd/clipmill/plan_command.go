package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"clipmill/internal/batchrun"
	"clipmill/internal/ledger"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the work units a run would process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			batch, err := batchrun.LoadManifest(cfg, ctx.commandLogger("plan"))
			if err != nil {
				return err
			}
			return withLedger(cmd, cfg, func(progress *ledger.Ledger) error {
				rows := make([][]string, 0, len(batch.Units))
				done := 0
				for i, unit := range batch.Units {
					state := "pending"
					if progress.IsCompleted(unit.GroupKey) {
						done++
						if pendingOnly {
							continue
						}
						state = "done"
					}
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						unit.GroupKey,
						strconv.Itoa(len(unit.SubItems)),
						state,
					})
				}

				out := cmd.OutOrStdout()
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"#", "Group", "Clips", "State"},
						rows,
						[]text.Align{text.AlignRight, text.AlignLeft, text.AlignRight, text.AlignLeft},
					))
				}
				fmt.Fprintf(out, "%d %s, %d clips: %d done, %d pending",
					len(batch.Units), plural(len(batch.Units), "unit"), batch.SubItemCount(),
					done, len(batch.Units)-done)
				if n := len(batch.Rejected); n > 0 {
					fmt.Fprintf(out, ", %d malformed %s skipped", n, plural(n, "record"))
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "List only units that still need processing")
	return cmd
}
