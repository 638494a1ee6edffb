package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"clipmill/internal/batchrun"
	"clipmill/internal/ledger"
	"clipmill/internal/stages"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect and repair the progress ledger",
	}

	progressCmd.AddCommand(newProgressListCommand(ctx))
	progressCmd.AddCommand(newProgressMarkCommand(ctx))
	progressCmd.AddCommand(newProgressRebuildCommand(ctx))

	return progressCmd
}

func newProgressListCommand(ctx *commandContext) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List completed work units",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withLedger(cmd, cfg, func(progress *ledger.Ledger) error {
				out := cmd.OutOrStdout()
				keys := progress.Completed()
				if plain {
					for _, key := range keys {
						fmt.Fprintln(out, key)
					}
					return nil
				}
				if len(keys) == 0 {
					fmt.Fprintf(out, "No completed units in %s\n", progress.Describe())
					return nil
				}
				rows := make([][]string, 0, len(keys))
				for i, key := range keys {
					rows = append(rows, []string{strconv.Itoa(i + 1), key})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Group"}, rows, []text.Align{text.AlignRight, text.AlignLeft}))
				fmt.Fprintf(out, "%d completed in %s\n", len(keys), progress.Describe())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print one group key per line")
	return cmd
}

func newProgressMarkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark KEY [KEY...]",
		Short: "Record work units as completed without processing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withLedger(cmd, cfg, func(progress *ledger.Ledger) error {
				out := cmd.OutOrStdout()
				for _, key := range args {
					key = strings.TrimSpace(key)
					if progress.IsCompleted(key) {
						fmt.Fprintf(out, "%s already completed\n", key)
						continue
					}
					if err := progress.MarkCompleted(cmd.Context(), key); err != nil {
						return err
					}
					fmt.Fprintf(out, "%s marked completed\n", key)
				}
				return nil
			})
		},
	}
}

func newProgressRebuildCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rewrite the ledger from the clips present at the upload destination",
		Long: `List the configured upload destination and rewrite the ledger with every
manifest unit whose clips are all present there. Units with any clip missing
are left pending. Requires an upload backend other than "none".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.commandLogger("progress")
			batch, err := batchrun.LoadManifest(cfg, logger)
			if err != nil {
				return err
			}
			lister, err := stages.NewLister(cmd.Context(), cfg, stages.WithLogger(logger))
			if err != nil {
				return err
			}
			present, err := lister.List(cmd.Context())
			if err != nil {
				return err
			}
			keys := stages.CompletedUnits(batch.Units, present)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s holds %d %s; %d of %d units complete\n",
				lister.Destination(), len(present), plural(len(present), "file"), len(keys), len(batch.Units))
			if dryRun {
				for _, key := range keys {
					fmt.Fprintln(out, key)
				}
				return nil
			}
			return withLedger(cmd, cfg, func(progress *ledger.Ledger) error {
				before := progress.Len()
				if err := progress.Replace(cmd.Context(), keys); err != nil {
					return err
				}
				fmt.Fprintf(out, "Ledger %s rebuilt: %d entries (was %d)\n", progress.Describe(), progress.Len(), before)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the completed keys without writing the ledger")
	return cmd
}
