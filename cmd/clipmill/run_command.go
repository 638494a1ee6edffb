package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"clipmill/internal/batchrun"
	"clipmill/internal/services"
	"clipmill/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var manifestPath string
	var concurrency int
	var proxy string
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every pending work unit in the manifest",
		Long: `Process every work unit of the manifest that the progress ledger does
not yet record as completed. Failed units are left out of the ledger and are
retried whole on the next run. The command exits zero once dispatch has
started, even when some units failed; the summary reports the counts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			changed := false
			if flag := cmd.Flags().Lookup("manifest"); flag.Changed {
				cfg.Manifest.Path = manifestPath
				changed = true
			}
			if flag := cmd.Flags().Lookup("concurrency"); flag.Changed {
				cfg.Workflow.Concurrency = concurrency
				changed = true
			}
			if flag := cmd.Flags().Lookup("proxy"); flag.Changed {
				cfg.Fetch.Proxy = proxy
				changed = true
			}
			if changed {
				if err := cfg.Finalize(); err != nil {
					return services.Wrap(services.ErrConfiguration, "config", "override", "", err)
				}
			}

			stats, err := batchrun.Run(cmd.Context(), cfg, batchrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
			if err != nil {
				return err
			}
			printRunSummary(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest file (overrides manifest.path)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Concurrent work units (overrides workflow.concurrency)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "Proxy URL for source fetches (overrides fetch.proxy)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level for this run (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "verbose", false, "Include source locations in log output")
	return cmd
}

func printRunSummary(out io.Writer, stats workflow.RunStats) {
	rows := [][]string{
		{"Units in manifest", strconv.Itoa(stats.Total)},
		{"Already completed", strconv.Itoa(stats.Skipped)},
		{"Attempted", strconv.Itoa(stats.Attempted)},
		{"Succeeded", strconv.Itoa(stats.Succeeded)},
		{"Failed", strconv.Itoa(stats.Failed)},
	}
	if stats.NotDispatched > 0 {
		rows = append(rows, []string{"Not dispatched", strconv.Itoa(stats.NotDispatched)})
	}
	rows = append(rows, []string{"Elapsed", stats.Elapsed.Round(time.Second).String()})
	if avg, ok := stats.AveragePerUnit(); ok {
		rows = append(rows, []string{"Average per unit", avg.Round(100 * time.Millisecond).String()})
	}
	fmt.Fprintln(out, renderTable([]string{"Run", "Value"}, rows, []text.Align{text.AlignLeft, text.AlignRight}))

	switch {
	case stats.Stopped():
		fmt.Fprintln(out, "Run stopped early; remaining units will be picked up by the next run.")
	case stats.Failed > 0:
		fmt.Fprintf(out, "%d %s failed and will be retried on the next run.\n",
			stats.Failed, plural(stats.Failed, "unit"))
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
