package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipmill/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var file string
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(file)
			if path == "" {
				path = filepath.Join(cfg.Paths.LogDir, "clipmill.log")
			}

			out := cmd.OutOrStdout()
			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			printRecords(out, filter.Apply(result.Lines))
			if !follow {
				return nil
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			offset := result.Offset
			for {
				result, err = logs.Tail(runCtx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: time.Second})
				printRecords(out, filter.Apply(result.Lines))
				offset = result.Offset
				if err != nil {
					if errors.Is(err, runCtx.Err()) {
						return nil
					}
					return err
				}
				if runCtx.Err() != nil {
					return nil
				}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to read before filtering")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing records as the run appends them")
	cmd.Flags().StringVar(&file, "file", "", "Log file to read (default: the current run log)")
	cmd.Flags().StringVar(&filter.GroupKey, "group", "", "Only records for this group key")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only records with this event_type")
	return cmd
}

func printRecords(out io.Writer, records []logs.Record) {
	for _, rec := range records {
		fmt.Fprintln(out, logs.Format(rec))
	}
}
