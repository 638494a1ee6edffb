package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipmill/internal/deps"
	"clipmill/internal/preflight"
	"clipmill/internal/services"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external tools the configured backends need",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				rows = append(rows, []string{
					s.Name,
					s.Command,
					dependencyState(s, colorize),
					yesNo(!s.Optional),
					dependencyDetail(s),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Status", "Required", "Detail"},
				rows,
				nil,
			))

			missing := deps.MissingRequired(statuses)
			if len(missing) > 0 {
				return services.Wrap(services.ErrConfiguration, "deps", "check",
					fmt.Sprintf("%d required %s missing", len(missing), plural(len(missing), "tool")), nil)
			}
			fmt.Fprintln(out, "All required tools available")
			return nil
		},
	}
}

func dependencyState(s deps.Status, colorize bool) string {
	kind := statusOK
	label := "ok"
	switch {
	case s.Available:
	case s.Optional:
		kind, label = statusWarn, "missing"
	default:
		kind, label = statusError, "missing"
	}
	return colorText(label, kind, colorize)
}

func dependencyDetail(s deps.Status) string {
	if s.Available {
		return s.Path
	}
	if s.Detail != "" {
		return s.Detail
	}
	return s.Description
}
