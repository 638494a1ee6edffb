package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clipmill/internal/config"
	"clipmill/internal/ledger"
	"clipmill/internal/logging"
	"clipmill/internal/services"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// commandLogger returns a stderr logger for commands that do not own a run
// log, so table output on stdout stays clean.
func (c *commandContext) commandLogger(component string) *slog.Logger {
	logger, err := logging.NewFromConfig(c.config)
	if err != nil {
		return logging.NewNop()
	}
	return logging.NewComponentLogger(logger, component)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// withLedger opens the configured progress ledger for the duration of fn.
func withLedger(cmd *cobra.Command, cfg *config.Config, fn func(*ledger.Ledger) error) error {
	progress, err := ledger.Open(cmd.Context(), cfg.Ledger)
	if err != nil {
		return err
	}
	runErr := fn(progress)
	if err := progress.Close(); err != nil && runErr == nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return runErr
}
