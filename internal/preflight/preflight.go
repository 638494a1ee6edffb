package preflight

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"clipmill/internal/config"
	"clipmill/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory checks that apply to cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Raw directory", cfg.Paths.RawDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Ledger.Backend != config.LedgerRedis {
		results = append(results, CheckDirectoryAccess("Ledger directory", filepath.Dir(cfg.Ledger.Path)))
	}
	if cfg.Upload.Backend == config.UploadLocal {
		results = append(results, CheckDirectoryAccess("Local upload directory", cfg.Upload.LocalDir))
	}
	if cfg.Metrics.TextfilePath != "" {
		results = append(results, CheckDirectoryAccess("Metrics directory", filepath.Dir(cfg.Metrics.TextfilePath)))
	}
	return results
}

// Err summarises failed results as a configuration error, or nil when every
// check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check", "", errors.New(strings.Join(failed, "; ")))
}
