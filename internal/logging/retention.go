package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RunLogPattern matches the per-run log files written under paths.log_dir.
const RunLogPattern = "clipmill-*.log"

// PruneRunLogs deletes run logs in dir whose modification time is older than
// retentionDays, never touching active. It returns the removed paths in name
// order. retentionDays <= 0 keeps everything.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, active string) []string {
	if retentionDays <= 0 || dir == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, RunLogPattern))
	if err != nil || len(matches) == 0 {
		return nil
	}
	sort.Strings(matches)
	if active != "" {
		if abs, err := filepath.Abs(active); err == nil {
			active = abs
		}
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	var removed []string
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil && abs == active {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old run log could not be removed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "disk usage grows until the file is removed"),
			)
			continue
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 && logger != nil {
		logger.Debug("pruned old run logs",
			Int("count", len(removed)),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
