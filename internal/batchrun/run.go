package batchrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"clipmill/internal/command"
	"clipmill/internal/config"
	"clipmill/internal/deps"
	"clipmill/internal/ledger"
	"clipmill/internal/logging"
	"clipmill/internal/manifest"
	"clipmill/internal/metrics"
	"clipmill/internal/notifications"
	"clipmill/internal/pipeline"
	"clipmill/internal/preflight"
	"clipmill/internal/services"
	"clipmill/internal/stages"
	"clipmill/internal/workflow"
)

// Options configures batch runtime behaviour.
type Options struct {
	LogLevel    string
	Development bool
	// Logger replaces the per-run console and file logger when set.
	Logger *slog.Logger
	// Executor replaces process spawning for every external tool when set.
	Executor command.Executor
	// OnScheduler is called with the scheduler before dispatch starts.
	OnScheduler func(*workflow.Scheduler)
	// Notifier replaces the ntfy service built from config when set.
	Notifier notifications.Service
}

const notifyTimeout = 15 * time.Second

// Run executes one batch: every unit of the configured manifest that the
// ledger does not yet record as completed.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (stats workflow.RunStats, err error) {
	if cfg == nil {
		return workflow.RunStats{}, fmt.Errorf("config is required")
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return workflow.RunStats{}, services.Wrap(services.ErrConfiguration, "batch", "prepare", "", err)
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger, logPath, err := runLogger(cfg, opts)
	if err != nil {
		return workflow.RunStats{}, err
	}
	logger = logging.NewComponentLogger(logger, "batch")
	clog := logging.WithContext(ctx, logger)
	clog.Info("batch run starting",
		logging.String("log_path", logPath),
		logging.String(logging.FieldEventType, "run_started"),
	)

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg.Notifications)
	}
	defer func() {
		if err == nil {
			return
		}
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if nerr := notifier.NotifyError(notifyCtx, err, "run setup"); nerr != nil {
			clog.Warn("error notification failed", logging.Error(nerr))
		}
	}()

	if err := checkDependencies(clog, cfg); err != nil {
		return workflow.RunStats{}, err
	}
	if err := preflight.Err(preflight.RunAll(cfg)); err != nil {
		return workflow.RunStats{}, err
	}

	batch, err := LoadManifest(cfg, logger)
	if err != nil {
		return workflow.RunStats{}, err
	}

	progress, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return workflow.RunStats{}, err
	}
	defer func() {
		if cerr := progress.Close(); cerr != nil {
			clog.Warn("ledger close failed", logging.Error(cerr))
		}
	}()
	clog.Info("progress ledger opened",
		logging.String("ledger", progress.Describe()),
		logging.Int("completed", progress.Len()),
	)

	bindOpts := []stages.Option{stages.WithLogger(logger)}
	if opts.Executor != nil {
		bindOpts = append(bindOpts, stages.WithExecutor(opts.Executor))
	}
	bindings, err := stages.Build(ctx, cfg, bindOpts...)
	if err != nil {
		return workflow.RunStats{}, err
	}
	runnerOpts, err := bindings.RunnerOptions(cfg, logger)
	if err != nil {
		return workflow.RunStats{}, err
	}
	runner, err := pipeline.NewRunner(bindings.Stages, runnerOpts)
	if err != nil {
		return workflow.RunStats{}, err
	}

	recorder := metrics.New()
	scheduler, err := workflow.NewScheduler(runner, progress, workflow.Options{
		Concurrency: cfg.Workflow.Concurrency,
		Heartbeat:   time.Duration(cfg.Workflow.HeartbeatSeconds) * time.Second,
		Logger:      logger,
		Observers:   []workflow.Observer{recorder},
	})
	if err != nil {
		return workflow.RunStats{}, err
	}
	if opts.OnScheduler != nil {
		opts.OnScheduler(scheduler)
	}

	stats = scheduler.Run(ctx, batch.Units)
	if ctx.Err() != nil {
		clog.Warn("run interrupted; in-flight units were allowed to finish",
			logging.Int("not_dispatched", stats.NotDispatched),
			logging.String(logging.FieldEventType, "run_interrupted"),
		)
	}

	recorder.RecordRun(stats)
	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			logging.WarnWithContext(clog, "metrics export failed", "metrics_write_failed",
				logging.Error(err),
				logging.String("path", path),
				logging.String(logging.FieldErrorHint, "check metrics.textfile_path permissions"),
				logging.String(logging.FieldImpact, "run metrics are not exported"),
			)
		}
	}
	if stats.Attempted > 0 || stats.Stopped() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		summary := notifications.RunSummary{
			Manifest:      filepath.Base(cfg.Manifest.Path),
			Succeeded:     stats.Succeeded,
			Failed:        stats.Failed,
			NotDispatched: stats.NotDispatched,
			Elapsed:       stats.Elapsed,
		}
		if nerr := notifier.NotifyRunCompleted(notifyCtx, summary); nerr != nil {
			clog.Warn("run notification failed", logging.Error(nerr))
		}
	}
	return stats, nil
}

// LoadManifest reads the configured manifest with the configured policy.
func LoadManifest(cfg *config.Config, logger *slog.Logger) (*manifest.Batch, error) {
	path, err := cfg.ResolveManifestPath()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "resolve", "", err)
	}
	policy, err := manifest.ParsePolicy(cfg.Manifest.InvalidRecords)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "policy", "", err)
	}
	batch, err := manifest.LoadFile(path, manifest.Options{Policy: policy, Logger: logger})
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("manifest loaded",
			logging.String("path", path),
			logging.Int("units", len(batch.Units)),
			logging.Int("subitems", batch.SubItemCount()),
			logging.Int("rejected", len(batch.Rejected)),
			logging.String(logging.FieldEventType, "manifest_loaded"),
		)
	}
	return batch, nil
}

func runLogger(cfg *config.Config, opts Options) (*slog.Logger, string, error) {
	if opts.Logger != nil {
		return opts.Logger, "", nil
	}
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("clipmill-%s.log", stamp))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return nil, "", fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update clipmill.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)
	return logger, logPath, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "clipmill.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// checkDependencies logs a snapshot of every external tool and fails when a
// required one is missing.
func checkDependencies(logger *slog.Logger, cfg *config.Config) error {
	statuses := preflight.CheckSystemDeps(cfg)
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, s := range statuses {
		key := strings.ToLower(strings.ReplaceAll(s.Name, "-", "_"))
		attrs = append(attrs, logging.Bool(key+"_available", s.Available))
		if s.Path != "" {
			attrs = append(attrs, logging.String(key+"_path", s.Path))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	missing := deps.MissingRequired(statuses)
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, s := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", s.Name, s.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "batch", "dependencies",
		"missing required tools: "+strings.Join(names, ", "), nil)
}
