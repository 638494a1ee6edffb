package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"clipmill/internal/logging"
	"clipmill/internal/manifest"
	"clipmill/internal/pipeline"
	"clipmill/internal/services"
)

// UnitRunner runs one unit's whole pipeline.
type UnitRunner interface {
	Run(ctx context.Context, unit manifest.WorkUnit) pipeline.UnitResult
}

// Ledger is the completion record consulted before dispatch and updated
// after each completed unit.
type Ledger interface {
	IsCompleted(key string) bool
	MarkCompleted(ctx context.Context, key string) error
}

// Options configures a Scheduler.
type Options struct {
	Concurrency int
	// Heartbeat is the interval for in-flight progress logs; 0 disables them.
	Heartbeat time.Duration
	Logger    *slog.Logger
	Observers []Observer
}

// Scheduler dispatches work units to a fixed worker pool.
type Scheduler struct {
	runner      UnitRunner
	ledger      Ledger
	concurrency int
	heartbeat   time.Duration
	logger      *slog.Logger
	observer    observers

	stopOnce sync.Once
	stop     chan struct{}
	inFlight atomic.Int64
}

// NewScheduler validates its dependencies and returns a Scheduler.
func NewScheduler(runner UnitRunner, ledger Ledger, opts Options) (*Scheduler, error) {
	if runner == nil || ledger == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "runner and ledger are required", nil)
	}
	if opts.Concurrency < 1 {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", fmt.Sprintf("concurrency must be at least 1, got %d", opts.Concurrency), nil)
	}
	obs := make(observers, 0, len(opts.Observers))
	for _, o := range opts.Observers {
		if o != nil {
			obs = append(obs, o)
		}
	}
	return &Scheduler{
		runner:      runner,
		ledger:      ledger,
		concurrency: opts.Concurrency,
		heartbeat:   opts.Heartbeat,
		logger:      logging.NewComponentLogger(opts.Logger, "workflow"),
		observer:    obs,
		stop:        make(chan struct{}),
	}, nil
}

// Stop halts dispatch. Units already running finish normally. Stop is safe
// to call more than once and from any goroutine.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// InFlight reports how many units are currently running.
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

func (s *Scheduler) stopped(ctx context.Context) bool {
	select {
	case <-s.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Run processes every unit not yet in the ledger and blocks until all
// dispatched units are collected.
func (s *Scheduler) Run(ctx context.Context, units []manifest.WorkUnit) RunStats {
	started := time.Now()
	logger := logging.WithContext(ctx, s.logger)
	stats := RunStats{Total: len(units)}

	pending := make([]manifest.WorkUnit, 0, len(units))
	for _, unit := range units {
		if s.ledger.IsCompleted(unit.GroupKey) {
			stats.Skipped++
			continue
		}
		pending = append(pending, unit)
	}
	stats.Pending = len(pending)
	logger.Info("run planned",
		logging.Int("total", stats.Total),
		logging.Int("skipped", stats.Skipped),
		logging.Int("pending", stats.Pending),
		logging.Int("concurrency", s.concurrency),
		logging.String(logging.FieldEventType, "run_planned"),
	)
	if len(pending) == 0 {
		stats.Elapsed = time.Since(started)
		logger.Info("nothing to process; every unit is already completed",
			logging.String(logging.FieldEventType, "run_noop"),
		)
		return stats
	}

	workers := min(s.concurrency, len(pending))
	jobs := make(chan manifest.WorkUnit)
	results := make(chan Outcome, len(pending))

	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for unit := range jobs {
				results <- s.runUnit(ctx, worker, unit)
			}
		}(i)
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for _, unit := range pending {
			if s.stopped(ctx) {
				return
			}
			select {
			case jobs <- unit:
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var done atomic.Int64
	stopHeartbeat := s.startHeartbeat(logger, &done, len(pending))
	for outcome := range results {
		stats.Attempted++
		if outcome.Succeeded() {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		done.Store(int64(stats.Attempted))
		s.logProgress(logger, outcome, stats.Attempted, len(pending))
		s.observer.UnitFinished(outcome, stats.Attempted, len(pending))
	}
	stopHeartbeat()

	stats.NotDispatched = stats.Pending - stats.Attempted
	stats.Elapsed = time.Since(started)
	s.logSummary(logger, stats)
	return stats
}

func (s *Scheduler) runUnit(ctx context.Context, worker int, unit manifest.WorkUnit) (outcome Outcome) {
	// In-flight units finish even when the run is stopped.
	ctx = context.WithoutCancel(ctx)
	ctx = services.WithWorker(ctx, worker)
	ctx = services.WithGroupKey(ctx, unit.GroupKey)
	ctx = services.WithRequestID(ctx, uuid.NewString())

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	s.observer.UnitStarted(worker, unit)

	outcome = Outcome{Worker: worker}
	defer func() {
		if r := recover(); r != nil {
			outcome.Result.GroupKey = unit.GroupKey
			outcome.Result.State = pipeline.StateFailed
			outcome.Err = services.Wrap(services.ErrUnexpected, "workflow", "run unit", fmt.Sprintf("panic: %v", r), nil)
			logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "unit panicked", "unit_panic",
				logging.Error(outcome.Err),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this failure with the stack trace"),
				logging.String(logging.FieldImpact, "unit counted as failed; files the stage left in raw_dir or output_dir may remain"),
			)
		}
	}()

	outcome.Result = s.runner.Run(ctx, unit)
	if !outcome.Result.Completed() {
		return outcome
	}
	if err := s.ledger.MarkCompleted(ctx, unit.GroupKey); err != nil {
		outcome.Err = err
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "ledger update failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger backend; the unit will be reprocessed next run"),
			logging.String(logging.FieldImpact, "unit counted as failed"),
		)
	}
	return outcome
}

func (s *Scheduler) logProgress(logger *slog.Logger, outcome Outcome, done, pending int) {
	state := string(outcome.Result.State)
	if outcome.Err != nil {
		state = string(pipeline.StateFailed)
	}
	logger.Info(fmt.Sprintf("progress %d/%d", done, pending),
		logging.String(logging.FieldGroupKey, outcome.Result.GroupKey),
		logging.Int(logging.FieldWorker, outcome.Worker),
		logging.String("state", state),
		logging.Int("done", done),
		logging.Int("pending", pending),
		logging.String(logging.FieldEventType, "unit_collected"),
	)
}

func (s *Scheduler) logSummary(logger *slog.Logger, stats RunStats) {
	attrs := []logging.Attr{
		logging.Int("total", stats.Total),
		logging.Int("skipped", stats.Skipped),
		logging.Int("attempted", stats.Attempted),
		logging.Int("succeeded", stats.Succeeded),
		logging.Int("failed", stats.Failed),
		logging.Int("not_dispatched", stats.NotDispatched),
		logging.Duration("elapsed", stats.Elapsed.Round(time.Millisecond)),
		logging.String(logging.FieldEventType, "run_summary"),
	}
	if avg, ok := stats.AveragePerUnit(); ok {
		attrs = append(attrs, logging.Duration("avg_per_unit", avg.Round(time.Millisecond)))
	}
	if stats.Stopped() {
		logger.Warn("run stopped before every unit was dispatched", logging.Args(attrs...)...)
		return
	}
	logger.Info("run finished", logging.Args(attrs...)...)
}
