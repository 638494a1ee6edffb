package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipmill/internal/ledger"
	"clipmill/internal/manifest"
	"clipmill/internal/pipeline"
	"clipmill/internal/services"
	"clipmill/internal/workflow"
)

type stubRunner struct {
	fn func(ctx context.Context, unit manifest.WorkUnit) pipeline.UnitResult

	mu    sync.Mutex
	calls []string
}

func (r *stubRunner) Run(ctx context.Context, unit manifest.WorkUnit) pipeline.UnitResult {
	r.mu.Lock()
	r.calls = append(r.calls, unit.GroupKey)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(ctx, unit)
	}
	return completed(unit)
}

func (r *stubRunner) called() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func completed(unit manifest.WorkUnit) pipeline.UnitResult {
	return pipeline.UnitResult{GroupKey: unit.GroupKey, State: pipeline.StateCompleted}
}

func failed(unit manifest.WorkUnit) pipeline.UnitResult {
	return pipeline.UnitResult{
		GroupKey: unit.GroupKey,
		State:    pipeline.StateFailed,
		FetchErr: services.Wrap(services.ErrFetch, "fetch", "download", "", errors.New("boom")),
	}
}

type memLedger struct {
	mu      sync.Mutex
	done    map[string]bool
	markErr error
}

func newMemLedger(keys ...string) *memLedger {
	l := &memLedger{done: map[string]bool{}}
	for _, k := range keys {
		l.done[k] = true
	}
	return l
}

func (l *memLedger) IsCompleted(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done[key]
}

func (l *memLedger) MarkCompleted(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.markErr != nil {
		return l.markErr
	}
	l.done[key] = true
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	outcomes []workflow.Outcome
}

func (o *recordingObserver) UnitStarted(int, manifest.WorkUnit) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *recordingObserver) UnitFinished(outcome workflow.Outcome, _, _ int) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()
}

func units(keys ...string) []manifest.WorkUnit {
	out := make([]manifest.WorkUnit, 0, len(keys))
	for _, k := range keys {
		out = append(out, manifest.WorkUnit{
			GroupKey: k,
			SubItems: []manifest.SubItem{{OutputName: k + "_0.mp4"}, {OutputName: k + "_1.mp4"}},
		})
	}
	return out
}

func newScheduler(t *testing.T, runner workflow.UnitRunner, l workflow.Ledger, concurrency int, obs ...workflow.Observer) *workflow.Scheduler {
	t.Helper()
	s, err := workflow.NewScheduler(runner, l, workflow.Options{Concurrency: concurrency, Observers: obs})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func openLedger(t *testing.T, path string) *ledger.Ledger {
	t.Helper()
	backend, err := ledger.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	l, err := ledger.New(context.Background(), backend)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	return l
}

func TestRunSkipsCompletedUnitsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.txt")
	first := openLedger(t, path)
	if err := first.MarkCompleted(context.Background(), "a"); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	runner := &stubRunner{}
	stats := newScheduler(t, runner, first, 2).Run(context.Background(), units("a", "b", "c"))
	if stats.Skipped != 1 || stats.Attempted != 2 || stats.Succeeded != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	for _, key := range runner.called() {
		if key == "a" {
			t.Fatal("completed unit must not reach any stage")
		}
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := openLedger(t, path)
	t.Cleanup(func() { second.Close() })
	rerun := &stubRunner{}
	stats = newScheduler(t, rerun, second, 2).Run(context.Background(), units("a", "b", "c"))
	if stats.Attempted != 0 || stats.Skipped != 3 || len(rerun.called()) != 0 {
		t.Fatalf("restart should skip every unit, got %+v calls=%v", stats, rerun.called())
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const unitTime = 100 * time.Millisecond
	var inFlight, peak atomic.Int64
	runner := &stubRunner{fn: func(_ context.Context, unit manifest.WorkUnit) pipeline.UnitResult {
		now := inFlight.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(unitTime)
		inFlight.Add(-1)
		return completed(unit)
	}}

	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("u%d", i)
	}
	stats := newScheduler(t, runner, newMemLedger(), 4).Run(context.Background(), units(keys...))

	if stats.Attempted != 10 || stats.Succeeded != 10 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := peak.Load(); got > 4 {
		t.Fatalf("peak in-flight %d exceeds concurrency 4", got)
	}
	if stats.Elapsed < 3*unitTime {
		t.Fatalf("elapsed %s shorter than three waves", stats.Elapsed)
	}
	if stats.Elapsed > 8*unitTime {
		t.Fatalf("elapsed %s suggests units ran serially", stats.Elapsed)
	}
	if avg, ok := stats.AveragePerUnit(); !ok || avg <= 0 {
		t.Fatalf("AveragePerUnit = %s, %v", avg, ok)
	}
}

func TestRunWithNothingPending(t *testing.T) {
	runner := &stubRunner{}
	obs := &recordingObserver{}
	stats := newScheduler(t, runner, newMemLedger("a", "b"), 4, obs).Run(context.Background(), units("a", "b"))

	if stats.Attempted != 0 || stats.Pending != 0 || stats.Skipped != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(runner.called()) != 0 || obs.started != 0 {
		t.Fatal("no stage may run when nothing is pending")
	}
	if _, ok := stats.AveragePerUnit(); ok {
		t.Fatal("average must be absent when nothing was attempted")
	}
}

func TestFailedUnitIsRetriedWhole(t *testing.T) {
	l := newMemLedger()
	var seen []int
	var mu sync.Mutex
	attempt := 0
	runner := &stubRunner{fn: func(_ context.Context, unit manifest.WorkUnit) pipeline.UnitResult {
		mu.Lock()
		defer mu.Unlock()
		attempt++
		seen = append(seen, len(unit.SubItems))
		if attempt == 1 {
			return failed(unit)
		}
		return completed(unit)
	}}

	stats := newScheduler(t, runner, l, 1).Run(context.Background(), units("v"))
	if stats.Failed != 1 || l.IsCompleted("v") {
		t.Fatalf("failed unit must not be marked: %+v", stats)
	}

	stats = newScheduler(t, runner, l, 1).Run(context.Background(), units("v"))
	if stats.Succeeded != 1 || !l.IsCompleted("v") {
		t.Fatalf("retry should complete the unit: %+v", stats)
	}
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 2 {
		t.Fatalf("each attempt must carry every subitem, got %v", seen)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	runner := &stubRunner{fn: func(_ context.Context, unit manifest.WorkUnit) pipeline.UnitResult {
		if unit.GroupKey == "bad" {
			panic("corrupt state")
		}
		return completed(unit)
	}}
	obs := &recordingObserver{}
	l := newMemLedger()
	stats := newScheduler(t, runner, l, 2, obs).Run(context.Background(), units("ok1", "bad", "ok2"))

	if stats.Attempted != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if l.IsCompleted("bad") {
		t.Fatal("panicked unit must not be marked")
	}
	var found bool
	for _, o := range obs.outcomes {
		if o.Result.GroupKey == "bad" {
			found = true
			if !errors.Is(o.Err, services.ErrUnexpected) {
				t.Fatalf("expected ErrUnexpected, got %v", o.Err)
			}
		}
	}
	if !found {
		t.Fatal("panicked unit was not collected")
	}
}

func TestLedgerWriteFailureCountsAsFailed(t *testing.T) {
	l := newMemLedger()
	l.markErr = services.Wrap(services.ErrLedger, "ledger", "mark", "a", errors.New("disk full"))
	stats := newScheduler(t, &stubRunner{}, l, 1).Run(context.Background(), units("a"))
	if stats.Failed != 1 || stats.Succeeded != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestStopHaltsDispatchButFinishesInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var innerErr error
	runner := &stubRunner{fn: func(ctx context.Context, unit manifest.WorkUnit) pipeline.UnitResult {
		entered <- struct{}{}
		<-release
		innerErr = ctx.Err()
		return completed(unit)
	}}
	l := newMemLedger()
	s := newScheduler(t, runner, l, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	statsCh := make(chan workflow.RunStats, 1)
	go func() { statsCh <- s.Run(ctx, units("a", "b", "c", "d", "e")) }()

	<-entered
	s.Stop()
	s.Stop()
	cancel()
	close(release)
	stats := <-statsCh

	if stats.Attempted != 1 || stats.Succeeded != 1 || stats.NotDispatched != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.Stopped() {
		t.Fatal("Stopped should report undispatched units")
	}
	if innerErr != nil {
		t.Fatalf("in-flight unit saw cancelled context: %v", innerErr)
	}
	if !l.IsCompleted("a") {
		t.Fatal("in-flight unit should still be recorded")
	}
}

func TestNewSchedulerValidates(t *testing.T) {
	if _, err := workflow.NewScheduler(nil, newMemLedger(), workflow.Options{Concurrency: 1}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for nil runner, got %v", err)
	}
	if _, err := workflow.NewScheduler(&stubRunner{}, newMemLedger(), workflow.Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for zero concurrency, got %v", err)
	}
}
