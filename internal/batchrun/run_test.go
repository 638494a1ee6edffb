package batchrun_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"clipmill/internal/batchrun"
	"clipmill/internal/config"
	"clipmill/internal/logging"
	"clipmill/internal/notifications"
	"clipmill/internal/services"
	"clipmill/internal/testsupport"
	"clipmill/internal/workflow"
)

const testManifest = `{
  "a_0.mp4": {"group_key": "vidA", "duration": {"start_sec": 1, "end_sec": 2}, "region": {"top": 0.4, "bottom": 0.6, "left": 0.3, "right": 0.5}},
  "b_0.mp4": {"ytb_id": "vidB", "duration": {"start_sec": 0, "end_sec": 1}, "bbox": {"top": 0, "bottom": 1, "left": 0, "right": 1}},
  "a_1.mp4": {"group_key": "vidA", "duration": {"start_sec": 5, "end_sec": 6.5}, "region": {"top": 0.1, "bottom": 0.3, "left": 0.1, "right": 0.3}},
  "b_1.mp4": {"ytb_id": "vidB", "duration": {"start_sec": 2, "end_sec": 3}, "bbox": {"top": 0.2, "bottom": 0.4, "left": 0.2, "right": 0.4}}
}`

// toolStub emulates yt-dlp, ffprobe, and ffmpeg by writing the files each
// tool would produce.
type toolStub struct {
	mu      sync.Mutex
	fail    map[string]bool
	fetches int
	ffmpegs int
}

func (s *toolStub) Run(_ context.Context, binary string, args []string, onOutput func(string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch filepath.Base(binary) {
	case "yt-dlp":
		s.fetches++
		out := args[slices.Index(args, "-o")+1]
		return os.WriteFile(out, []byte("source"), 0o644)
	case "ffprobe":
		onOutput(`{"streams":[{"codec_type":"video","width":1920,"height":1080}],"format":{}}`)
		return nil
	case "ffmpeg":
		s.ffmpegs++
		out := args[len(args)-1]
		if s.fail[filepath.Base(out)] {
			return errors.New("encoder crashed")
		}
		return os.WriteFile(out, []byte("clip"), 0o644)
	default:
		return fmt.Errorf("unexpected binary %s", binary)
	}
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithManifest(testManifest),
		testsupport.WithLocalUpload(),
		testsupport.WithStubbedBinaries("yt-dlp", "ffprobe", "ffmpeg"),
		testsupport.WithSettings(func(cfg *config.Config) {
			cfg.Workflow.Concurrency = 2
			cfg.Metrics.TextfilePath = "metrics/clipmill.prom"
		}),
	)
	return cfg, cfg.Upload.LocalDir
}

func run(t *testing.T, cfg *config.Config, stub *toolStub) workflow.RunStats {
	t.Helper()
	stats, err := batchrun.Run(context.Background(), cfg, batchrun.Options{Logger: logging.NewNop(), Executor: stub})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return stats
}

func TestRunProcessesManifestAndResumes(t *testing.T) {
	cfg, delivered := testConfig(t)
	stub := &toolStub{fail: map[string]bool{"b_1.mp4": true}}

	stats := run(t, cfg, stub)
	if stats.Total != 2 || stats.Attempted != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("first run stats %+v", stats)
	}
	ledgerData, err := os.ReadFile(cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if string(ledgerData) != "vidA\n" {
		t.Fatalf("ledger = %q, want only vidA", ledgerData)
	}
	for _, name := range []string{"a_0.mp4", "a_1.mp4", "b_0.mp4"} {
		if _, err := os.Stat(filepath.Join(delivered, name)); err != nil {
			t.Fatalf("expected %s delivered: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "a_0.mp4")); !os.IsNotExist(err) {
		t.Fatalf("uploaded artifact should be cleaned, stat err = %v", err)
	}
	if _, err := os.Stat(cfg.Metrics.TextfilePath); err != nil {
		t.Fatalf("metrics textfile missing: %v", err)
	}

	stub.fail = nil
	stats = run(t, cfg, stub)
	if stats.Skipped != 1 || stats.Attempted != 1 || stats.Succeeded != 1 {
		t.Fatalf("second run stats %+v", stats)
	}
	if stub.ffmpegs != 6 {
		t.Fatalf("retry should re-transform every vidB clip; ffmpeg ran %d times", stub.ffmpegs)
	}
	ledgerData, _ = os.ReadFile(cfg.Ledger.Path)
	if string(ledgerData) != "vidA\nvidB\n" {
		t.Fatalf("ledger = %q", ledgerData)
	}

	stats = run(t, cfg, stub)
	if stats.Attempted != 0 || stats.Skipped != 2 {
		t.Fatalf("third run should do nothing: %+v", stats)
	}
}

func TestRunFailsBeforeDispatch(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Manifest.Path = filepath.Join(t.TempDir(), "missing.json")
	_, err := batchrun.Run(context.Background(), cfg, batchrun.Options{Logger: logging.NewNop(), Executor: &toolStub{}})
	if !errors.Is(err, services.ErrManifest) {
		t.Fatalf("expected manifest error, got %v", err)
	}

	cfg, _ = testConfig(t)
	cfg.Transform.FFmpegBinary = "clipmill-missing-ffmpeg"
	_, err = batchrun.Run(context.Background(), cfg, batchrun.Options{Logger: logging.NewNop(), Executor: &toolStub{}})
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "FFmpeg") {
		t.Fatalf("expected missing tool error, got %v", err)
	}
}

func TestRunStopBeforeDispatch(t *testing.T) {
	cfg, _ := testConfig(t)
	stub := &toolStub{}
	stats, err := batchrun.Run(context.Background(), cfg, batchrun.Options{
		Logger:      logging.NewNop(),
		Executor:    stub,
		OnScheduler: func(s *workflow.Scheduler) { s.Stop() },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Attempted != 0 || stats.NotDispatched != 2 || stub.fetches != 0 {
		t.Fatalf("stopped run should dispatch nothing: %+v fetches=%d", stats, stub.fetches)
	}
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []notifications.RunSummary
	errs      []error
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, summary notifications.RunSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, err error, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
	return nil
}

func TestRunNotifiesOutcome(t *testing.T) {
	cfg, _ := testConfig(t)
	notifier := &recordingNotifier{}
	opts := batchrun.Options{
		Logger:   logging.NewNop(),
		Executor: &toolStub{fail: map[string]bool{"a_0.mp4": true}},
		Notifier: notifier,
	}
	if _, err := batchrun.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.summaries) != 1 {
		t.Fatalf("expected one run summary, got %d", len(notifier.summaries))
	}
	got := notifier.summaries[0]
	if got.Manifest != "manifest.json" || got.Succeeded != 1 || got.Failed != 1 {
		t.Fatalf("summary = %+v", got)
	}

	opts.Executor = &toolStub{}
	if _, err := batchrun.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := batchrun.Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.summaries) != 2 {
		t.Fatalf("a run with nothing to do should not notify; got %d summaries", len(notifier.summaries))
	}

	cfg.Manifest.Path = filepath.Join(t.TempDir(), "missing.json")
	if _, err := batchrun.Run(context.Background(), cfg, opts); err == nil {
		t.Fatal("expected manifest error")
	}
	if len(notifier.errs) != 1 || !errors.Is(notifier.errs[0], services.ErrManifest) {
		t.Fatalf("expected one manifest error notification, got %v", notifier.errs)
	}
}
