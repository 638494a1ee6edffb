package rclone_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"clipmill/internal/services"
	"clipmill/internal/services/rclone"
)

type stubExecutor struct {
	calls  [][]string
	output []string
	err    error
	write  bool
}

func (s *stubExecutor) Run(_ context.Context, _ string, args []string, onOutput func(string)) error {
	s.calls = append(s.calls, append([]string(nil), args...))
	for _, line := range s.output {
		if onOutput != nil {
			onOutput(line)
		}
	}
	if s.write {
		if err := os.WriteFile(args[len(args)-1], []byte("video"), 0o644); err != nil {
			return err
		}
	}
	return s.err
}

func newClient(t *testing.T, exec *stubExecutor) *rclone.Client {
	t.Helper()
	c, err := rclone.New("rclone", rclone.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestJoinRemote(t *testing.T) {
	cases := map[[2]string]string{
		{"gdrive:", "a.mp4"}:          "gdrive:a.mp4",
		{"gdrive:clips", "a.mp4"}:     "gdrive:clips/a.mp4",
		{"gdrive:clips/", "a.mp4"}:    "gdrive:clips/a.mp4",
		{"s3:bucket/dir/", "b.mp4"}:   "s3:bucket/dir/b.mp4",
		{"/mnt/share/clips", "c.mp4"}: "/mnt/share/clips/c.mp4",
	}
	for in, want := range cases {
		if got := rclone.JoinRemote(in[0], in[1]); got != want {
			t.Errorf("JoinRemote(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestUploaderMovesToNamedDestination(t *testing.T) {
	exec := &stubExecutor{}
	u, err := rclone.NewUploader(newClient(t, exec), "gdrive:clips", rclone.ModeMove)
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}
	if err := u.Upload(context.Background(), "/work/processed/vid_0.mp4"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := []string{"moveto", "/work/processed/vid_0.mp4", "gdrive:clips/vid_0.mp4"}
	if !slices.Equal(exec.calls[0], want) {
		t.Fatalf("args = %q, want %q", exec.calls[0], want)
	}
}

func TestUploaderCopyModeAndFailure(t *testing.T) {
	exec := &stubExecutor{err: errors.New("exit 5")}
	u, err := rclone.NewUploader(newClient(t, exec), "gdrive:clips", rclone.ModeCopy)
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}
	err = u.Upload(context.Background(), "/tmp/a.mp4")
	if !errors.Is(err, services.ErrUpload) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected upload/external tool error, got %v", err)
	}
	if exec.calls[0][0] != "copyto" {
		t.Fatalf("expected copyto, got %q", exec.calls[0])
	}
}

func TestListParsesFiles(t *testing.T) {
	exec := &stubExecutor{output: []string{"a.mp4", "sub/", "", "b.mp4"}}
	names, err := newClient(t, exec).List(context.Background(), "gdrive:clips")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(names, []string{"a.mp4", "b.mp4"}) {
		t.Fatalf("names = %q", names)
	}
	if !slices.Equal(exec.calls[0], []string{"lsf", "--files-only", "gdrive:clips"}) {
		t.Fatalf("args = %q", exec.calls[0])
	}
}

func TestFetcherCopiesAndReuses(t *testing.T) {
	raw := filepath.Join(t.TempDir(), "raw")
	exec := &stubExecutor{write: true}
	f, err := rclone.NewFetcher(newClient(t, exec), "archive:sources", raw)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	path, err := f.Fetch(context.Background(), "vid")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []string{"copyto", "archive:sources/vid.mp4", filepath.Join(raw, "vid.mp4")}
	if !slices.Equal(exec.calls[0], want) {
		t.Fatalf("args = %q, want %q", exec.calls[0], want)
	}
	if _, err := f.Fetch(context.Background(), "vid"); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("existing source should be reused, got %d calls", len(exec.calls))
	}
	if path != want[2] {
		t.Fatalf("path = %q", path)
	}
}

func TestFetcherRejectsUnsafeKey(t *testing.T) {
	exec := &stubExecutor{write: true}
	f, err := rclone.NewFetcher(newClient(t, exec), "archive:sources", t.TempDir())
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	if _, err := f.Fetch(context.Background(), "clip:1"); !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("expected no rclone call, got %q", exec.calls)
	}
}
