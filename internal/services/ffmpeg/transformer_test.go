package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"clipmill/internal/framing"
	"clipmill/internal/pipeline"
	"clipmill/internal/services"
	"clipmill/internal/services/ffmpeg"
)

type stubExecutor struct {
	binary string
	args   []string
	err    error
}

func (s *stubExecutor) Run(_ context.Context, binary string, args []string, _ func(string)) error {
	s.binary = binary
	s.args = append([]string(nil), args...)
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("clip"), 0o644); err != nil {
		return err
	}
	return s.err
}

func request() pipeline.TransformRequest {
	return pipeline.TransformRequest{
		Source:     "/raw/vid.mp4",
		OutputName: "vid_0.mp4",
		Crop:       framing.PixelRect{Top: 380, Bottom: 620, Left: 680, Right: 920},
		Start:      "00:01:30.25",
		End:        "00:01:35.00",
	}
}

func TestBuildArgs(t *testing.T) {
	got := ffmpeg.BuildArgs(request(), "/out/vid_0.mp4", "error")
	want := []string{
		"-hide_banner",
		"-i", "/raw/vid.mp4",
		"-vf", "crop=240:240:680:380",
		"-ss", "00:01:30.25",
		"-to", "00:01:35.00",
		"-loglevel", "error",
		"-y",
		"/out/vid_0.mp4",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("args = %q\nwant %q", got, want)
	}
}

func TestTransformWritesIntoOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	exec := &stubExecutor{}
	tr, err := ffmpeg.New("ffmpeg", dir, "", 0, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := tr.Transform(context.Background(), request())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out != filepath.Join(dir, "vid_0.mp4") {
		t.Fatalf("unexpected output %q", out)
	}
	if exec.binary != "ffmpeg" || !slices.Contains(exec.args, "error") {
		t.Fatalf("unexpected invocation %s %q", exec.binary, exec.args)
	}
}

func TestTransformRemovesPartialOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	tr, err := ffmpeg.New("ffmpeg", dir, "error", 0, ffmpeg.WithExecutor(&stubExecutor{err: errors.New("exit 1")}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = tr.Transform(context.Background(), request())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "vid_0.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("partial output should be removed, stat err = %v", statErr)
	}
}

func TestTransformRejectsEmptyCrop(t *testing.T) {
	tr, err := ffmpeg.New("ffmpeg", t.TempDir(), "error", 0, ffmpeg.WithExecutor(&stubExecutor{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := request()
	req.Crop = framing.PixelRect{}
	if _, err := tr.Transform(context.Background(), req); !errors.Is(err, services.ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}
