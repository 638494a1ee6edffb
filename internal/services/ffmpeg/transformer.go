package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipmill/internal/command"
	"clipmill/internal/framing"
	"clipmill/internal/logging"
	"clipmill/internal/pipeline"
	"clipmill/internal/services"
)

// Option configures optional Transformer behaviour.
type Option func(*Transformer)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(t *Transformer) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// WithLogger sets the logger for ffmpeg output.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) {
		t.logger = logging.NewComponentLogger(logger, "ffmpeg")
	}
}

// Transformer runs ffmpeg crop+trim jobs into an output directory.
type Transformer struct {
	binary    string
	outputDir string
	logLevel  string
	timeout   time.Duration
	exec      command.Executor
	logger    *slog.Logger
}

// New constructs a Transformer writing clips under outputDir.
func New(binary, outputDir, logLevel string, timeout time.Duration, opts ...Option) (*Transformer, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.New("output directory required")
	}
	if logLevel == "" {
		logLevel = "error"
	}
	t := &Transformer{
		binary:    binary,
		outputDir: outputDir,
		logLevel:  logLevel,
		timeout:   timeout,
		exec:      command.Default(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// CropFilter renders a pixel rectangle as an ffmpeg crop filter.
func CropFilter(r framing.PixelRect) string {
	return fmt.Sprintf("crop=%d:%d:%d:%d", r.Width(), r.Height(), r.Left, r.Top)
}

// BuildArgs returns the ffmpeg argument vector for one clip.
func BuildArgs(req pipeline.TransformRequest, output, logLevel string) []string {
	return []string{
		"-hide_banner",
		"-i", req.Source,
		"-vf", CropFilter(req.Crop),
		"-ss", req.Start,
		"-to", req.End,
		"-loglevel", logLevel,
		"-y",
		output,
	}
}

// OutputPath is where the clip named name is written.
func (t *Transformer) OutputPath(name string) string {
	return filepath.Join(t.outputDir, name)
}

// Transform produces the clip described by req and returns its path.
func (t *Transformer) Transform(ctx context.Context, req pipeline.TransformRequest) (string, error) {
	if req.Crop.Width() <= 0 || req.Crop.Height() <= 0 {
		return "", services.Wrap(services.ErrTransform, "transform", "validate", fmt.Sprintf("empty crop %s", req.Crop), nil)
	}
	if err := os.MkdirAll(t.outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransform, "transform", "prepare", t.outputDir, err)
	}
	out := t.OutputPath(req.OutputName)

	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := command.Command{Binary: t.binary, Args: BuildArgs(req, out, t.logLevel)}
	logger := logging.WithContext(ctx, t.logger)
	logger.Debug("running ffmpeg", logging.String("command", cmd.String()))
	if err := cmd.Run(runCtx, t.exec, func(line string) {
		logger.Debug("ffmpeg output", logging.String("line", line))
	}); err != nil {
		// A partial clip must not be mistaken for a finished one.
		_ = os.Remove(out)
		return "", services.Wrap(services.ErrExternalTool, "transform", "ffmpeg", req.OutputName, err)
	}
	return out, nil
}
