package ytdlp

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
	"clipmill/internal/fileutil"
	"clipmill/internal/logging"
	"clipmill/internal/services"
	"clipmill/internal/textutil"
)

// KeyPlaceholder is replaced by the group key in URL templates.
const KeyPlaceholder = "{key}"

// Options configures a Fetcher.
type Options struct {
	Binary                 string
	URLTemplate            string
	Format                 string
	Proxy                  string
	ExternalDownloader     string
	ExternalDownloaderArgs string
	ExtraArgs              []string
	RawDir                 string
	Timeout                time.Duration
}

// Option configures optional Fetcher behaviour.
type Option func(*Fetcher)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(f *Fetcher) {
		if exec != nil {
			f.exec = exec
		}
	}
}

// WithLogger sets the logger used for download progress.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logging.NewComponentLogger(logger, "ytdlp")
	}
}

// Fetcher downloads sources with yt-dlp.
type Fetcher struct {
	opts   Options
	exec   command.Executor
	logger *slog.Logger
}

// New constructs a Fetcher.
func New(opts Options, extra ...Option) (*Fetcher, error) {
	opts.Binary = strings.TrimSpace(opts.Binary)
	if opts.Binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	if !strings.Contains(opts.URLTemplate, KeyPlaceholder) {
		return nil, fmt.Errorf("url template %q must contain %s", opts.URLTemplate, KeyPlaceholder)
	}
	if strings.TrimSpace(opts.RawDir) == "" {
		return nil, errors.New("raw directory required")
	}
	f := &Fetcher{
		opts:   opts,
		exec:   command.Default(),
		logger: logging.NewNop(),
	}
	for _, opt := range extra {
		opt(f)
	}
	return f, nil
}

// SourcePath is where the source for key is stored.
func (f *Fetcher) SourcePath(key string) string {
	return filepath.Join(f.opts.RawDir, textutil.SanitizeFileName(key)+".mp4")
}

// URL expands the template for key.
func (f *Fetcher) URL(key string) string {
	return strings.ReplaceAll(f.opts.URLTemplate, KeyPlaceholder, key)
}

// Command builds the yt-dlp invocation for key.
func (f *Fetcher) Command(key string) command.Command {
	args := []string{
		"-f", f.opts.Format,
		"--no-playlist",
		"--skip-unavailable-fragments",
		"--merge-output-format", "mp4",
		"-o", f.SourcePath(key),
	}
	if f.opts.Format == "" {
		args = args[2:]
	}
	if proxy := strings.TrimSpace(f.opts.Proxy); proxy != "" {
		args = append(args, "--proxy", proxy)
	}
	if dl := strings.TrimSpace(f.opts.ExternalDownloader); dl != "" {
		args = append(args, "--external-downloader", dl)
		if dlArgs := strings.TrimSpace(f.opts.ExternalDownloaderArgs); dlArgs != "" {
			args = append(args, "--external-downloader-args", dlArgs)
		}
	}
	args = append(args, f.opts.ExtraArgs...)
	args = append(args, f.URL(key))
	return command.Command{Binary: f.opts.Binary, Args: args}
}

// Fetch downloads the source for key, reusing a previous download when one
// is present.
func (f *Fetcher) Fetch(ctx context.Context, key string) (string, error) {
	if err := textutil.ValidateGroupKey(key); err != nil {
		return "", services.Wrap(services.ErrFetch, "fetch", "validate", fmt.Sprintf("group key %q", key), err)
	}
	dest := f.SourcePath(key)
	logger := logging.WithContext(ctx, f.logger)
	if fileutil.IsRegularFile(dest) {
		logger.Info("reusing downloaded source",
			logging.String("source", dest),
			logging.String(logging.FieldEventType, "fetch_reused"),
		)
		return dest, nil
	}
	if err := os.MkdirAll(f.opts.RawDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrFetch, "fetch", "prepare", f.opts.RawDir, err)
	}

	runCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	cmd := f.Command(key)
	logger.Debug("running yt-dlp", logging.String("command", cmd.String()))
	if err := cmd.Run(runCtx, f.exec, func(line string) {
		logger.Debug("yt-dlp output", logging.String("line", line))
	}); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", key, err)
	}
	if !fileutil.IsRegularFile(dest) {
		return "", services.Wrap(services.ErrFetch, "fetch", "yt-dlp", fmt.Sprintf("no output at %s", dest), nil)
	}
	return dest, nil
}
