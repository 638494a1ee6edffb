package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clipmill/internal/command"
	"clipmill/internal/config"
	"clipmill/internal/media/ffprobe"
	"clipmill/internal/pipeline"
	"clipmill/internal/services"
	"clipmill/internal/services/ffmpeg"
	"clipmill/internal/services/rclone"
	"clipmill/internal/services/s3store"
	"clipmill/internal/services/ytdlp"
)

// Bindings is the concrete stage set for a run.
type Bindings struct {
	Stages pipeline.StageSet
	// KeepArtifacts is set when clips are not delivered anywhere.
	KeepArtifacts bool
	// Lister is nil when the upload backend has no destination.
	Lister Lister
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	exec   command.Executor
	logger *slog.Logger
}

// WithExecutor routes every tool invocation through exec.
func WithExecutor(exec command.Executor) Option {
	return func(o *buildOptions) { o.exec = exec }
}

// WithLogger sets the logger passed to each binding.
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

func collect(opts []Option) buildOptions {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Build constructs the stage bindings selected by cfg.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Bindings, error) {
	o := collect(opts)
	fetcher, err := buildFetcher(cfg, o)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "stages", "fetch", cfg.Fetch.Backend, err)
	}
	transformer, err := ffmpeg.New(
		cfg.Transform.FFmpegBinary,
		cfg.Paths.OutputDir,
		cfg.Transform.LogLevel,
		seconds(cfg.Transform.TimeoutSeconds),
		ffmpeg.WithExecutor(o.exec),
		ffmpeg.WithLogger(o.logger),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "stages", "transform", "", err)
	}
	prober := FrameProber{Prober: ffprobe.New(cfg.Transform.FFprobeBinary, ffprobe.WithExecutor(o.exec))}

	bindings := &Bindings{}
	var uploader pipeline.Uploader
	if cfg.Upload.Backend == config.UploadNone {
		uploader = NoopUploader{}
		bindings.KeepArtifacts = true
	} else {
		lister, up, err := buildUploader(ctx, cfg, o)
		if err != nil {
			return nil, err
		}
		uploader = up
		bindings.Lister = lister
	}

	bindings.Stages = pipeline.StageSet{
		Fetch:     fetcher,
		Probe:     prober,
		Transform: transformer,
		Upload:    uploader,
		Remove:    pipeline.FileRemover{},
	}
	return bindings, nil
}

// NewLister returns the upload destination lister used to rebuild the
// ledger.
func NewLister(ctx context.Context, cfg *config.Config, opts ...Option) (Lister, error) {
	if cfg.Upload.Backend == config.UploadNone {
		return nil, services.Wrap(services.ErrConfiguration, "stages", "lister", "", ErrNoDestination)
	}
	lister, _, err := buildUploader(ctx, cfg, collect(opts))
	return lister, err
}

// RunnerOptions derives pipeline options from cfg and the bindings.
func (b *Bindings) RunnerOptions(cfg *config.Config, logger *slog.Logger) (pipeline.Options, error) {
	cleanup, err := pipeline.ParseCleanupPolicy(cfg.Workflow.Cleanup)
	if err != nil {
		return pipeline.Options{}, services.Wrap(services.ErrConfiguration, "stages", "cleanup", "", err)
	}
	return pipeline.Options{
		MarginRatio:   cfg.Workflow.MarginRatio,
		Cleanup:       cleanup,
		KeepArtifacts: b.KeepArtifacts,
		Logger:        logger,
	}, nil
}

func buildFetcher(cfg *config.Config, o buildOptions) (pipeline.Fetcher, error) {
	switch cfg.Fetch.Backend {
	case config.FetchYtDlp:
		return ytdlp.New(ytdlp.Options{
			Binary:                 cfg.Fetch.YtDlpBinary,
			URLTemplate:            cfg.Fetch.URLTemplate,
			Format:                 cfg.Fetch.Format,
			Proxy:                  cfg.Fetch.Proxy,
			ExternalDownloader:     cfg.Fetch.ExternalDownloader,
			ExternalDownloaderArgs: cfg.Fetch.ExternalDownloaderArgs,
			ExtraArgs:              cfg.Fetch.ExtraArgs,
			RawDir:                 cfg.Paths.RawDir,
			Timeout:                seconds(cfg.Fetch.TimeoutSeconds),
		}, ytdlp.WithExecutor(o.exec), ytdlp.WithLogger(o.logger))
	case config.FetchRclone:
		client, err := rclone.New(cfg.Upload.RcloneBinary, rclone.WithExecutor(o.exec), rclone.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		return rclone.NewFetcher(client, cfg.Fetch.RcloneSource, cfg.Paths.RawDir)
	default:
		return nil, fmt.Errorf("unsupported fetch backend %q", cfg.Fetch.Backend)
	}
}

type listingUploader interface {
	Lister
	pipeline.Uploader
}

func buildUploader(ctx context.Context, cfg *config.Config, o buildOptions) (Lister, pipeline.Uploader, error) {
	var up listingUploader
	var err error
	switch cfg.Upload.Backend {
	case config.UploadRclone:
		var client *rclone.Client
		client, err = rclone.New(cfg.Upload.RcloneBinary, rclone.WithExecutor(o.exec), rclone.WithLogger(o.logger))
		if err == nil {
			up, err = rclone.NewUploader(client, cfg.Upload.RcloneRemote, rclone.Mode(cfg.Upload.RcloneMode))
		}
	case config.UploadS3:
		up, err = s3store.New(ctx, s3store.Options{
			Bucket:          cfg.Upload.S3Bucket,
			Prefix:          cfg.Upload.S3Prefix,
			Region:          cfg.Upload.S3Region,
			Endpoint:        cfg.Upload.S3Endpoint,
			PathStyle:       cfg.Upload.S3PathStyle,
			AccessKeyID:     cfg.Upload.S3AccessKeyID,
			SecretAccessKey: cfg.Upload.S3SecretAccessKey,
		})
	case config.UploadLocal:
		up = LocalUploader{Dir: cfg.Upload.LocalDir}
	default:
		err = fmt.Errorf("unsupported upload backend %q", cfg.Upload.Backend)
	}
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "stages", "upload", cfg.Upload.Backend, err)
	}
	return up, up, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
