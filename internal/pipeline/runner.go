package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"time"

	"clipmill/internal/fileutil"
	"clipmill/internal/framing"
	"clipmill/internal/logging"
	"clipmill/internal/manifest"
	"clipmill/internal/services"
)

// Options configures a Runner.
type Options struct {
	MarginRatio float64
	Cleanup     CleanupPolicy
	// KeepArtifacts leaves every clip in place; only the shared source is
	// removed. Used when clips are not delivered anywhere.
	KeepArtifacts bool
	Logger        *slog.Logger
}

// Runner executes the stage sequence for one unit at a time. A Runner is
// safe for concurrent use when its stage bindings are.
type Runner struct {
	stages  StageSet
	margin  float64
	cleanup CleanupPolicy
	keep    bool
	logger  *slog.Logger
}

// NewRunner validates the stage set and returns a Runner.
func NewRunner(stages StageSet, opts Options) (*Runner, error) {
	if stages.Fetch == nil || stages.Probe == nil || stages.Transform == nil || stages.Upload == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "fetch, probe, transform, and upload stages are required", nil)
	}
	if stages.Remove == nil {
		stages.Remove = FileRemover{}
	}
	if opts.MarginRatio < 0 || math.IsNaN(opts.MarginRatio) {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", fmt.Sprintf("invalid margin ratio %g", opts.MarginRatio), nil)
	}
	cleanup := opts.Cleanup
	if cleanup == "" {
		cleanup = CleanupAfterUpload
	}
	return &Runner{
		stages:  stages,
		margin:  opts.MarginRatio,
		cleanup: cleanup,
		keep:    opts.KeepArtifacts,
		logger:  logging.NewComponentLogger(opts.Logger, "pipeline"),
	}, nil
}

// Run processes unit and reports the outcome. Stage failures are recorded in
// the result, never returned. A panicking stage still gets the unit's files
// cleaned before the panic continues to the caller.
func (r *Runner) Run(ctx context.Context, unit manifest.WorkUnit) (result UnitResult) {
	ctx = services.WithGroupKey(ctx, unit.GroupKey)
	result = UnitResult{
		GroupKey: unit.GroupKey,
		State:    StatePending,
		Started:  time.Now(),
		Items:    make([]SubItemResult, len(unit.SubItems)),
	}
	for i, item := range unit.SubItems {
		result.Items[i].OutputName = item.OutputName
	}
	defer func() {
		result.Duration = time.Since(result.Started)
		switch result.State {
		case StateCompleted, StateFailed, StateCleaning:
		default:
			r.clean(ctx, &result)
		}
	}()

	r.transition(ctx, &result, StateFetching)
	if !r.fetch(ctx, &result) {
		r.transition(ctx, &result, StateCleaning)
		r.clean(ctx, &result)
		r.finish(ctx, &result)
		return result
	}

	r.transition(ctx, &result, StateTransforming)
	started := time.Now()
	for i, item := range unit.SubItems {
		r.transformOne(ctx, &result, i, item)
	}
	result.Transform = time.Since(started)

	r.transition(ctx, &result, StateUploading)
	started = time.Now()
	for i := range result.Items {
		r.uploadOne(ctx, &result, i)
	}
	result.Upload = time.Since(started)

	r.transition(ctx, &result, StateCleaning)
	r.clean(ctx, &result)
	r.finish(ctx, &result)
	return result
}

func (r *Runner) transition(ctx context.Context, result *UnitResult, next State) {
	logging.WithContext(ctx, r.logger).Debug("unit state changed",
		logging.String("from", string(result.State)),
		logging.String("to", string(next)),
		logging.String(logging.FieldEventType, "unit_transition"),
	)
	result.State = next
}

func (r *Runner) fetch(ctx context.Context, result *UnitResult) bool {
	ctx = services.WithStage(ctx, "fetch")
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()
	defer func() { result.Fetch = time.Since(started) }()

	path, err := r.stages.Fetch.Fetch(ctx, result.GroupKey)
	result.Source = path
	if err == nil && !fileutil.IsRegularFile(path) {
		err = services.Wrap(services.ErrFetch, "fetch", "verify", fmt.Sprintf("source %q missing after fetch", path), nil)
	}
	if err != nil {
		result.FetchErr = ensureMarker(err, services.ErrFetch, "fetch", "download")
		r.logFailure(logger, "fetch failed", "fetch_failed", result.FetchErr,
			"subitems of this unit are not attempted; the unit is retried on the next run")
		return false
	}

	frame, err := r.stages.Probe.Frame(ctx, path)
	if err == nil && (frame.Width <= 0 || frame.Height <= 0) {
		err = fmt.Errorf("probe reported frame %s", frame)
	}
	if err != nil {
		result.FetchErr = ensureMarker(err, services.ErrFetch, "fetch", "probe")
		r.logFailure(logger, "source probe failed", "probe_failed", result.FetchErr,
			"subitems of this unit are not attempted; the unit is retried on the next run")
		return false
	}
	result.Frame = frame
	logger.Info("source fetched",
		logging.String("source", path),
		logging.String("frame", frame.String()),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		logging.String(logging.FieldEventType, "fetch_complete"),
	)
	return true
}

func (r *Runner) transformOne(ctx context.Context, result *UnitResult, idx int, item manifest.SubItem) {
	ctx = services.WithOutputName(services.WithStage(ctx, "transform"), item.OutputName)
	logger := logging.WithContext(ctx, r.logger)
	out := &result.Items[idx]

	crop, err := framing.CropBox(item.Region, r.margin, result.Frame)
	if err != nil {
		out.TransformErr = services.Wrap(services.ErrTransform, "transform", "crop", "cannot derive crop", err)
		r.logFailure(logger, "crop computation failed", "transform_failed", out.TransformErr, "this clip is not produced")
		return
	}
	out.Crop = crop

	req := TransformRequest{
		Source:     result.Source,
		OutputName: item.OutputName,
		Frame:      result.Frame,
		Crop:       crop,
		StartSec:   item.Range.StartSec,
		EndSec:     item.Range.EndSec,
		Start:      framing.Timestamp(item.Range.StartSec),
		End:        framing.Timestamp(item.Range.EndSec),
	}
	artifact, err := r.stages.Transform.Transform(ctx, req)
	if err == nil && !fileutil.IsRegularFile(artifact) {
		err = services.Wrap(services.ErrTransform, "transform", "verify", fmt.Sprintf("artifact %q missing after transform", artifact), nil)
	}
	if err != nil {
		out.TransformErr = ensureMarker(err, services.ErrTransform, "transform", "clip")
		if fileutil.IsRegularFile(artifact) {
			out.Artifact = artifact
		}
		r.logFailure(logger, "transform failed", "transform_failed", out.TransformErr, "this clip is not produced")
		return
	}
	out.Artifact = artifact
	logger.Debug("clip produced",
		logging.String("artifact", artifact),
		logging.String("crop", crop.String()),
		logging.String("start", req.Start),
		logging.String("end", req.End),
	)
}

func (r *Runner) uploadOne(ctx context.Context, result *UnitResult, idx int) {
	out := &result.Items[idx]
	if !out.Transformed() {
		return
	}
	ctx = services.WithOutputName(services.WithStage(ctx, "upload"), out.OutputName)
	logger := logging.WithContext(ctx, r.logger)

	if err := r.stages.Upload.Upload(ctx, out.Artifact); err != nil {
		out.UploadErr = ensureMarker(err, services.ErrUpload, "upload", "deliver")
		r.logFailure(logger, "upload failed", "upload_failed", out.UploadErr, "clip stays local; the unit is retried on the next run")
		return
	}
	out.Uploaded = true
	logger.Debug("clip uploaded", logging.String("artifact", out.Artifact))
}

func (r *Runner) clean(ctx context.Context, result *UnitResult) {
	ctx = services.WithStage(ctx, "cleanup")
	logger := logging.WithContext(ctx, r.logger)

	paths := []string{result.Source}
	for i := range result.Items {
		item := &result.Items[i]
		if item.Artifact == "" || r.keep {
			continue
		}
		if item.Uploaded || r.cleanup == CleanupAlways {
			paths = append(paths, item.Artifact)
			item.Removed = true
		}
	}

	for _, err := range r.stages.Remove.Remove(ctx, paths...) {
		logging.WarnWithContext(logger, "cleanup could not remove file", "cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"),
		)
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			continue
		}
		for i := range result.Items {
			if result.Items[i].Artifact == pathErr.Path {
				result.Items[i].Removed = false
			}
		}
	}
}

func (r *Runner) finish(ctx context.Context, result *UnitResult) {
	if result.FailedStage() == "" {
		result.State = StateCompleted
	} else {
		result.State = StateFailed
	}
	transformed, uploaded := result.Counts()
	attrs := []logging.Attr{
		logging.String("state", string(result.State)),
		logging.Int("subitems", len(result.Items)),
		logging.Int("transformed", transformed),
		logging.Int("uploaded", uploaded),
		logging.Duration("elapsed", time.Since(result.Started).Round(time.Millisecond)),
	}
	logger := logging.WithContext(ctx, r.logger)
	if result.State == StateCompleted {
		logger.Info("unit completed", logging.Args(append(attrs, logging.String(logging.FieldEventType, "unit_completed"))...)...)
		return
	}
	logging.WarnWithContext(logger, "unit failed", "unit_failed", append(attrs,
		logging.String(logging.FieldStage, result.FailedStage()),
		logging.String(logging.FieldErrorHint, "rerun to retry the whole unit"),
		logging.String(logging.FieldImpact, "unit not recorded as completed"),
	)...)
}

func (r *Runner) logFailure(logger *slog.Logger, msg, eventType string, err error, impact string) {
	logging.ErrorWithContext(logger, msg, eventType,
		logging.Error(err),
		logging.ErrorKind(err),
		logging.String(logging.FieldImpact, impact),
	)
}

// ensureMarker tags err with the stage marker, keeping any marker it already carries.
func ensureMarker(err, marker error, stage, operation string) error {
	if err == nil || errors.Is(err, marker) {
		return err
	}
	return services.Wrap(marker, stage, operation, "", err)
}
