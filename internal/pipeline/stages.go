package pipeline

import (
	"context"

	"clipmill/internal/framing"
)

// Fetcher acquires the shared source for a group key and returns its local path.
type Fetcher interface {
	Fetch(ctx context.Context, groupKey string) (string, error)
}

// Prober reports the pixel dimensions of a fetched source.
type Prober interface {
	Frame(ctx context.Context, path string) (framing.Frame, error)
}

// Transformer produces one artifact from the shared source.
type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (string, error)
}

// Uploader delivers one artifact to the destination.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// Remover deletes local files, returning one error per path it could not remove.
type Remover interface {
	Remove(ctx context.Context, paths ...string) []error
}

// TransformRequest carries everything a transform binding needs for one clip.
type TransformRequest struct {
	Source     string
	OutputName string
	Frame      framing.Frame
	Crop       framing.PixelRect
	StartSec   float64
	EndSec     float64
	// Start and End are StartSec and EndSec formatted as HH:MM:SS.hh.
	Start string
	End   string
}

// StageSet bundles the stage bindings for a run.
type StageSet struct {
	Fetch     Fetcher
	Probe     Prober
	Transform Transformer
	Upload    Uploader
	Remove    Remover
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, groupKey string) (string, error)

func (f FetchFunc) Fetch(ctx context.Context, groupKey string) (string, error) {
	return f(ctx, groupKey)
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context, path string) (framing.Frame, error)

func (f ProbeFunc) Frame(ctx context.Context, path string) (framing.Frame, error) {
	return f(ctx, path)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, req TransformRequest) (string, error)

func (f TransformFunc) Transform(ctx context.Context, req TransformRequest) (string, error) {
	return f(ctx, req)
}

// UploadFunc adapts a function to Uploader.
type UploadFunc func(ctx context.Context, path string) error

func (f UploadFunc) Upload(ctx context.Context, path string) error {
	return f(ctx, path)
}
