package stages

import (
	"context"

	"clipmill/internal/framing"
	"clipmill/internal/media/ffprobe"
	"clipmill/internal/services"
)

// FrameProber adapts an ffprobe.Prober to pipeline.Prober.
type FrameProber struct {
	Prober *ffprobe.Prober
}

// Frame returns the display dimensions of the source's first video stream.
func (p FrameProber) Frame(ctx context.Context, path string) (framing.Frame, error) {
	width, height, err := p.Prober.Dimensions(ctx, path)
	if err != nil {
		return framing.Frame{}, services.Wrap(services.ErrFetch, "fetch", "probe", path, err)
	}
	return framing.Frame{Height: height, Width: width}, nil
}
