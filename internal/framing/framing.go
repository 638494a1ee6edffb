package framing

import (
	"fmt"
	"math"
)

// DefaultMargin is the expansion applied to each side of a region.
const DefaultMargin = 0.02

// Rect is a region normalized to [0,1] on both axes.
type Rect struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// Validate reports the first violated bound as a field name and reason.
func (r Rect) Validate() (string, error) {
	for _, v := range []struct {
		field string
		value float64
	}{{"top", r.Top}, {"bottom", r.Bottom}, {"left", r.Left}, {"right", r.Right}} {
		if math.IsNaN(v.value) || v.value < 0 || v.value > 1 {
			return v.field, fmt.Errorf("%g is outside [0,1]", v.value)
		}
	}
	if r.Top >= r.Bottom {
		return "top", fmt.Errorf("top %g must be below bottom %g", r.Top, r.Bottom)
	}
	if r.Left >= r.Right {
		return "left", fmt.Errorf("left %g must be below right %g", r.Left, r.Right)
	}
	return "", nil
}

// Expand grows every side by margin, clamped to the unit square.
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		Top:    math.Max(r.Top-margin, 0),
		Bottom: math.Min(r.Bottom+margin, 1),
		Left:   math.Max(r.Left-margin, 0),
		Right:  math.Min(r.Right+margin, 1),
	}
}

// Frame is the pixel size of a source video.
type Frame struct {
	Height int
	Width  int
}

func (f Frame) String() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// PixelRect is an integer crop inside a frame. Bottom and Right are exclusive.
type PixelRect struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// Width returns the horizontal span in pixels.
func (p PixelRect) Width() int { return p.Right - p.Left }

// Height returns the vertical span in pixels.
func (p PixelRect) Height() int { return p.Bottom - p.Top }

func (p PixelRect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", p.Width(), p.Height(), p.Left, p.Top)
}

// Denormalize maps r onto frame, rounding each edge to the nearest pixel.
func (r Rect) Denormalize(frame Frame) PixelRect {
	return PixelRect{
		Top:    int(math.Round(r.Top * float64(frame.Height))),
		Bottom: int(math.Round(r.Bottom * float64(frame.Height))),
		Left:   int(math.Round(r.Left * float64(frame.Width))),
		Right:  int(math.Round(r.Right * float64(frame.Width))),
	}
}

// Square shrinks the longer span of p to the shorter one, keeping the centre.
func (p PixelRect) Square() PixelRect {
	side := min(p.Height(), p.Width())
	centerH := float64(p.Top+p.Bottom) / 2
	centerW := float64(p.Left+p.Right) / 2
	top := int(math.Round(centerH - float64(side)/2))
	left := int(math.Round(centerW - float64(side)/2))
	return PixelRect{Top: top, Bottom: top + side, Left: left, Right: left + side}
}

func (p PixelRect) clamp(frame Frame) PixelRect {
	side := p.Width()
	if p.Top < 0 {
		p.Top = 0
	}
	if p.Left < 0 {
		p.Left = 0
	}
	if p.Top+side > frame.Height {
		p.Top = frame.Height - side
	}
	if p.Left+side > frame.Width {
		p.Left = frame.Width - side
	}
	p.Bottom = p.Top + side
	p.Right = p.Left + side
	return p
}

// CropBox computes the square pixel crop for region on a frame of the given
// size: expand by margin, denormalize, then square around the centre.
func CropBox(region Rect, margin float64, frame Frame) (PixelRect, error) {
	if frame.Height <= 0 || frame.Width <= 0 {
		return PixelRect{}, fmt.Errorf("invalid frame size %s", frame)
	}
	if field, err := region.Validate(); err != nil {
		return PixelRect{}, fmt.Errorf("region %s: %w", field, err)
	}
	if margin < 0 || math.IsNaN(margin) {
		return PixelRect{}, fmt.Errorf("invalid margin %g", margin)
	}
	box := region.Expand(margin).Denormalize(frame).Square().clamp(frame)
	if box.Width() < 1 {
		return PixelRect{}, fmt.Errorf("region %+v collapses to an empty crop on %s", region, frame)
	}
	return box, nil
}
