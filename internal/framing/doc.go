// Package framing converts a normalized face region into the square pixel
// crop handed to the clip transform, and formats clip boundaries as the
// fixed-width timestamps the transform tools expect.
//
// The conversion order is fixed: expand the region by the margin ratio
// (clamped to the unit square), denormalize to pixels with the source's real
// dimensions, then shrink the longer span to a square centred on the
// expanded region. Squaring after denormalization keeps the crop square in
// pixels even when the source is not.
package framing
