package capture

import (
	"fmt"
	"image"
	"image/draw"
	"math"
)

// defaultOverlap is the vertical overlap between adjacent scroll
// segments, in CSS pixels. Console tables use sticky headers; the
// overlap keeps a row that straddles a segment boundary fully visible
// in at least one segment.
const defaultOverlap = 120.0

// planOffsets returns the scroll positions to capture so the segments
// cover the full content height. The last offset is clamped so the
// final segment ends exactly at the bottom of the content.
func planOffsets(viewport, content, overlap float64) []float64 {
	if viewport <= 0 || content <= viewport {
		return []float64{0}
	}
	if overlap < 0 || overlap >= viewport {
		overlap = 0
	}
	step := viewport - overlap
	bottom := content - viewport
	var offsets []float64
	for y := 0.0; y < bottom; y += step {
		offsets = append(offsets, y)
	}
	return append(offsets, bottom)
}

// stitch composites viewport segments captured at the given scroll
// offsets into one tall image. Offsets are in CSS pixels; segment
// bitmaps may be larger on high-DPI displays, so placement is scaled
// by the ratio of the first segment's height to the viewport height.
// Later segments overdraw the overlap band, which keeps sticky headers
// from repeating mid-image.
func stitch(segments []image.Image, offsets []float64, viewport float64) (image.Image, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("stitch: no segments")
	}
	if len(segments) != len(offsets) {
		return nil, fmt.Errorf("stitch: %d segments for %d offsets", len(segments), len(offsets))
	}
	if len(segments) == 1 {
		return segments[0], nil
	}
	if viewport <= 0 {
		return nil, fmt.Errorf("stitch: viewport height %v", viewport)
	}

	first := segments[0].Bounds()
	scale := float64(first.Dy()) / viewport
	width := first.Dx()

	last := segments[len(segments)-1].Bounds()
	height := int(math.Round(offsets[len(offsets)-1]*scale)) + last.Dy()

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, seg := range segments {
		b := seg.Bounds()
		if b.Dx() != width {
			return nil, fmt.Errorf("stitch: segment %d width %d, want %d", i, b.Dx(), width)
		}
		y := int(math.Round(offsets[i] * scale))
		dst := image.Rect(0, y, width, y+b.Dy())
		draw.Draw(out, dst, seg, b.Min, draw.Src)
	}
	return out, nil
}
