package capture

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	stampMargin  = 16 // plate distance from the image corner
	stampPadding = 8  // text inset within the plate
)

// stamp overlays "label 2006-01-02T15:04:05Z" in the bottom-right
// corner: a dark plate, a shadowed pass of the text, then the text
// itself in white. The plate keeps the label legible over any page
// background, and the shadow keeps it legible after aggressive
// compression or greyscale printing.
func stamp(src image.Image, label string, at time.Time) (image.Image, error) {
	text := strings.TrimSpace(label + " " + at.UTC().Format(time.RFC3339))
	face := basicfont.Face7x13

	textWidth := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	textHeight := metrics.Height.Ceil()
	plateWidth := textWidth + 2*stampPadding
	plateHeight := textHeight + 2*stampPadding

	bounds := src.Bounds()
	if bounds.Dx() < plateWidth+stampMargin || bounds.Dy() < plateHeight+stampMargin {
		return nil, fmt.Errorf("image %dx%d too small for stamp %q", bounds.Dx(), bounds.Dy(), text)
	}

	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, src, bounds.Min, draw.Src)

	plate := image.Rect(
		bounds.Max.X-stampMargin-plateWidth,
		bounds.Max.Y-stampMargin-plateHeight,
		bounds.Max.X-stampMargin,
		bounds.Max.Y-stampMargin,
	)
	draw.Draw(out, plate, image.NewUniform(color.RGBA{A: 210}), image.Point{}, draw.Over)

	dot := fixed.P(plate.Min.X+stampPadding, plate.Min.Y+stampPadding+metrics.Ascent.Ceil())
	shadow := font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.RGBA{R: 40, G: 40, B: 40, A: 255}),
		Face: face,
		Dot:  dot.Add(fixed.P(1, 1)),
	}
	shadow.DrawString(text)

	drawer := font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  dot,
	}
	drawer.DrawString(text)
	return out, nil
}
