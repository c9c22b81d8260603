package capture

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampOverlaysBottomRightCorner(t *testing.T) {
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	src := solid(600, 300, white)
	at := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)

	out, err := stamp(src, "rds demo-cluster", at)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds(), "overlay must not resize the image")

	// Inside the plate the background is darkened for contrast.
	inPlate := out.At(600-stampMargin-2, 300-stampMargin-2)
	assert.NotEqual(t, white, inPlate)

	// Away from the corner the evidence is untouched.
	assert.Equal(t, white, out.At(10, 10))
	assert.Equal(t, white, out.At(300, 150))

	// The source image itself is never mutated.
	assert.Equal(t, white, src.At(600-stampMargin-2, 300-stampMargin-2))
}

func TestStampWritesLegibleText(t *testing.T) {
	src := solid(600, 300, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	out, err := stamp(src, "s3 audit-bucket", time.Now())
	require.NoError(t, err)

	// Somewhere strictly inside the plate a near-white glyph pixel must
	// exist over the darkened background.
	found := false
	for y := 300 - stampMargin - 25; y < 300-stampMargin-5; y++ {
		for x := 600 - stampMargin - 200; x < 600-stampMargin-10; x++ {
			r, g, b, _ := out.At(x, y).RGBA()
			if r > 0xf000 && g > 0xf000 && b > 0xf000 {
				found = true
			}
		}
	}
	assert.True(t, found, "no white glyph pixels found in the stamp region")
}

func TestStampRejectsImageSmallerThanPlate(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	draw.Draw(src, src.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	_, err := stamp(src, "a very long label that cannot fit", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}
