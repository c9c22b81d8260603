package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"evidencer/internal/browser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePager serves synthetic viewport screenshots whose shade encodes
// the scroll position, so stitched output can be inspected.
type fakePager struct {
	viewport float64
	content  float64
	width    int

	badShot int // 1-based index of a screenshot that returns garbage

	shots   int
	scrolls []float64
	current float64
}

func (f *fakePager) Metrics(context.Context) (browser.PageMetrics, error) {
	return browser.PageMetrics{
		ViewportHeight: f.viewport,
		ContentHeight:  f.content,
		ScrollY:        f.current,
	}, nil
}

func (f *fakePager) ScrollTo(_ context.Context, y float64) error {
	f.scrolls = append(f.scrolls, y)
	f.current = y
	return nil
}

func (f *fakePager) Screenshot(context.Context, bool) ([]byte, error) {
	f.shots++
	if f.shots == f.badShot {
		return []byte("not a png"), nil
	}
	shade := uint8(40 + f.shots*20)
	img := image.NewRGBA(image.Rect(0, 0, f.width, int(f.viewport)))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: shade, G: shade, B: shade, A: 255}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestCaptureSingleViewport(t *testing.T) {
	pager := &fakePager{viewport: 300, content: 300, width: 600}
	capturer := New(pager, nil)

	result, err := capturer.Capture(context.Background(), "kms key-policy")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Segments)
	assert.True(t, result.Stamped)
	assert.Empty(t, result.Warning)
	assert.Equal(t, []float64{0}, pager.scrolls, "no scroll loop for short content")

	img, err := png.Decode(bytes.NewReader(result.PNG))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dy())
	assert.Equal(t, result.Height, img.Bounds().Dy())
}

func TestCaptureStitchesTallContent(t *testing.T) {
	pager := &fakePager{viewport: 300, content: 800, width: 600}
	capturer := New(pager, nil)

	result, err := capturer.Capture(context.Background(), "rds demo-cluster")
	require.NoError(t, err)

	// step = 300 - 120 overlap = 180
	assert.Equal(t, []float64{0, 0, 180, 360, 500, 0}, pager.scrolls,
		"top reset, four segment positions, restore to top")
	assert.Equal(t, 4, result.Segments)
	assert.True(t, result.Stamped)
	assert.Equal(t, 800, result.Height, "composite covers the full content height")

	img, err := png.Decode(bytes.NewReader(result.PNG))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dy())
}

func TestCaptureBoundsRunawayContent(t *testing.T) {
	pager := &fakePager{viewport: 300, content: 50000, width: 600}
	capturer := New(pager, nil)

	result, err := capturer.Capture(context.Background(), "s3 audit-bucket")
	require.NoError(t, err)

	assert.Equal(t, maxSegments, result.Segments)
	assert.Equal(t, maxSegments, pager.shots)
	assert.Contains(t, result.Warning, "truncated")
	assert.True(t, result.Stamped)
}

func TestCaptureDegradesOnUndecodableSegment(t *testing.T) {
	pager := &fakePager{viewport: 300, content: 800, width: 600, badShot: 2}
	capturer := New(pager, nil)

	result, err := capturer.Capture(context.Background(), "iam role")
	require.NoError(t, err, "a broken segment must not lose the evidence")

	assert.False(t, result.Stamped)
	assert.Contains(t, result.Warning, "decode segment")
	assert.Equal(t, 1, result.Segments)

	// The returned bytes are the intact first segment.
	img, err := png.Decode(bytes.NewReader(result.PNG))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dy())
	assert.Equal(t, 300, result.Height)
}

func TestCaptureKeepsEvidenceWhenOverlayFails(t *testing.T) {
	// Too narrow for the stamp plate, so the overlay is skipped.
	pager := &fakePager{viewport: 100, content: 250, width: 60}
	capturer := New(pager, nil)

	result, err := capturer.Capture(context.Background(), "cloudtrail trail-config")
	require.NoError(t, err)

	assert.False(t, result.Stamped)
	assert.Contains(t, result.Warning, "overlay")
	assert.Equal(t, 250, result.Height, "stitching still happened")

	img, err := png.Decode(bytes.NewReader(result.PNG))
	require.NoError(t, err)
	assert.Equal(t, 250, img.Bounds().Dy())
}
