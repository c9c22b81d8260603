package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"evidencer/internal/browser"

	"go.uber.org/zap"
)

// maxSegments bounds the scroll-capture loop. Virtualized console
// tables can report effectively unbounded content heights; beyond this
// many viewports the capture is truncated and flagged rather than
// looping forever.
const maxSegments = 12

// Pager is the browser surface the capturer drives. The Controller
// satisfies it; tests substitute a fake.
type Pager interface {
	Metrics(ctx context.Context) (browser.PageMetrics, error)
	ScrollTo(ctx context.Context, y float64) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// Result is a finished capture. PNG always holds usable evidence: when
// stitching or stamping fails the raw capture is returned with Stamped
// false and Warning set, never an empty artifact.
type Result struct {
	Label    string    `json:"label"`
	PNG      []byte    `json:"-"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Segments int       `json:"segments"`
	TakenAt  time.Time `json:"taken_at"`
	Stamped  bool      `json:"stamped"`
	Warning  string    `json:"warning,omitempty"`
}

// Capturer produces stitched, timestamped screenshots of the current
// page.
type Capturer struct {
	page    Pager
	log     *zap.Logger
	overlap float64
}

func New(page Pager, logger *zap.Logger) *Capturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{page: page, log: logger, overlap: defaultOverlap}
}

// Capture screenshots the current page. Content taller than one
// viewport is covered by a scroll-capture loop whose segments are
// stitched into a single composite, then the label and the capture
// time are stamped into the bottom-right corner.
func (c *Capturer) Capture(ctx context.Context, label string) (*Result, error) {
	if err := c.page.ScrollTo(ctx, 0); err != nil {
		return nil, fmt.Errorf("scroll to top: %w", err)
	}
	metrics, err := c.page.Metrics(ctx)
	if err != nil {
		return nil, err
	}

	offsets := planOffsets(metrics.ViewportHeight, metrics.ContentHeight, c.overlap)
	var truncated string
	if len(offsets) > maxSegments {
		offsets = offsets[:maxSegments]
		truncated = fmt.Sprintf("content truncated at %d segments", maxSegments)
	}

	takenAt := time.Now().UTC()
	var (
		segments []image.Image
		raw      []byte // first segment, kept for degraded results
	)
	for _, offset := range offsets {
		if len(offsets) > 1 {
			if err := c.page.ScrollTo(ctx, offset); err != nil {
				return nil, fmt.Errorf("scroll to %v: %w", offset, err)
			}
		}
		shot, err := c.page.Screenshot(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("screenshot at offset %v: %w", offset, err)
		}
		if raw == nil {
			raw = shot
		}
		img, err := png.Decode(bytes.NewReader(shot))
		if err != nil {
			return c.degraded(label, raw, takenAt, fmt.Sprintf("decode segment: %v", err))
		}
		segments = append(segments, img)
	}
	if len(offsets) > 1 {
		// Leave the page where the operator expects it.
		if err := c.page.ScrollTo(ctx, 0); err != nil {
			c.log.Warn("restore scroll position", zap.Error(err))
		}
	}

	composite, err := stitch(segments, offsets, metrics.ViewportHeight)
	if err != nil {
		return c.degraded(label, raw, takenAt, fmt.Sprintf("stitch: %v", err))
	}

	result := &Result{
		Label:    label,
		Width:    composite.Bounds().Dx(),
		Height:   composite.Bounds().Dy(),
		Segments: len(segments),
		TakenAt:  takenAt,
		Warning:  truncated,
	}

	stamped, err := stamp(composite, label, takenAt)
	if err == nil {
		result.Stamped = true
		composite = stamped
	} else {
		c.log.Warn("timestamp overlay failed, keeping raw capture",
			zap.String("label", label), zap.Error(err))
		result.Warning = joinWarnings(result.Warning, fmt.Sprintf("overlay: %v", err))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, composite); err != nil {
		return c.degraded(label, raw, takenAt, fmt.Sprintf("encode: %v", err))
	}
	result.PNG = buf.Bytes()

	c.log.Info("capture complete",
		zap.String("label", label),
		zap.Int("segments", result.Segments),
		zap.Int("height", result.Height),
		zap.Bool("stamped", result.Stamped))
	return result, nil
}

// degraded returns the first raw segment when the composite or the
// overlay could not be produced. Evidence is never discarded over a
// post-processing failure.
func (c *Capturer) degraded(label string, raw []byte, takenAt time.Time, warning string) (*Result, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("capture %q: %s", label, warning)
	}
	c.log.Warn("returning degraded capture", zap.String("label", label), zap.String("reason", warning))
	result := &Result{
		Label:    label,
		PNG:      raw,
		Segments: 1,
		TakenAt:  takenAt,
		Warning:  warning,
	}
	if cfg, err := png.DecodeConfig(bytes.NewReader(raw)); err == nil {
		result.Width, result.Height = cfg.Width, cfg.Height
	}
	return result, nil
}

func joinWarnings(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
