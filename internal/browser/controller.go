// Package browser owns the one live browser instance evidencer drives
// through the AWS console. The Controller is the only component that
// touches the browser; everything above it works in terms of navigate,
// click, scroll and screenshot primitives.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNavigationTimeout reports that a document never reached a stable
// ready state within its budget.
var ErrNavigationTimeout = errors.New("navigation timeout")

// Config holds browser configuration.
type Config struct {
	Bin                 string `json:"bin"`
	Headless            bool   `json:"headless"`
	ProfileDir          string `json:"profile_dir"`
	ViewportWidth       int    `json:"viewport_width"`
	ViewportHeight      int    `json:"viewport_height"`
	NavigationTimeoutMs int    `json:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the document-load timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Controller owns the single live browser session. All operations
// mutate that shared session; callers serialize access (see agent
// package), no operation here is safe to run concurrently with another
// on the same Controller.
type Controller struct {
	cfg Config
	log *zap.Logger

	mu         sync.Mutex
	profile    *Profile
	browser    *rod.Browser
	page       *rod.Page
	controlURL string
	meta       SessionMeta
}

// NewController creates a controller. The browser is not launched until
// Start is called.
func NewController(cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, log: logger}
}

// Start launches the browser over the persistent profile, or returns
// immediately if a live session already exists. Launching a second
// browser against an already-locked profile is rejected with
// ErrProfileLocked rather than attempted.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		if _, err := c.browser.Version(); err == nil {
			return nil // live session, reuse it
		}
		c.log.Warn("stale browser connection, relaunching")
		_ = c.browser.Close()
		c.browser = nil
		c.page = nil
		c.controlURL = ""
	}

	profile, err := OpenProfile(c.cfg.ProfileDir)
	if err != nil {
		return err
	}
	if profile.Locked() {
		return fmt.Errorf("%w: %s", ErrProfileLocked, profile.Dir)
	}
	c.profile = profile

	meta, err := profile.LoadMeta()
	if err != nil {
		return err
	}
	if meta.ID == "" {
		meta = SessionMeta{ID: uuid.NewString(), CreatedAt: time.Now()}
	}
	meta.LastActive = time.Now()
	c.meta = meta

	launch := launcher.New().
		Headless(c.cfg.Headless).
		UserDataDir(profile.Dir)
	if c.cfg.Bin != "" {
		launch = launch.Bin(c.cfg.Bin)
	}

	controlURL, err := launch.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.GetViewportWidth(),
		Height:            c.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		c.log.Warn("failed to set viewport", zap.Error(err))
	}

	c.browser = browser
	c.page = page
	c.controlURL = controlURL
	c.log.Info("browser session started",
		zap.String("session", meta.ID),
		zap.String("profile", profile.Dir),
		zap.Bool("headless", c.cfg.Headless))
	return nil
}

// Close persists session metadata and shuts the browser down.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser == nil {
		return nil
	}

	c.meta.LastActive = time.Now()
	if c.profile != nil {
		if info, err := c.page.Info(); err == nil {
			c.meta.URL = info.URL
		}
		if err := c.profile.SaveMeta(c.meta); err != nil {
			c.log.Warn("failed to persist session metadata", zap.Error(err))
		}
	}

	err := c.browser.Close()
	c.browser = nil
	c.page = nil
	c.controlURL = ""
	return err
}

// Meta returns the current session metadata.
func (c *Controller) Meta() SessionMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// IsConnected reports whether a live session exists.
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser != nil
}

// Page returns the active page. Callers must have Started the
// controller; a nil page means no live session.
func (c *Controller) Page() *rod.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Controller) activePage() (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page == nil {
		return nil, errors.New("browser not started")
	}
	c.meta.LastActive = time.Now()
	return c.page, nil
}

// Goto navigates to the URL and waits for the initial document to load.
// Success means the document loaded, not that app-level content has
// rendered; single-page apps route client-side after this point, so
// callers follow with WaitForAnchor.
func (c *Controller) Goto(ctx context.Context, url string, timeout time.Duration) error {
	page, err := c.activePage()
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.cfg.NavigationTimeout()
	}

	p := page.Context(ctx).Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return navError(url, timeout, err)
	}
	if err := p.WaitLoad(); err != nil {
		return navError(url, timeout, err)
	}
	c.log.Debug("navigated", zap.String("url", url))
	return nil
}

func navError(url string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s not stable within %s", ErrNavigationTimeout, url, timeout)
	}
	return fmt.Errorf("navigate %s: %w", url, err)
}

// CurrentURL returns the page's current URL, or "" with no live page.
func (c *Controller) CurrentURL() string {
	page, err := c.activePage()
	if err != nil {
		return ""
	}
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// HTML returns the page's current document markup.
func (c *Controller) HTML(ctx context.Context) (string, error) {
	page, err := c.activePage()
	if err != nil {
		return "", err
	}
	return page.Context(ctx).HTML()
}

// Scroll scrolls the page by the given offsets.
func (c *Controller) Scroll(ctx context.Context, dx, dy float64) error {
	page, err := c.activePage()
	if err != nil {
		return err
	}
	return page.Context(ctx).Mouse.Scroll(dx, dy, 1)
}

// ScrollTo scrolls the window to an absolute vertical offset and waits
// for the scroll to settle. Used by capture stitching, which needs
// deterministic positions rather than relative deltas.
func (c *Controller) ScrollTo(ctx context.Context, y float64) error {
	page, err := c.activePage()
	if err != nil {
		return err
	}
	_, err = page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           `(y) => { window.scrollTo(0, y); return window.scrollY; }`,
		JSArgs:       []interface{}{y},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("scroll to %v: %w", y, err)
	}
	time.Sleep(150 * time.Millisecond) // let lazy-rendered rows paint
	return nil
}

// PageMetrics describes the scrollable extent of the current page.
type PageMetrics struct {
	ViewportHeight float64 `json:"viewportHeight"`
	ContentHeight  float64 `json:"contentHeight"`
	ScrollY        float64 `json:"scrollY"`
}

// Metrics reports viewport and content heights for stitch planning.
func (c *Controller) Metrics(ctx context.Context) (PageMetrics, error) {
	var m PageMetrics
	page, err := c.activePage()
	if err != nil {
		return m, err
	}
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `() => ({
			viewportHeight: window.innerHeight,
			contentHeight: Math.max(
				document.body ? document.body.scrollHeight : 0,
				document.documentElement ? document.documentElement.scrollHeight : 0),
			scrollY: window.scrollY,
		})`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return m, fmt.Errorf("read page metrics: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return m, fmt.Errorf("decode page metrics: %w", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("decode page metrics: %w", err)
	}
	return m, nil
}

// Screenshot captures the current viewport, or the full page when
// fullPage is set.
func (c *Controller) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	page, err := c.activePage()
	if err != nil {
		return nil, err
	}
	return page.Context(ctx).Screenshot(fullPage, nil)
}
