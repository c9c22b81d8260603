package nav

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"evidencer/internal/browser"
	"evidencer/internal/resolve"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// regionSelectorQuery locates the console's region selector. Its markup
// has churned repeatedly, hence the fallback chain: explicit test id,
// aria-label substring, then nav button text.
var regionSelectorQuery = resolve.Query{
	Target:    "awsc-nav-regions-menu-button",
	Fallbacks: []string{"Region selector", "regions-menu"},
	Timeout:   3 * time.Second,
}

// searchInputSelector locates the console's global search box.
const searchInputSelector = `input[type="search"], #awsc-concierge-input, [data-testid="awsc-nav-search"] input`

// BrowserConsole implements Console on the live browser session.
type BrowserConsole struct {
	ctrl *browser.Controller
	log  *zap.Logger
}

// NewBrowserConsole wraps the controller.
func NewBrowserConsole(ctrl *browser.Controller, logger *zap.Logger) *BrowserConsole {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserConsole{ctrl: ctrl, log: logger}
}

// CurrentURL implements Console.
func (c *BrowserConsole) CurrentURL() string {
	return c.ctrl.CurrentURL()
}

// Goto implements Console.
func (c *BrowserConsole) Goto(ctx context.Context, target string, timeout time.Duration) error {
	return c.ctrl.Goto(ctx, target, timeout)
}

// VerifyAnchor implements Console.
func (c *BrowserConsole) VerifyAnchor(ctx context.Context, anchor string, budget time.Duration) error {
	return c.ctrl.WaitForAnchor(ctx, anchor, budget)
}

// Region implements Console. The URL's region parameter is ground
// truth once on a service page; the selector label is the fallback for
// pages that do not carry it.
func (c *BrowserConsole) Region(ctx context.Context) (string, error) {
	if u, err := url.Parse(c.ctrl.CurrentURL()); err == nil {
		if q := u.Query().Get("region"); q != "" {
			return q, nil
		}
		host := strings.ToLower(u.Host)
		if region, ok := strings.CutSuffix(host, ".console.aws.amazon.com"); ok && !strings.Contains(region, ".") {
			return region, nil
		}
	}

	page := c.ctrl.Page()
	if page == nil {
		return "", fmt.Errorf("browser not started")
	}
	el, err := resolve.Resolve(ctx, page, regionSelectorQuery, c.log)
	if err != nil {
		return "", err
	}
	label, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read region selector: %w", err)
	}
	return strings.TrimSpace(label), nil
}

// SwitchRegion implements Console: open the region selector, pick the
// region, then read the selection back before returning. Navigation
// must never race an unsettled region change.
func (c *BrowserConsole) SwitchRegion(ctx context.Context, region string) error {
	page := c.ctrl.Page()
	if page == nil {
		return fmt.Errorf("browser not started")
	}

	selector, err := resolve.Resolve(ctx, page, regionSelectorQuery, c.log)
	if err != nil {
		return err
	}
	if err := resolve.Interact(ctx, page, selector, regionSelectorQuery, nil, c.log); err != nil {
		return err
	}

	optionQuery := resolve.Query{Target: region, Timeout: 3 * time.Second}
	option, err := resolve.Resolve(ctx, page, optionQuery, c.log)
	if err != nil {
		return err
	}
	if err := resolve.Interact(ctx, page, option, optionQuery, nil, c.log); err != nil {
		return err
	}

	// Read-back: the console reflects the new region in the URL (or the
	// selector label) once the switch has settled.
	deadline := time.Now().Add(15 * time.Second)
	for {
		if current, err := c.Region(ctx); err == nil && current == region {
			return nil
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return fmt.Errorf("%w: region selector does not reflect %q", browser.ErrVerificationFailed, region)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// SearchTop implements Console: focus the global search box, type the
// service name, and report the top suggestion without opening it.
func (c *BrowserConsole) SearchTop(ctx context.Context, service string) (string, error) {
	page := c.ctrl.Page()
	if page == nil {
		return "", fmt.Errorf("browser not started")
	}

	box, err := page.Context(ctx).Timeout(5 * time.Second).Element(searchInputSelector)
	if err != nil {
		return "", fmt.Errorf("console search box not found: %w", err)
	}
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("focus search box: %w", err)
	}
	if err := box.SelectAllText(); err == nil {
		_ = box.Input("")
	}
	if err := box.Input(service); err != nil {
		return "", fmt.Errorf("type into search box: %w", err)
	}

	// Suggestions render asynchronously.
	result, err := page.Context(ctx).Timeout(10*time.Second).ElementR(
		`[data-testid*="search-result"], [class*="search"] a, [role="option"]`,
		resolve.SubstringPattern(service))
	if err != nil {
		return "", fmt.Errorf("no search results for %q: %w", service, err)
	}
	text, err := result.Text()
	if err != nil {
		return "", fmt.Errorf("read top search result: %w", err)
	}
	return firstLine(text), nil
}

// ActivateTopResult implements Console by accepting the highlighted
// suggestion.
func (c *BrowserConsole) ActivateTopResult(ctx context.Context) error {
	page := c.ctrl.Page()
	if page == nil {
		return fmt.Errorf("browser not started")
	}
	box, err := page.Context(ctx).Timeout(5 * time.Second).Element(searchInputSelector)
	if err != nil {
		return fmt.Errorf("console search box not found: %w", err)
	}
	if err := box.Type(input.Enter); err != nil {
		return fmt.Errorf("accept top search result: %w", err)
	}
	return nil
}

// ClickText implements Console.
func (c *BrowserConsole) ClickText(ctx context.Context, text string) error {
	page := c.ctrl.Page()
	if page == nil {
		return fmt.Errorf("browser not started")
	}
	q := resolve.Query{Target: text, Timeout: 5 * time.Second}
	el, err := resolve.Resolve(ctx, page, q, c.log)
	if err != nil {
		return err
	}
	return resolve.Interact(ctx, page, el, q, nil, c.log)
}

// ActivateTab implements Console. Tab labels differ from tab slugs
// ("maintenance-and-backups" renders as "Maintenance & backups"), so
// the slug, the de-slugged label, and the raw name are all tried.
func (c *BrowserConsole) ActivateTab(ctx context.Context, tab string) error {
	page := c.ctrl.Page()
	if page == nil {
		return fmt.Errorf("browser not started")
	}

	q := resolve.Query{
		Target:    tabLabel(tab),
		Fallbacks: []string{tab, strings.ReplaceAll(tab, "-", " ")},
		Roles:     []string{`[role="tab"]`, `a`, `button`},
		Timeout:   5 * time.Second,
	}
	el, err := resolve.Resolve(ctx, page, q, c.log)
	if err != nil {
		return err
	}
	return resolve.Interact(ctx, page, el, q, func(context.Context, *rod.Page) bool {
		return resolve.Selected(el)
	}, c.log)
}

// tabLabel renders a tab slug the way the console titles it:
// "maintenance-and-backups" becomes "Maintenance & backups".
func tabLabel(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		switch w {
		case "and":
			words[i] = "&"
		case "":
		default:
			if i == 0 {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
	}
	return strings.Join(words, " ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
