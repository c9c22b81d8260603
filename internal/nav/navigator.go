package nav

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"evidencer/internal/config"

	"go.uber.org/zap"
)

// ErrNavigationFailed reports that every strategy for reaching a target
// was exhausted.
var ErrNavigationFailed = errors.New("navigation failed")

// NavigationFailure lists what was attempted so the caller can retry
// with a corrected target instead of guessing. The navigator itself
// never guesses alternate resource names.
type NavigationFailure struct {
	Target    Target
	Attempted []string
}

func (e *NavigationFailure) Error() string {
	return fmt.Sprintf("%v: could not reach %s (attempted: %s)",
		ErrNavigationFailed, e.Target.Describe(), strings.Join(e.Attempted, "; "))
}

func (e *NavigationFailure) Unwrap() error { return ErrNavigationFailed }

// Console is the browser surface the navigator drives. The real
// implementation wraps the browser Controller plus the resolution
// engine; tests substitute a fake.
type Console interface {
	// CurrentURL returns the page's current URL.
	CurrentURL() string

	// Goto loads a URL and waits for the initial document.
	Goto(ctx context.Context, url string, timeout time.Duration) error

	// VerifyAnchor waits for a content anchor to render.
	VerifyAnchor(ctx context.Context, anchor string, budget time.Duration) error

	// Region reads the console's current region.
	Region(ctx context.Context) (string, error)

	// SwitchRegion changes the console region and verifies the selector
	// reflects the new region before returning.
	SwitchRegion(ctx context.Context, region string) error

	// SearchTop types into the console's global search and returns the
	// label of the top result without activating it.
	SearchTop(ctx context.Context, service string) (string, error)

	// ActivateTopResult opens the current top search result.
	ActivateTopResult(ctx context.Context) error

	// ClickText activates the page element carrying the given text.
	ClickText(ctx context.Context, text string) error

	// ActivateTab activates the named tab on the current resource page.
	ActivateTab(ctx context.Context, tab string) error
}

// Navigator reaches navigation targets over a Console.
type Navigator struct {
	console    Console
	budgets    config.TimeoutConfig
	navTimeout time.Duration
	log        *zap.Logger
}

// NewNavigator builds a navigator. navTimeout bounds a single document
// load; content verification is budgeted per target class.
func NewNavigator(console Console, budgets config.TimeoutConfig, navTimeout time.Duration, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return &Navigator{console: console, budgets: budgets, navTimeout: navTimeout, log: logger}
}

// Reach brings the console to the target and verifies arrival by
// content anchor, not URL alone; single-page apps change the URL
// before data fetches complete. Calling Reach again for a target the
// session is already on performs no browser navigation at all.
func (n *Navigator) Reach(ctx context.Context, t Target) error {
	t = t.Normalize()
	budget := n.budgets.BudgetFor(t.Service)
	var attempted []string

	// Session reuse: already on this exact view.
	if current, ok := ParseDeepLink(n.console.CurrentURL()); ok && current.Equal(t) {
		n.log.Debug("already on target, no navigation", zap.String("target", t.Describe()))
		return nil
	}

	// Region must be fully settled before any navigation against it.
	if t.Region != "" {
		current, err := n.console.Region(ctx)
		if err == nil && current != "" && current != t.Region {
			n.log.Info("switching region",
				zap.String("from", current), zap.String("to", t.Region))
			if err := n.console.SwitchRegion(ctx, t.Region); err != nil {
				return fmt.Errorf("switch region to %s: %w", t.Region, err)
			}
		}
	}

	// Preferred: direct deep link.
	if link, ok := BuildDeepLink(t); ok {
		attempted = append(attempted, "deep-link "+link)
		if err := n.reachDirect(ctx, t, link, budget); err == nil {
			return nil
		} else {
			n.log.Warn("deep link failed, falling back to UI search",
				zap.String("target", t.Describe()), zap.Error(err))
			attempted[len(attempted)-1] += ": " + err.Error()
		}
	}

	// Fallback: UI traversal through the console's global search.
	attempted = append(attempted, "ui-search")
	if err := n.reachViaSearch(ctx, t, budget); err != nil {
		attempted[len(attempted)-1] += ": " + err.Error()
		return &NavigationFailure{Target: t, Attempted: attempted}
	}
	return nil
}

// reachDirect loads the deep link and proves arrival by anchor. The
// URL grammar only carries a tab alongside a resource id, so a tab on
// a service-level target is activated through the UI after arrival.
func (n *Navigator) reachDirect(ctx context.Context, t Target, link string, budget time.Duration) error {
	if err := n.console.Goto(ctx, link, n.navTimeout); err != nil {
		return err
	}
	if err := n.console.VerifyAnchor(ctx, n.anchorFor(t), budget); err != nil {
		return err
	}
	if t.Tab != "" && t.Resource == "" {
		if err := n.console.ActivateTab(ctx, t.Tab); err != nil {
			return err
		}
		return n.console.VerifyAnchor(ctx, n.anchorFor(t), budget)
	}
	return nil
}

// reachViaSearch drives the console search box: type the service name,
// require the top result to match it exactly (fuzzy acceptance of the
// top result was a known source of misnavigation), activate it, then
// walk to the resource and tab.
func (n *Navigator) reachViaSearch(ctx context.Context, t Target, budget time.Duration) error {
	searchName := t.Service
	link, known := LookupService(t.Service)
	if known && link.SearchName != "" {
		searchName = link.SearchName
	}

	top, err := n.console.SearchTop(ctx, searchName)
	if err != nil {
		return fmt.Errorf("console search for %q: %w", searchName, err)
	}
	if !strings.EqualFold(strings.TrimSpace(top), searchName) {
		return fmt.Errorf("search top result %q does not match service %q", top, searchName)
	}
	if err := n.console.ActivateTopResult(ctx); err != nil {
		return fmt.Errorf("open search result %q: %w", top, err)
	}

	serviceAnchor := t.Service
	if known && link.Anchor != "" {
		serviceAnchor = link.Anchor
	}
	if err := n.console.VerifyAnchor(ctx, serviceAnchor, budget); err != nil {
		return err
	}

	if t.Resource != "" {
		if err := n.console.ClickText(ctx, t.Resource); err != nil {
			return err
		}
		if err := n.console.VerifyAnchor(ctx, t.Resource, budget); err != nil {
			return err
		}
	}

	if t.Tab != "" {
		if err := n.console.ActivateTab(ctx, t.Tab); err != nil {
			return err
		}
		// Tab activation is itself asynchronous; re-verify.
		if err := n.console.VerifyAnchor(ctx, n.anchorFor(t), budget); err != nil {
			return err
		}
	}
	return nil
}

// anchorFor picks the content anchor proving the target's data has
// loaded: the resource id when one is requested (it renders exactly
// once its page is live), the service's list anchor otherwise.
func (n *Navigator) anchorFor(t Target) string {
	if t.Resource != "" {
		return t.Resource
	}
	if link, ok := LookupService(t.Service); ok && link.Anchor != "" {
		return link.Anchor
	}
	return t.Service
}
