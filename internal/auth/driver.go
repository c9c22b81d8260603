package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"evidencer/internal/browser"
	"evidencer/internal/resolve"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
)

// selectionRoles narrows resolution to the controls a sign-in page uses
// for choosing accounts and roles.
var selectionRoles = []string{
	`input[type="radio"]`, `[role="radio"]`, `label`, `[role="option"]`, `[role="listitem"]`,
}

// redirectPollInterval is how often the URL is re-read during the MFA
// wait. Generous, since the wait is gated on a human anyway.
const redirectPollInterval = 2 * time.Second

// BrowserDriver implements Driver on the live browser session.
type BrowserDriver struct {
	ctrl *browser.Controller
	ep   Endpoints
	log  *zap.Logger
}

// NewBrowserDriver wraps the controller. The endpoints classify where
// in the sign-in flow the page currently is.
func NewBrowserDriver(ctrl *browser.Controller, ep Endpoints, logger *zap.Logger) *BrowserDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserDriver{ctrl: ctrl, ep: ep, log: logger}
}

// CurrentURL implements Driver.
func (d *BrowserDriver) CurrentURL() string {
	return d.ctrl.CurrentURL()
}

// Goto implements Driver. The controller's default navigation timeout
// applies.
func (d *BrowserDriver) Goto(ctx context.Context, target string) error {
	return d.ctrl.Goto(ctx, target, 0)
}

// AwaitRedirect implements Driver: a bounded poll for the sign-in
// moving past the MFA prompt, with no navigation of any kind issued
// while waiting. Departure is a state change, not a domain change: on
// IAM Identity Center the account chooser is served from the same
// domain as the MFA prompt, so approval may never leave the domain at
// all.
func (d *BrowserDriver) AwaitRedirect(ctx context.Context, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(redirectPollInterval)
	defer ticker.Stop()

	for {
		current := d.ctrl.CurrentURL()
		if mfaResolved(current, d.ep) {
			return current, nil
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("still awaiting MFA approval after %s", wait)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// mfaResolved reports whether the page has moved past the MFA prompt.
// Blank or hostless URLs read mid-redirect count as still waiting.
func mfaResolved(rawURL string, ep Endpoints) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return Classify(rawURL, ep) != StateAwaitingMFA
}

// Options implements Driver: the visible selection labels, for
// diagnosable option-not-found errors.
func (d *BrowserDriver) Options(ctx context.Context) ([]string, error) {
	page := d.ctrl.Page()
	if page == nil {
		return nil, fmt.Errorf("browser not started")
	}

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `() => {
			const labels = [];
			const seen = new Set();
			for (const el of document.querySelectorAll('input[type="radio"], [role="radio"], [role="option"]')) {
				let text = '';
				if (el.labels && el.labels.length) {
					text = el.labels[0].innerText;
				}
				if (!text && el.closest('label')) {
					text = el.closest('label').innerText;
				}
				if (!text && el.parentElement) {
					text = el.parentElement.innerText;
				}
				text = (text || '').trim().replace(/\s+/g, ' ');
				if (text && !seen.has(text)) {
					seen.add(text);
					labels.push(text.slice(0, 120));
				}
			}
			return labels;
		}`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return nil, fmt.Errorf("list selection options: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("decode selection options: %w", err)
	}
	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("decode selection options: %w", err)
	}
	return labels, nil
}

// Select implements Driver. The console's selection controls do not
// reliably respond to any single interaction method, so four are tried
// in order: direct state mutation plus change-event dispatch, a
// simulated pointer sequence, the associated label element, and finally
// the resolution engine's native-interaction fallback. After each
// one the control's selected state is read back. No read-back
// confirmation after all four means the sign-in attempt failed; it is
// never silently continued.
func (d *BrowserDriver) Select(ctx context.Context, label string) error {
	page := d.ctrl.Page()
	if page == nil {
		return fmt.Errorf("browser not started")
	}

	q := resolve.Query{Target: label, Roles: selectionRoles, Timeout: 3 * time.Second}
	el, err := resolve.Resolve(ctx, page, q, d.log)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOptionNotFound, err)
	}

	// Stage 1: direct state mutation + change-event dispatch.
	_, _ = el.Eval(`() => {
		if ('checked' in this) this.checked = true;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`)
	if resolve.Selected(el) {
		return nil
	}

	// Stage 2: simulated pointer-down/up/click sequence.
	_, _ = el.Eval(`() => {
		const opts = { bubbles: true, cancelable: true, view: window };
		for (const type of ['pointerdown', 'mousedown', 'pointerup', 'mouseup', 'click']) {
			const ev = type.startsWith('pointer')
				? new PointerEvent(type, opts)
				: new MouseEvent(type, opts);
			this.dispatchEvent(ev);
		}
	}`)
	if resolve.Selected(el) {
		return nil
	}

	// Stage 3: activate the associated label element.
	_, _ = el.Eval(`() => {
		if (this.labels && this.labels.length) {
			this.labels[0].click();
		} else if (this.id) {
			const lbl = document.querySelector('label[for="' + this.id + '"]');
			if (lbl) lbl.click();
		} else if (this.closest('label')) {
			this.closest('label').click();
		}
	}`)
	if resolve.Selected(el) {
		return nil
	}

	// Stage 4: the resolution engine's native-interaction fallback.
	err = resolve.Interact(ctx, page, el, q, func(context.Context, *rod.Page) bool {
		return resolve.Selected(el)
	}, d.log)
	if err == nil && resolve.Selected(el) {
		return nil
	}

	return fmt.Errorf("%w: selection of %q not confirmed by read-back",
		browser.ErrVerificationFailed, label)
}

// Activate implements Driver: resolve and click a named control,
// falling back to common synonyms for the sign-in confirmation.
func (d *BrowserDriver) Activate(ctx context.Context, label string) error {
	page := d.ctrl.Page()
	if page == nil {
		return fmt.Errorf("browser not started")
	}

	q := resolve.Query{
		Target:    label,
		Fallbacks: []string{"Continue", "Submit", "Sign In"},
		Timeout:   3 * time.Second,
	}
	el, err := resolve.Resolve(ctx, page, q, d.log)
	if err != nil {
		return err
	}
	return resolve.Interact(ctx, page, el, q, nil, d.log)
}
