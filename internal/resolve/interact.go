package resolve

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// PostCondition confirms that an interaction actually took effect:
// a state change, a navigation, or an attribute change. Nil means the
// first method that returns no error is trusted.
type PostCondition func(ctx context.Context, page *rod.Page) bool

// interactionMethod is one way of activating an element. The console's
// React controls do not all respond to the same event sequence, so
// methods escalate from the native CDP click to synthetic events.
type interactionMethod struct {
	name string
	run  func(el *rod.Element) error
}

var interactionMethods = []interactionMethod{
	{
		name: "native-click",
		run: func(el *rod.Element) error {
			return el.Click(proto.InputMouseButtonLeft, 1)
		},
	},
	{
		name: "dispatch-events",
		run: func(el *rod.Element) error {
			_, err := el.Eval(`() => {
				this.click();
				this.dispatchEvent(new Event('input', { bubbles: true }));
				this.dispatchEvent(new Event('change', { bubbles: true }));
			}`)
			return err
		},
	},
	{
		name: "pointer-sequence",
		run: func(el *rod.Element) error {
			_, err := el.Eval(`() => {
				const opts = { bubbles: true, cancelable: true, view: window };
				for (const type of ['pointerdown', 'mousedown', 'pointerup', 'mouseup', 'click']) {
					const ev = type.startsWith('pointer')
						? new PointerEvent(type, opts)
						: new MouseEvent(type, opts);
					this.dispatchEvent(ev);
				}
			}`)
			return err
		},
	},
}

// Interact activates the element, escalating through the interaction
// methods until the post-condition confirms success or all methods are
// exhausted. Before the first attempt the element is unobstructed,
// scrolled into view and, when the query asks for it, force-enabled.
func Interact(ctx context.Context, page *rod.Page, el *rod.Element, q Query, post PostCondition, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	clearObstructions(page)
	_ = el.ScrollIntoView()
	if q.ForceEnable {
		forceEnable(el)
	}

	tried := make([]string, 0, len(interactionMethods))
	for _, method := range interactionMethods {
		if err := ctx.Err(); err != nil {
			break
		}

		err := method.run(el)
		tried = append(tried, method.name)
		if err != nil {
			logger.Debug("interaction method failed",
				zap.String("method", method.name), zap.Error(err))
			continue
		}

		if post == nil {
			return nil
		}
		if confirmed(ctx, page, post) {
			logger.Debug("interaction confirmed", zap.String("method", method.name))
			return nil
		}
	}

	return &InteractionError{Target: q.Target, Methods: tried}
}

// confirmed polls the post-condition briefly; React state propagation
// and event handlers are asynchronous.
func confirmed(ctx context.Context, page *rod.Page, post PostCondition) bool {
	deadline := time.Now().Add(2 * time.Second)
	for {
		if post(ctx, page) {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// clearObstructions neutralizes overlay elements that intercept clicks
// meant for the target underneath (loading veils, toast containers).
func clearObstructions(page *rod.Page) {
	_, _ = page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			const selectors = [
				'[class*="overlay"]', '[class*="backdrop"]',
				'[class*="spinner"]', '[class*="toast"]',
			];
			for (const sel of selectors) {
				for (const el of document.querySelectorAll(sel)) {
					const style = window.getComputedStyle(el);
					if (style.position === 'fixed' || style.position === 'absolute') {
						el.style.pointerEvents = 'none';
					}
				}
			}
			return true;
		}`,
		ByValue:      true,
		AwaitPromise: true,
	})
}

// forceEnable strips a client-side disabled state. Only called for
// targets known to be script-gated rather than genuinely unavailable.
func forceEnable(el *rod.Element) {
	_, _ = el.Eval(`() => {
		this.removeAttribute('disabled');
		this.setAttribute('aria-disabled', 'false');
		this.classList.remove('disabled');
	}`)
}

// Selected reads back whether a selection control is actually selected.
// Selection flows must verify through this before proceeding; an
// unconfirmed selection is a failure, not a silent success.
func Selected(el *rod.Element) bool {
	res, err := el.Eval(`() => {
		if (typeof this.checked === 'boolean') return this.checked;
		const sel = this.getAttribute('aria-selected');
		if (sel !== null) return sel === 'true';
		const chk = this.getAttribute('aria-checked');
		if (chk !== null) return chk === 'true';
		return this.classList.contains('selected') || this.classList.contains('active');
	}`)
	if err != nil || res == nil {
		return false
	}
	return res.Value.Bool()
}
