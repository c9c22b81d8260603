package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ErrVerificationFailed reports that a page was reached but the expected
// content anchor never appeared within the budget. Treated as a soft
// failure: any evidence captured afterwards is marked invalid rather
// than silently accepted.
var ErrVerificationFailed = errors.New("content anchor not found")

// anchorPollInterval is how often the rendered page is re-read while
// waiting for an anchor.
const anchorPollInterval = 500 * time.Millisecond

// WaitForAnchor polls the rendered page until the anchor text appears or
// the budget expires. Single-page apps change the URL before data
// fetches complete, so arrival at a target is proven by content, never
// by URL alone. This is the one "is this page loaded" primitive; auth,
// navigation and tab activation all verify through it.
func (c *Controller) WaitForAnchor(ctx context.Context, anchor string, budget time.Duration) error {
	if anchor == "" {
		return errors.New("anchor text required")
	}
	if budget <= 0 {
		budget = 30 * time.Second
	}

	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(anchorPollInterval)
	defer ticker.Stop()

	for {
		src, err := c.HTML(ctx)
		if err == nil && ContainsAnchor(src, anchor) {
			c.log.Debug("anchor verified", zap.String("anchor", anchor))
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %q did not appear within %s at %s",
				ErrVerificationFailed, anchor, budget, c.CurrentURL())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %q: %v", ErrVerificationFailed, anchor, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ContainsAnchor reports whether the anchor text occurs in the visible
// text of the document. Matching is case-insensitive and
// whitespace-normalized so markup layout changes do not break anchors.
func ContainsAnchor(src, anchor string) bool {
	text := normalizeSpace(VisibleText(src))
	needle := normalizeSpace(anchor)
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(needle))
}

// VisibleText extracts the text a user would see from document markup,
// skipping script, style and other non-rendered subtrees.
func VisibleText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return src
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return b.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
