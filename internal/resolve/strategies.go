package resolve

import (
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// defaultInteractiveSelector covers the elements a user can activate in
// the console UI. Radio inputs and labels are included because SAML
// role selection renders its choices as labeled radios.
const defaultInteractiveSelector = `button, a, [role="button"], [role="link"], [role="tab"], [role="menuitem"], [role="radio"], input[type="submit"], input[type="radio"], input[type="checkbox"], label`

// Strategy is one way of finding an element. Find blocks until a match
// appears or the timeout elapses.
type Strategy struct {
	Name string
	Find func(page *rod.Page, target string, timeout time.Duration) (*rod.Element, error)
}

// Strategies returns the ordered strategy list. Resolution stops at the
// first strategy that yields an element.
func Strategies(roles []string) []Strategy {
	interactive := interactiveSelector(roles)
	return []Strategy{
		{
			Name: "exact-text",
			Find: func(page *rod.Page, target string, timeout time.Duration) (*rod.Element, error) {
				return page.Timeout(timeout).ElementR(interactive, exactPattern(target))
			},
		},
		{
			Name: "attribute",
			Find: func(page *rod.Page, target string, timeout time.Duration) (*rod.Element, error) {
				return page.Timeout(timeout).Element(attributeSelector(target))
			},
		},
		{
			Name: "substring-text",
			Find: func(page *rod.Page, target string, timeout time.Duration) (*rod.Element, error) {
				return page.Timeout(timeout).ElementR(interactive, SubstringPattern(target))
			},
		},
		{
			Name: "structural",
			Find: func(page *rod.Page, target string, timeout time.Duration) (*rod.Element, error) {
				el, err := page.Timeout(timeout).ElementR("*", SubstringPattern(target))
				if err != nil {
					return nil, err
				}
				return nearestInteractive(el)
			},
		},
	}
}

func interactiveSelector(roles []string) string {
	if len(roles) == 0 {
		return defaultInteractiveSelector
	}
	return strings.Join(roles, ", ")
}

// exactPattern builds a js regex matching the whole trimmed text.
func exactPattern(target string) string {
	return `/^\s*` + jsRegexEscape(target) + `\s*$/`
}

// SubstringPattern builds a case-insensitive js substring regex in
// rod's /.../ form. Exported for callers that run their own
// constrained ElementR lookups.
func SubstringPattern(target string) string {
	return `/` + jsRegexEscape(target) + `/i`
}

// jsRegexEscape escapes target for embedding in a /.../ js regex
// literal. The forward slash must be escaped on top of the usual regex
// metacharacters because it delimits the literal.
func jsRegexEscape(target string) string {
	var b strings.Builder
	for _, r := range target {
		switch r {
		case '\\', '.', '+', '*', '?', '(', ')', '|', '[', ']', '{', '}', '^', '$', '/':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// attributeSelector matches elements whose identifying attributes
// contain the target string.
func attributeSelector(target string) string {
	escaped := cssEscape(target)
	attrs := []string{"id", "name", "aria-label", "data-testid", "data-analytics", "title"}
	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		parts = append(parts, `[`+attr+`*="`+escaped+`"]`)
	}
	return strings.Join(parts, ", ")
}

// cssEscape escapes target for embedding in a double-quoted CSS
// attribute selector string.
func cssEscape(target string) string {
	target = strings.ReplaceAll(target, `\`, `\\`)
	return strings.ReplaceAll(target, `"`, `\"`)
}

// interactiveTags are element names considered directly activatable
// when climbing from a bare text match.
var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true,
	"label": true, "summary": true, "option": true,
}

// nearestInteractive climbs from a text match to the closest
// activatable ancestor. A matched node that is itself interactive, or
// carries an interactive role, is returned as-is; with no interactive
// ancestor the original match is returned so the caller can still try
// clicking it.
func nearestInteractive(el *rod.Element) (*rod.Element, error) {
	cur := el
	for depth := 0; cur != nil && depth < 6; depth++ {
		desc, err := cur.Describe(0, false)
		if err != nil {
			return el, nil
		}
		tag := strings.ToLower(desc.NodeName)
		if interactiveTags[tag] {
			return cur, nil
		}
		if role, err := cur.Attribute("role"); err == nil && role != nil {
			switch *role {
			case "button", "link", "tab", "menuitem", "radio", "checkbox":
				return cur, nil
			}
		}
		parent, err := cur.Parent()
		if err != nil {
			break
		}
		cur = parent
	}
	return el, nil
}
