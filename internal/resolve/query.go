// Package resolve locates and interacts with DOM elements whose exact
// markup is unknown or unstable. The AWS console is React-rendered and
// changes without notice, so a target is described by what a human sees
// (text, role, attribute fragments) and resolved through an ordered
// list of strategies, each a pure lookup composed by first-match.
package resolve

import (
	"fmt"
	"strings"
	"time"
)

// Query describes one element to find. Ephemeral; constructed per
// interaction attempt.
type Query struct {
	// Target is the preferred visible text or attribute signature.
	Target string

	// Fallbacks are alternate signatures tried, in order, if Target
	// resolves nothing with any strategy.
	Fallbacks []string

	// Roles constrains the interactive elements considered by the text
	// strategies. Empty means the default interactive set.
	Roles []string

	// ForceEnable removes a client-side disabled state before
	// interacting. Only set when the target is known to be gated by
	// script, not genuinely unavailable.
	ForceEnable bool

	// Timeout bounds each individual strategy attempt.
	Timeout time.Duration
}

// PerStrategyTimeout returns the bound for a single strategy attempt.
func (q Query) PerStrategyTimeout() time.Duration {
	if q.Timeout <= 0 {
		return 2 * time.Second
	}
	return q.Timeout
}

// Signatures returns the target plus fallbacks, in resolution order.
func (q Query) Signatures() []string {
	out := make([]string, 0, 1+len(q.Fallbacks))
	if q.Target != "" {
		out = append(out, q.Target)
	}
	out = append(out, q.Fallbacks...)
	return out
}

// NotFoundError reports that every strategy was exhausted. It carries
// the strategies tried and the page URL so the caller (or the operator
// reading the surfaced message) can diagnose rather than guess.
type NotFoundError struct {
	Target string
	Tried  []string
	URL    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element %q not found (strategies tried: %s) at %s",
		e.Target, strings.Join(e.Tried, ", "), e.URL)
}

// InteractionError reports that an element was found but no interaction
// method produced the expected post-condition.
type InteractionError struct {
	Target  string
	Methods []string
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("element %q found but interaction failed (methods tried: %s)",
		e.Target, strings.Join(e.Methods, ", "))
}
