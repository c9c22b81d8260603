package resolve

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
)

// Resolve finds an element for the query, trying every signature
// against the ordered strategy list and stopping at the first match.
// Failure is a *NotFoundError naming everything that was tried; no
// opaque low-level error crosses this boundary.
func Resolve(ctx context.Context, page *rod.Page, q Query, logger *zap.Logger) (*rod.Element, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	signatures := q.Signatures()
	if len(signatures) == 0 {
		return nil, fmt.Errorf("resolve: empty query")
	}

	strategies := Strategies(q.Roles)
	tried := make([]string, 0, len(strategies)*len(signatures))

	p := page.Context(ctx)
	for _, sig := range signatures {
		for _, strat := range strategies {
			if err := ctx.Err(); err != nil {
				return nil, &NotFoundError{Target: q.Target, Tried: tried, URL: pageURL(page)}
			}

			el, err := strat.Find(p, sig, q.PerStrategyTimeout())
			if err == nil && el != nil {
				logger.Debug("element resolved",
					zap.String("target", sig),
					zap.String("strategy", strat.Name))
				return el, nil
			}
			tried = append(tried, fmt.Sprintf("%s(%q)", strat.Name, sig))
		}
	}

	return nil, &NotFoundError{Target: q.Target, Tried: tried, URL: pageURL(page)}
}

func pageURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}
