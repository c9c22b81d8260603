// Package nav maps a (service, resource, tab, region) intent onto the
// AWS console: by deep-link URL when a mapping is known, by UI
// traversal when not. Deep-linking is strongly preferred; it is
// several times faster and far more reliable than driving the console's
// search UI.
package nav

import (
	"html"
	"strings"
)

// Target identifies the console view evidence is wanted from.
// Constructed per request by the orchestration loop, consumed once.
type Target struct {
	Service   string `json:"service"`
	Resource  string `json:"resource,omitempty"`
	IsCluster bool   `json:"is_cluster,omitempty"`
	Tab       string `json:"tab,omitempty"`
	Region    string `json:"region"`
}

// tabAliases maps the names humans (and LLM planners) use for tabs onto
// the console's tab slugs. Extend as services are added; unknown names
// pass through slugified.
var tabAliases = map[string]string{
	"backup":        "maintenance-and-backups",
	"backups":       "maintenance-and-backups",
	"maintenance":   "maintenance-and-backups",
	"config":        "configuration",
	"configuration": "configuration",
	"connectivity":  "connectivity-and-security",
	"security":      "connectivity-and-security",
	"monitoring":    "monitoring",
	"logs":          "logs-and-events",
	"tags":          "tags",
}

// Normalize returns the target with request noise removed: HTML
// entities decoded (intents arriving through chat front ends carry
// them), names lowercased where the console is case-sensitive, and tab
// aliases resolved to their slugs. Idempotent.
func (t Target) Normalize() Target {
	t.Service = strings.ToLower(strings.TrimSpace(html.UnescapeString(t.Service)))
	t.Resource = strings.TrimSpace(html.UnescapeString(t.Resource))
	t.Region = strings.ToLower(strings.TrimSpace(t.Region))
	t.Tab = normalizeTab(t.Tab)
	return t
}

func normalizeTab(tab string) string {
	tab = strings.ToLower(strings.TrimSpace(html.UnescapeString(tab)))
	if tab == "" {
		return ""
	}
	if slug, ok := tabAliases[tab]; ok {
		return slug
	}
	return strings.ReplaceAll(tab, " ", "-")
}

// Equal reports whether two normalized targets identify the same view.
func (t Target) Equal(other Target) bool {
	return t.Service == other.Service &&
		t.Resource == other.Resource &&
		t.IsCluster == other.IsCluster &&
		t.Tab == other.Tab &&
		t.Region == other.Region
}

// Describe renders the target for error messages and logs.
func (t Target) Describe() string {
	var b strings.Builder
	b.WriteString(t.Service)
	if t.Resource != "" {
		b.WriteByte('/')
		b.WriteString(t.Resource)
	}
	if t.Tab != "" {
		b.WriteByte('#')
		b.WriteString(t.Tab)
	}
	if t.Region != "" {
		b.WriteString(" (")
		b.WriteString(t.Region)
		b.WriteByte(')')
	}
	return b.String()
}
