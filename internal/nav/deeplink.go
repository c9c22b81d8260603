package nav

import (
	"fmt"
	"net/url"
	"strings"
)

// ServiceLink is one service's deep-link mapping. Resource-type tokens
// and anchors are service-specific console vocabulary; they are held
// here as data, never derived algorithmically.
type ServiceLink struct {
	// ResourceType is the fragment token naming the resource kind,
	// e.g. "database" in #database:id=demo-cluster.
	ResourceType string

	// SupportsCluster marks services whose fragment carries the
	// is-cluster flag.
	SupportsCluster bool

	// Anchor is the content string proving the service's list view has
	// actually rendered its data.
	Anchor string

	// SearchName is what the console's global search knows the service
	// as, for the UI fallback.
	SearchName string
}

// serviceLinks is the deep-link lookup table. A service absent from the
// table can still be reached through the UI-search fallback.
var serviceLinks = map[string]ServiceLink{
	"rds":        {ResourceType: "database", SupportsCluster: true, Anchor: "Databases", SearchName: "RDS"},
	"ec2":        {ResourceType: "instance", Anchor: "Instances", SearchName: "EC2"},
	"s3":         {ResourceType: "bucket", Anchor: "Buckets", SearchName: "S3"},
	"dynamodb":   {ResourceType: "table", Anchor: "Tables", SearchName: "DynamoDB"},
	"kms":        {ResourceType: "key", Anchor: "Customer managed keys", SearchName: "Key Management Service"},
	"backup":     {ResourceType: "backupvault", Anchor: "Backup vaults", SearchName: "AWS Backup"},
	"cloudtrail": {ResourceType: "trail", Anchor: "Trails", SearchName: "CloudTrail"},
	"lambda":     {ResourceType: "function", Anchor: "Functions", SearchName: "Lambda"},
	"iam":        {ResourceType: "role", Anchor: "Roles", SearchName: "IAM"},
}

// LookupService returns the deep-link mapping for a normalized service
// name.
func LookupService(service string) (ServiceLink, bool) {
	link, ok := serviceLinks[service]
	return link, ok
}

// BuildDeepLink constructs the direct URL for a normalized target, or
// reports false when no mapping exists. Grammar:
//
//	https://{region}.console.aws.amazon.com/{service}/home?region={region}#{resourceType}:id={resourceId};is-cluster={bool};tab={tabSlug}
func BuildDeepLink(t Target) (string, bool) {
	link, ok := serviceLinks[t.Service]
	if !ok || t.Region == "" {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "https://%s.console.aws.amazon.com/%s/home?region=%s", t.Region, t.Service, t.Region)

	if t.Resource != "" {
		fmt.Fprintf(&b, "#%s:id=%s", link.ResourceType, url.PathEscape(t.Resource))
		if link.SupportsCluster {
			fmt.Fprintf(&b, ";is-cluster=%t", t.IsCluster)
		}
		if t.Tab != "" {
			fmt.Fprintf(&b, ";tab=%s", t.Tab)
		}
	}

	return b.String(), true
}

// ParseDeepLink recovers the target a console URL points at. Used for
// the session-reuse check (already on target means no navigation) and
// to keep the grammar round-trippable.
func ParseDeepLink(raw string) (Target, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, false
	}

	host := strings.ToLower(u.Host)
	const consoleSuffix = ".console.aws.amazon.com"
	if !strings.HasSuffix(host, consoleSuffix) {
		return Target{}, false
	}
	region := strings.TrimSuffix(host, consoleSuffix)
	if region == "" || strings.Contains(region, ".") {
		return Target{}, false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		return Target{}, false
	}
	t := Target{Service: parts[0], Region: region}

	if q := u.Query().Get("region"); q != "" {
		t.Region = q
	}

	link, known := serviceLinks[t.Service]
	if !known {
		return Target{}, false
	}

	if u.Fragment != "" {
		prefix := link.ResourceType + ":"
		if !strings.HasPrefix(u.Fragment, prefix) {
			return Target{}, false
		}
		for _, field := range strings.Split(strings.TrimPrefix(u.Fragment, prefix), ";") {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			switch key {
			case "id":
				if unescaped, err := url.PathUnescape(value); err == nil {
					t.Resource = unescaped
				} else {
					t.Resource = value
				}
			case "is-cluster":
				t.IsCluster = value == "true"
			case "tab":
				t.Tab = value
			}
		}
	}

	return t, true
}
