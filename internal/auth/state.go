// Package auth drives the browser through the SSO sign-in flow:
// identity-provider start page, push-MFA wait, account selection, SAML
// role selection, console confirmation. The current state is always
// recomputed from the browser's URL on entry; the ground truth lives
// in the browser, never in agent memory.
package auth

import (
	"net/url"
	"strings"
)

// State is the derived position within the sign-in flow.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingMFA
	StateAccountSelect
	StateRoleSelect
	StateAuthenticated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingMFA:
		return "awaiting-mfa"
	case StateAccountSelect:
		return "account-select"
	case StateRoleSelect:
		return "role-select"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// InFlight reports whether the state is part of an in-progress sign-in.
// While in flight the machine must complete the flow from where it is;
// re-navigating to the SSO start URL from one of these pages destroys
// the in-flight session.
func (s State) InFlight() bool {
	switch s {
	case StateAwaitingMFA, StateAccountSelect, StateRoleSelect:
		return true
	}
	return false
}

// Endpoints identifies the domains of each sign-in stage. Defaults
// match AWS IAM Identity Center; all are configurable.
type Endpoints struct {
	StartURL      string // SSO portal entry point
	MFADomain     string // identity-provider domain holding the MFA prompt
	SAMLHost      string // host serving the SAML role-selection page
	ConsoleDomain string // target console domain, terminal success
}

// Classify derives the sign-in state from a URL. Expired cannot be
// recognized from a URL alone (it is "was authenticated, now back on
// the IdP"); the machine layers that on top of this classification.
func Classify(rawURL string, ep Endpoints) State {
	if rawURL == "" {
		return StateUnauthenticated
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return StateUnauthenticated
	}

	host := strings.ToLower(u.Host)
	switch {
	case domainMatch(host, ep.ConsoleDomain):
		return StateAuthenticated
	case domainMatch(host, ep.SAMLHost) && strings.Contains(strings.ToLower(u.Path), "saml"):
		return StateRoleSelect
	case domainMatch(host, ep.MFADomain):
		marker := strings.ToLower(u.Path + u.Fragment)
		if strings.Contains(marker, "account") {
			return StateAccountSelect
		}
		return StateAwaitingMFA
	}
	return StateUnauthenticated
}

// domainMatch reports whether host is the domain or a subdomain of it.
func domainMatch(host, domain string) bool {
	if domain == "" {
		return false
	}
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
