package nav

import (
	"context"
	"fmt"
	"testing"
	"time"

	"evidencer/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsole scripts console behavior and records every action.
type fakeConsole struct {
	url    string
	region string

	failAnchor   map[string]bool // anchors that never appear
	searchTop    string          // top result label for any search
	failSearch   bool
	regionAbsent bool // region unreadable (pre-console page)

	gotos     []string
	verifies  []string
	switches  []string
	searches  []string
	activated int
	clicks    []string
	tabs      []string
}

func (f *fakeConsole) CurrentURL() string { return f.url }

func (f *fakeConsole) Goto(_ context.Context, url string, _ time.Duration) error {
	f.gotos = append(f.gotos, url)
	f.url = url
	return nil
}

func (f *fakeConsole) VerifyAnchor(_ context.Context, anchor string, _ time.Duration) error {
	f.verifies = append(f.verifies, anchor)
	if f.failAnchor[anchor] {
		return fmt.Errorf("content anchor not found: %q", anchor)
	}
	return nil
}

func (f *fakeConsole) Region(context.Context) (string, error) {
	if f.regionAbsent {
		return "", fmt.Errorf("no region selector")
	}
	return f.region, nil
}

func (f *fakeConsole) SwitchRegion(_ context.Context, region string) error {
	f.switches = append(f.switches, region)
	f.region = region
	return nil
}

func (f *fakeConsole) SearchTop(_ context.Context, service string) (string, error) {
	f.searches = append(f.searches, service)
	if f.failSearch {
		return "", fmt.Errorf("search box not found")
	}
	if f.searchTop != "" {
		return f.searchTop, nil
	}
	return service, nil
}

func (f *fakeConsole) ActivateTopResult(context.Context) error {
	f.activated++
	return nil
}

func (f *fakeConsole) ClickText(_ context.Context, text string) error {
	f.clicks = append(f.clicks, text)
	return nil
}

func (f *fakeConsole) ActivateTab(_ context.Context, tab string) error {
	f.tabs = append(f.tabs, tab)
	return nil
}

func newTestNavigator(console Console) *Navigator {
	return NewNavigator(console, config.DefaultTimeoutConfig(), 10*time.Second, nil)
}

// Scenario: authenticated session already in-region; reach goes straight
// to the deep link and the final URL carries the resource id and tab.
func TestReachDeepLink(t *testing.T) {
	console := &fakeConsole{url: "https://us-east-1.console.aws.amazon.com/console/home?region=us-east-1", region: "us-east-1"}
	target := Target{Service: "rds", Resource: "demo-cluster", IsCluster: true, Tab: "configuration", Region: "us-east-1"}

	require.NoError(t, newTestNavigator(console).Reach(context.Background(), target))

	require.Len(t, console.gotos, 1)
	assert.Contains(t, console.gotos[0], "id=demo-cluster")
	assert.Contains(t, console.gotos[0], "tab=configuration")
	assert.Empty(t, console.switches, "no region switch needed")
	assert.Empty(t, console.searches, "deep link must not fall back to search")
	assert.Equal(t, []string{"demo-cluster"}, console.verifies,
		"arrival is proven by content anchor, not URL")
}

// Idempotence: a second Reach for the same target on a session already
// on that view performs no browser navigation at all.
func TestReachIdempotent(t *testing.T) {
	console := &fakeConsole{region: "us-east-1"}
	target := Target{Service: "rds", Resource: "demo-cluster", IsCluster: true, Tab: "configuration", Region: "us-east-1"}
	navigator := newTestNavigator(console)

	require.NoError(t, navigator.Reach(context.Background(), target))
	require.Len(t, console.gotos, 1)

	require.NoError(t, navigator.Reach(context.Background(), target))
	assert.Len(t, console.gotos, 1, "second reach must not navigate")
	assert.Len(t, console.verifies, 1)
}

// Scenario: target region differs from the console's current region;
// the switch happens, and settles, before the resource URL is loaded.
func TestReachSwitchesRegionFirst(t *testing.T) {
	console := &fakeConsole{url: "https://eu-west-1.console.aws.amazon.com/console/home?region=eu-west-1", region: "eu-west-1"}
	target := Target{Service: "rds", Resource: "demo-cluster", IsCluster: true, Region: "us-east-1"}

	require.NoError(t, newTestNavigator(console).Reach(context.Background(), target))

	assert.Equal(t, []string{"us-east-1"}, console.switches)
	require.Len(t, console.gotos, 1)
	assert.Contains(t, console.gotos[0], "https://us-east-1.console.aws.amazon.com/")
}

// Tab alias resolution happens before the slug is used anywhere.
func TestReachResolvesTabAlias(t *testing.T) {
	console := &fakeConsole{region: "us-east-1"}
	target := Target{Service: "rds", Resource: "demo-cluster", IsCluster: true, Tab: "backup", Region: "us-east-1"}

	require.NoError(t, newTestNavigator(console).Reach(context.Background(), target))

	require.Len(t, console.gotos, 1)
	assert.Contains(t, console.gotos[0], "tab=maintenance-and-backups")
	assert.NotContains(t, console.gotos[0], "tab=backup")
}

// A tab on a service-level target cannot ride the URL fragment, so the
// direct path activates it in the UI after arrival and re-verifies.
func TestReachDirectActivatesTabWithoutResource(t *testing.T) {
	console := &fakeConsole{region: "us-east-1"}
	target := Target{Service: "rds", Tab: "backup", Region: "us-east-1"}

	require.NoError(t, newTestNavigator(console).Reach(context.Background(), target))

	require.Len(t, console.gotos, 1)
	assert.NotContains(t, console.gotos[0], "tab=")
	assert.Equal(t, []string{"maintenance-and-backups"}, console.tabs,
		"the tab must not be dropped when the URL cannot carry it")
	assert.Equal(t, []string{"Databases", "Databases"}, console.verifies,
		"arrival anchor, then a re-verify after the tab click")
	assert.Empty(t, console.searches)
}

// With no deep-link mapping the navigator falls back to UI search.
func TestReachSearchFallback(t *testing.T) {
	console := &fakeConsole{region: "us-east-1"}
	target := Target{Service: "quantumledgerdb", Resource: "ledger-1", Region: "us-east-1"}

	require.NoError(t, newTestNavigator(console).Reach(context.Background(), target))

	assert.Empty(t, console.gotos, "no deep link exists for this service")
	assert.Equal(t, []string{"quantumledgerdb"}, console.searches)
	assert.Equal(t, 1, console.activated)
	assert.Equal(t, []string{"ledger-1"}, console.clicks)
}

// The search fallback requires an exact top-result match; fuzzy
// acceptance was a documented source of misnavigation.
func TestReachSearchRejectsFuzzyTopResult(t *testing.T) {
	console := &fakeConsole{region: "us-east-1", searchTop: "Amazon QuantumLedger Extras"}
	target := Target{Service: "quantumledgerdb", Region: "us-east-1"}

	err := newTestNavigator(console).Reach(context.Background(), target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNavigationFailed)
	assert.Zero(t, console.activated, "mismatched top result must not be opened")

	var failure *NavigationFailure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, failure.Error(), "Amazon QuantumLedger Extras")
}

// Deep link loads but the anchor never appears, and search also fails:
// the failure lists every attempted strategy.
func TestReachFailureListsAttempts(t *testing.T) {
	console := &fakeConsole{
		region:     "us-east-1",
		failAnchor: map[string]bool{"demo-cluster": true, "Databases": true},
		failSearch: true,
	}
	target := Target{Service: "rds", Resource: "demo-cluster", IsCluster: true, Region: "us-east-1"}

	err := newTestNavigator(console).Reach(context.Background(), target)
	require.Error(t, err)

	var failure *NavigationFailure
	require.ErrorAs(t, err, &failure)
	require.Len(t, failure.Attempted, 2)
	assert.Contains(t, failure.Attempted[0], "deep-link")
	assert.Contains(t, failure.Attempted[1], "ui-search")
}

// Tab activation through the UI path re-verifies after the click,
// because tab rendering is asynchronous.
func TestReachSearchPathActivatesTab(t *testing.T) {
	console := &fakeConsole{region: "us-east-1"}
	target := Target{Service: "quantumledgerdb", Resource: "ledger-1", Tab: "config", Region: "us-east-1"}

	require.NoError(t, newTestNavigator(console).Reach(context.Background(), target))

	assert.Equal(t, []string{"configuration"}, console.tabs)
	// service anchor, resource anchor, post-tab re-verify
	require.Len(t, console.verifies, 3)
	assert.Equal(t, "ledger-1", console.verifies[len(console.verifies)-1])
}
