package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"evidencer/internal/capture"
	"evidencer/internal/evidence"
	"evidencer/internal/nav"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	calls int32
	err   error
}

func (f *fakeAuth) Ensure(context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

type fakeNavigator struct {
	mu       sync.Mutex
	targets  []nav.Target
	failures int // first N calls fail
}

func (f *fakeNavigator) Reach(_ context.Context, t nav.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, t)
	if len(f.targets) <= f.failures {
		return fmt.Errorf("attempt %d: content anchor not found", len(f.targets))
	}
	return nil
}

type fakeCapturer struct {
	inFlight int32
	overlap  int32
	labels   []string
	result   *capture.Result
	err      error
}

func (f *fakeCapturer) Capture(_ context.Context, label string) (*capture.Result, error) {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.inFlight, -1)

	f.labels = append(f.labels, label)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		r := *f.result
		return &r, nil
	}
	return &capture.Result{
		Label:    label,
		PNG:      []byte("png-bytes"),
		Width:    1920,
		Height:   2400,
		Segments: 3,
		Stamped:  true,
		TakenAt:  time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []evidence.Entry
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, e evidence.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func newTestAgent(t *testing.T, auth *fakeAuth, navigator *fakeNavigator, capturer *fakeCapturer, recorder *fakeRecorder) *Agent {
	t.Helper()
	a := New(auth, navigator, capturer, recorder, filepath.Join(t.TempDir(), "evidence"), nil)
	a.SetRetry(fastRetry())
	return a
}

func TestCaptureEvidence(t *testing.T) {
	auth := &fakeAuth{}
	navigator := &fakeNavigator{}
	capturer := &fakeCapturer{}
	recorder := &fakeRecorder{}
	agent := newTestAgent(t, auth, navigator, capturer, recorder)

	result, err := agent.CaptureEvidence(context.Background(), Request{
		Service: "rds", Account: "ctr-prod", Region: "us-east-1",
		Resource: "demo-cluster", Tab: "configuration",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.EqualValues(t, 1, auth.calls)
	require.Len(t, navigator.targets, 1)
	assert.Equal(t, "rds", navigator.targets[0].Service)
	assert.Equal(t, "configuration", navigator.targets[0].Tab)
	assert.Equal(t, []string{"rds demo-cluster"}, capturer.labels)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "ctr-prod", entry.Account)
	assert.True(t, entry.Stamped)
	assert.Contains(t, filepath.Base(entry.File), "rds_demo-cluster_us-east-1_")

	data, err := os.ReadFile(entry.File)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestCaptureEvidenceRequiresService(t *testing.T) {
	agent := newTestAgent(t, &fakeAuth{}, &fakeNavigator{}, &fakeCapturer{}, &fakeRecorder{})

	_, err := agent.CaptureEvidence(context.Background(), Request{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service")
}

func TestCaptureEvidenceAuthFailureStopsEarly(t *testing.T) {
	auth := &fakeAuth{err: fmt.Errorf("mfa wait of 5m0s exceeded")}
	navigator := &fakeNavigator{}
	capturer := &fakeCapturer{}
	agent := newTestAgent(t, auth, navigator, capturer, &fakeRecorder{})

	_, err := agent.CaptureEvidence(context.Background(), Request{Service: "rds", Region: "us-east-1"})
	require.Error(t, err)

	assert.EqualValues(t, 1, auth.calls, "authentication is never retried automatically")
	assert.Empty(t, navigator.targets, "no navigation after a failed login")
	assert.Empty(t, capturer.labels)
}

func TestCaptureEvidenceRetriesNavigation(t *testing.T) {
	navigator := &fakeNavigator{failures: 2}
	capturer := &fakeCapturer{}
	agent := newTestAgent(t, &fakeAuth{}, navigator, capturer, &fakeRecorder{})

	_, err := agent.CaptureEvidence(context.Background(), Request{
		Service: "rds", Region: "us-east-1", Resource: "demo-cluster",
	})
	require.NoError(t, err)

	assert.Len(t, navigator.targets, 3, "two transient failures then success")
	assert.Len(t, capturer.labels, 1)
}

func TestCaptureEvidenceNavigationExhausted(t *testing.T) {
	navigator := &fakeNavigator{failures: 10}
	capturer := &fakeCapturer{}
	agent := newTestAgent(t, &fakeAuth{}, navigator, capturer, &fakeRecorder{})

	_, err := agent.CaptureEvidence(context.Background(), Request{Service: "rds", Region: "us-east-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Empty(t, capturer.labels, "no capture of an unverified page")
}

func TestCaptureEvidenceLedgerFailureKeepsArtifact(t *testing.T) {
	recorder := &fakeRecorder{err: fmt.Errorf("database is locked")}
	agent := newTestAgent(t, &fakeAuth{}, &fakeNavigator{}, &fakeCapturer{}, recorder)

	result, err := agent.CaptureEvidence(context.Background(), Request{
		Service: "s3", Region: "eu-west-1", Resource: "audit-bucket",
	})
	require.NoError(t, err, "a ledger failure must not discard the evidence")
	require.NotNil(t, result)
	assert.Contains(t, result.Warning, "ledger")
	assert.NotEmpty(t, result.PNG)
}

func TestCaptureEvidenceSerializesRequests(t *testing.T) {
	capturer := &fakeCapturer{}
	agent := newTestAgent(t, &fakeAuth{}, &fakeNavigator{}, capturer, &fakeRecorder{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := agent.CaptureEvidence(context.Background(), Request{
				Service: "rds", Region: "us-east-1", Resource: fmt.Sprintf("cluster-%d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&capturer.overlap),
		"captures overlapped despite the session semaphore")
	assert.Len(t, capturer.labels, 4)
}
