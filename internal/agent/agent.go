// Package agent ties authentication, navigation, capture and the
// evidence ledger into one operation: bring the console to a resource
// view and walk away with a verified artifact.
package agent

import (
	"context"
	"fmt"
	"strings"

	"evidencer/internal/capture"
	"evidencer/internal/evidence"
	"evidencer/internal/nav"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Request names the console view to collect evidence of.
type Request struct {
	Service  string
	Account  string
	Region   string
	Resource string
	Tab      string
}

// Authenticator brings the session to the authenticated console.
type Authenticator interface {
	Ensure(ctx context.Context) error
}

// Navigator brings the console to a target view.
type Navigator interface {
	Reach(ctx context.Context, t nav.Target) error
}

// Capturer screenshots the current view.
type Capturer interface {
	Capture(ctx context.Context, label string) (*capture.Result, error)
}

// Recorder indexes finished captures.
type Recorder interface {
	Record(ctx context.Context, e evidence.Entry) error
}

// Agent owns the single browser session. All operations are serialized
// through a weight-1 semaphore because no two actions are safe to run
// concurrently against one page.
type Agent struct {
	sem         *semaphore.Weighted
	auth        Authenticator
	navigator   Navigator
	capturer    Capturer
	ledger      Recorder
	evidenceDir string
	retry       RetryConfig
	log         *zap.Logger
}

func New(auth Authenticator, navigator Navigator, capturer Capturer, ledger Recorder, evidenceDir string, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		sem:         semaphore.NewWeighted(1),
		auth:        auth,
		navigator:   navigator,
		capturer:    capturer,
		ledger:      ledger,
		evidenceDir: evidenceDir,
		retry:       DefaultRetryConfig(),
		log:         logger,
	}
}

// SetRetry overrides the navigation retry policy.
func (a *Agent) SetRetry(cfg RetryConfig) { a.retry = cfg }

// CaptureEvidence authenticates, reaches the requested view, captures
// it and records the artifact. Navigation is retried on transient
// failure; authentication is not, because a stalled MFA prompt needs a
// human, not a retry loop.
func (a *Agent) CaptureEvidence(ctx context.Context, req Request) (*capture.Result, error) {
	if req.Service == "" {
		return nil, fmt.Errorf("request requires a service")
	}
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer a.sem.Release(1)

	if err := a.auth.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	target := nav.Target{
		Service:  req.Service,
		Resource: req.Resource,
		Tab:      req.Tab,
		Region:   req.Region,
	}
	err := withRetry(ctx, a.retry, "reach "+target.Describe(), a.log, func(ctx context.Context) error {
		return a.navigator.Reach(ctx, target)
	})
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(req.Service + " " + req.Resource)
	result, err := a.capturer.Capture(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", label, err)
	}

	// The artifact outranks its index entry. If persisting the row or
	// the file fails the caller still gets the capture, flagged.
	name := evidence.Filename(req.Service, req.Resource, req.Region, result.TakenAt)
	path, err := evidence.WriteArtifact(a.evidenceDir, name, result.PNG)
	if err != nil {
		a.log.Error("failed to persist artifact", zap.String("file", name), zap.Error(err))
		result.Warning = appendWarning(result.Warning, fmt.Sprintf("artifact not persisted: %v", err))
		return result, nil
	}

	entry := evidence.Entry{
		ID:       uuid.NewString(),
		Service:  req.Service,
		Resource: req.Resource,
		Region:   req.Region,
		Tab:      req.Tab,
		Account:  req.Account,
		File:     path,
		Width:    result.Width,
		Height:   result.Height,
		Segments: result.Segments,
		Stamped:  result.Stamped,
		Warning:  result.Warning,
		TakenAt:  result.TakenAt,
	}
	if err := a.ledger.Record(ctx, entry); err != nil {
		a.log.Error("failed to record capture", zap.String("id", entry.ID), zap.Error(err))
		result.Warning = appendWarning(result.Warning, fmt.Sprintf("ledger: %v", err))
		return result, nil
	}

	a.log.Info("evidence collected",
		zap.String("id", entry.ID),
		zap.String("target", target.Describe()),
		zap.String("file", path),
		zap.Bool("stamped", result.Stamped))
	return result, nil
}

func appendWarning(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "; " + add
}
