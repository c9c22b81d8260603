package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMFATimeout reports that the human never approved the MFA prompt
// within the wait budget. Retrying cannot substitute for the missing
// human action, so this is never auto-retried.
var ErrMFATimeout = errors.New("MFA approval timed out")

// ErrOptionNotFound reports that a wanted account or role was not among
// the visible options.
var ErrOptionNotFound = errors.New("option not found")

// OptionNotFoundError lists the options that were visible so the
// operator can correct the configured name instead of guessing.
type OptionNotFoundError struct {
	Wanted    string
	Available []string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("%v: %q (visible options: %s)",
		ErrOptionNotFound, e.Wanted, strings.Join(e.Available, ", "))
}

func (e *OptionNotFoundError) Unwrap() error { return ErrOptionNotFound }

// MFATimeoutError carries the actionable message surfaced verbatim to
// the operator.
type MFATimeoutError struct {
	Wait time.Duration
}

func (e *MFATimeoutError) Error() string {
	return fmt.Sprintf("MFA approval not completed within %s: approve the push notification on your device, then retry", e.Wait)
}

func (e *MFATimeoutError) Unwrap() error { return ErrMFATimeout }

// Driver is the browser surface the state machine needs. The real
// implementation wraps the browser Controller plus the element
// resolution engine; tests substitute a fake.
type Driver interface {
	// CurrentURL returns the page's current URL.
	CurrentURL() string

	// Goto loads a URL and waits for the document.
	Goto(ctx context.Context, url string) error

	// AwaitRedirect polls until the sign-in moves past the MFA prompt,
	// returning the URL it landed on. It never navigates. The account
	// chooser may share the MFA prompt's domain, so implementations
	// watch the classified state, not the domain.
	AwaitRedirect(ctx context.Context, wait time.Duration) (string, error)

	// Options lists the visible selectable account/role labels.
	Options(ctx context.Context) ([]string, error)

	// Select picks the option with the given label and verifies the
	// control reads back as selected.
	Select(ctx context.Context, label string) error

	// Activate clicks the named control (e.g. the sign-in button).
	Activate(ctx context.Context, label string) error
}

// Machine drives the sign-in flow to completion.
type Machine struct {
	drv     Driver
	ep      Endpoints
	account string
	role    string
	mfaWait time.Duration
	log     *zap.Logger

	wasAuthenticated bool
}

// NewMachine builds a state machine for one account context.
func NewMachine(drv Driver, ep Endpoints, account, role string, mfaWait time.Duration, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mfaWait <= 0 {
		mfaWait = 5 * time.Minute
	}
	return &Machine{
		drv:     drv,
		ep:      ep,
		account: account,
		role:    role,
		mfaWait: mfaWait,
		log:     logger,
	}
}

// maxTransitions bounds the Ensure loop; a healthy flow needs at most
// five transitions (start → MFA → account → role → console).
const maxTransitions = 8

// Ensure brings the session to the authenticated console, completing
// whatever stage of sign-in the browser is currently in. Already being
// on the console short-circuits with no browser action at all. That
// session reuse is what makes repeated evidence requests fast.
//
// Being on any in-flight SSO page is evidence of partial progress: the
// machine completes sign-in from there and never re-issues the SSO
// start URL, which would destroy the in-flight session.
func (m *Machine) Ensure(ctx context.Context) error {
	for i := 0; i < maxTransitions; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		current := m.drv.CurrentURL()
		state := Classify(current, m.ep)
		m.log.Debug("auth state", zap.Stringer("state", state), zap.String("url", current))

		switch state {
		case StateAuthenticated:
			if i == 0 {
				m.log.Debug("session reuse, already on console")
			} else {
				m.log.Info("authenticated", zap.String("account", m.account), zap.String("role", m.role))
			}
			m.wasAuthenticated = true
			return nil

		case StateUnauthenticated:
			if m.wasAuthenticated {
				m.log.Info("console session expired, re-authenticating")
				m.wasAuthenticated = false
			}
			if m.ep.StartURL == "" {
				return errors.New("authentication required but no SSO start URL configured")
			}
			// The only transition allowed to load the start URL.
			if err := m.drv.Goto(ctx, m.ep.StartURL); err != nil {
				return fmt.Errorf("open SSO start page: %w", err)
			}

		case StateAwaitingMFA:
			m.log.Info("waiting for MFA approval", zap.Duration("budget", m.mfaWait))
			landed, err := m.drv.AwaitRedirect(ctx, m.mfaWait)
			if err != nil {
				// A cancelled caller is not a missing approval.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return &MFATimeoutError{Wait: m.mfaWait}
			}
			m.log.Debug("MFA complete", zap.String("landed", landed))

		case StateAccountSelect:
			if err := m.selectOption(ctx, m.account); err != nil {
				return fmt.Errorf("account selection: %w", err)
			}

		case StateRoleSelect:
			// Partial progress: complete sign-in from here, never restart.
			if err := m.selectOption(ctx, m.roleLabel()); err != nil {
				return fmt.Errorf("role selection: %w", err)
			}
			if err := m.drv.Activate(ctx, "Sign in"); err != nil {
				return fmt.Errorf("role selection: confirm sign-in: %w", err)
			}
		}
	}

	return fmt.Errorf("sign-in did not reach the console within %d transitions (stuck at %s)",
		maxTransitions, m.drv.CurrentURL())
}

// roleLabel is the label selected on the SAML role page. With no role
// configured the account name identifies the row.
func (m *Machine) roleLabel() string {
	if m.role != "" {
		return m.role
	}
	return m.account
}

// selectOption picks a label and verifies it; if the option is missing
// the error carries everything that was visible.
func (m *Machine) selectOption(ctx context.Context, label string) error {
	if label == "" {
		return errors.New("no target account/role configured")
	}
	err := m.drv.Select(ctx, label)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOptionNotFound) {
		available, listErr := m.drv.Options(ctx)
		if listErr == nil {
			return &OptionNotFoundError{Wanted: label, Available: available}
		}
	}
	return err
}
