// Package main implements the evidencer CLI commands.
// This file contains authentication and capture commands.
package main

import (
	"context"
	"errors"
	"fmt"

	"evidencer/internal/agent"
	"evidencer/internal/auth"
	"evidencer/internal/browser"
	"evidencer/internal/capture"
	"evidencer/internal/evidence"
	"evidencer/internal/logging"
	"evidencer/internal/nav"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	captureService  string
	captureResource string
	captureTab      string
	captureRegion   string
	captureAccount  string

	evidenceService string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate the session through SSO",
	Long: `Drives the session to the authenticated console: SSO start page,
MFA approval wait, account and role selection. A session that is
already authenticated returns immediately without re-navigating.`,
	RunE: runAuth,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture evidence of a console resource view",
	Long: `Authenticates, navigates to the requested service/resource/tab and
captures a timestamped screenshot into the evidence directory.

Example:
  evidencer capture --service rds --resource demo-cluster --tab configuration --region us-east-1`,
	RunE: runCapture,
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "List recorded evidence",
	RunE:  runEvidenceList,
}

func init() {
	captureCmd.Flags().StringVar(&captureService, "service", "", "console service (e.g. rds, s3, iam)")
	captureCmd.Flags().StringVar(&captureResource, "resource", "", "resource identifier")
	captureCmd.Flags().StringVar(&captureTab, "tab", "", "resource detail tab")
	captureCmd.Flags().StringVar(&captureRegion, "region", "", "console region")
	captureCmd.Flags().StringVar(&captureAccount, "account", "", "account override for the ledger record")
	_ = captureCmd.MarkFlagRequired("service")

	evidenceCmd.Flags().StringVar(&evidenceService, "service", "", "filter by service")
}

// startSession starts the browser and builds the authentication machine
// over it. Callers close the returned controller.
func startSession(ctx context.Context) (*browser.Controller, *auth.Machine, error) {
	ctrl := browser.NewController(browserConfig(), logging.Named("session"))
	if err := ctrl.Start(ctx); err != nil {
		if errors.Is(err, browser.ErrProfileLocked) {
			return nil, nil, fmt.Errorf("profile %s is in use by another evidencer process", cfg.Browser.ProfileDir)
		}
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}

	mfaWait, err := cfg.MFAWait()
	if err != nil {
		_ = ctrl.Close()
		return nil, nil, err
	}
	endpoints := auth.Endpoints{
		StartURL:      cfg.SSO.StartURL,
		MFADomain:     cfg.SSO.MFADomain,
		SAMLHost:      cfg.SSO.SAMLHost,
		ConsoleDomain: cfg.SSO.ConsoleDomain,
	}
	driver := auth.NewBrowserDriver(ctrl, endpoints, logging.Named("auth"))
	machine := auth.NewMachine(driver, endpoints, cfg.SSO.Account, cfg.SSO.Role, mfaWait, logging.Named("auth"))
	return ctrl, machine, nil
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ctrl, machine, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := machine.Ensure(ctx); err != nil {
		if errors.Is(err, auth.ErrMFATimeout) {
			return fmt.Errorf("%w\nRun 'evidencer auth' again after approving", err)
		}
		return err
	}
	fmt.Printf("Authenticated. Console: %s\n", ctrl.CurrentURL())
	return nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ctrl, machine, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ledger, err := evidence.Open(cfg.Evidence.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open evidence ledger: %w", err)
	}
	defer ledger.Close()

	console := nav.NewBrowserConsole(ctrl, logging.Named("nav"))
	navigator := nav.NewNavigator(console, cfg.Timeouts, cfg.Browser.NavigationTimeout(), logging.Named("nav"))
	capturer := capture.New(ctrl, logging.Named("capture"))
	collector := agent.New(machine, navigator, capturer, ledger, cfg.Evidence.Dir, logging.Named("agent"))

	account := captureAccount
	if account == "" {
		account = cfg.SSO.Account
	}
	result, err := collector.CaptureEvidence(ctx, agent.Request{
		Service:  captureService,
		Account:  account,
		Region:   captureRegion,
		Resource: captureResource,
		Tab:      captureTab,
	})
	if err != nil {
		logger.Error("capture failed", zap.Error(err))
		return err
	}

	fmt.Printf("Captured %s (%dx%d, %d segments)\n",
		result.Label, result.Width, result.Height, result.Segments)
	if !result.Stamped {
		fmt.Println("Warning: timestamp overlay missing; raw capture kept")
	}
	if result.Warning != "" {
		fmt.Printf("Warning: %s\n", result.Warning)
	}
	return nil
}

func runEvidenceList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ledger, err := evidence.Open(cfg.Evidence.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open evidence ledger: %w", err)
	}
	defer ledger.Close()

	entries, err := ledger.List(ctx, evidenceService)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No evidence recorded.")
		return nil
	}
	for _, e := range entries {
		flag := ""
		if !e.Stamped {
			flag = "  [unstamped]"
		}
		if e.Warning != "" {
			flag += "  [" + e.Warning + "]"
		}
		fmt.Printf("%s  %-10s %-24s %-12s %s%s\n",
			e.TakenAt.Format("2006-01-02 15:04"), e.Service, e.Resource, e.Region, e.File, flag)
	}
	return nil
}
