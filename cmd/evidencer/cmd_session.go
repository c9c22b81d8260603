// Package main implements the evidencer CLI commands.
// This file contains browser session commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"evidencer/internal/browser"
	"evidencer/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch the persistent browser session",
	Long: `Starts the browser over the persistent profile and keeps it running
until interrupted. Launching while another evidencer process holds the
profile is rejected; there is never more than one browser per profile.`,
	RunE: runLaunch,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and profile status",
	RunE:  runStatus,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect the persisted browser session",
	RunE:  runSessions,
}

var sessionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the persisted profile, forcing a fresh login",
	RunE:  runSessionsReset,
}

func init() {
	sessionsCmd.AddCommand(sessionsResetCmd)
}

func browserConfig() browser.Config {
	return browser.Config{
		Bin:                 cfg.Browser.Bin,
		Headless:            cfg.Browser.Headless,
		ProfileDir:          cfg.Browser.ProfileDir,
		ViewportWidth:       cfg.Browser.ViewportWidth,
		ViewportHeight:      cfg.Browser.ViewportHeight,
		NavigationTimeoutMs: cfg.Browser.NavigationTimeoutMs,
	}
}

func runLaunch(cmd *cobra.Command, args []string) error {
	logger.Info("launching browser", zap.String("profile", cfg.Browser.ProfileDir))

	ctrl := browser.NewController(browserConfig(), logging.Named("session"))
	if err := ctrl.Start(context.Background()); err != nil {
		if errors.Is(err, browser.ErrProfileLocked) {
			return fmt.Errorf("profile %s is in use by another evidencer process", cfg.Browser.ProfileDir)
		}
		return fmt.Errorf("failed to start browser: %w", err)
	}

	meta := ctrl.Meta()
	fmt.Printf("Browser launched. Session: %s\n", meta.ID)
	fmt.Printf("Profile: %s\n", cfg.Browser.ProfileDir)
	fmt.Println("Press Ctrl+C to shutdown")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := ctrl.Close(); err != nil {
		logger.Warn("failed to close browser cleanly", zap.Error(err))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	profile, err := browser.OpenProfile(cfg.Browser.ProfileDir)
	if err != nil {
		return fmt.Errorf("failed to open profile: %w", err)
	}

	fmt.Printf("Profile: %s\n", cfg.Browser.ProfileDir)
	if profile.Locked() {
		fmt.Println("State:   in use (browser running)")
	} else {
		fmt.Println("State:   idle")
	}

	meta, err := profile.LoadMeta()
	if err != nil {
		fmt.Println("Session: none recorded")
		return nil
	}
	fmt.Printf("Session: %s\n", meta.ID)
	fmt.Printf("Created: %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Active:  %s\n", meta.LastActive.Format("2006-01-02 15:04:05 MST"))
	if meta.URL != "" {
		fmt.Printf("URL:     %s\n", meta.URL)
	}
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	return runStatus(cmd, args)
}

func runSessionsReset(cmd *cobra.Command, args []string) error {
	profile, err := browser.OpenProfile(cfg.Browser.ProfileDir)
	if err != nil {
		return fmt.Errorf("failed to open profile: %w", err)
	}
	if err := profile.Reset(); err != nil {
		return fmt.Errorf("failed to reset profile: %w", err)
	}
	fmt.Printf("Profile %s cleared. Next launch starts a fresh login.\n", cfg.Browser.ProfileDir)
	return nil
}
