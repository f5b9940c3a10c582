package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply-client/internal/api"
	"github.com/jonathan/autoapply-client/internal/runctl"
	"github.com/jonathan/autoapply-client/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger and track automation runs",
}

var runStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new automation run",
	Long:  "Submits a run to the Auto-Apply service using your saved profile. Requires a complete profile and a valid credential.",
	RunE:  runStart,
}

var runStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current run status once",
	RunE:  runStatus,
}

var runResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the current run",
	RunE:  runReset,
}

func init() {
	runCmd.AddCommand(runStartCmd)
	runCmd.AddCommand(runStatusCmd)
	runCmd.AddCommand(runResetCmd)
	rootCmd.AddCommand(runCmd)
}

func runStart(cmd *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	userID, err := env.userID()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// Best-effort authoritative refresh; the cached answer carries us when
	// the service is briefly unreachable.
	if err := env.rec.Refresh(ctx, userID); err != nil {
		env.debugf("profile refresh failed: %v", err)
	}
	if !env.rec.HasUsableProfile() {
		return fmt.Errorf("no complete profile found: run 'autoapply profile save' first")
	}

	// Refuse a second concurrent run for the same user.
	snap := fetchSnapshot(ctx, env, userID)
	if snap != nil && snap.Run.Status.Active() {
		return fmt.Errorf("a run is already in progress (%s, status %s): wait for it or 'autoapply run reset'", snap.Run.RunID, snap.Run.Status)
	}

	profileText := ""
	if profile := env.rec.Profile(); profile != nil {
		profileText = profile.ProfileText()
	} else if prefs, err := env.store.Preferences(); err == nil && prefs != nil {
		profileText = prefs.Keywords
	}

	ctl := runctl.New(env.client, env.tokens, env.store, &runctl.Options{
		Interval: env.cfg.PollInterval(),
		Logf:     env.debugf,
	})
	defer ctl.Stop()
	ctl.SetUser(userID)

	runID, err := ctl.Start(ctx, profileText)
	if err != nil {
		if api.IsAuthRequired(err) {
			return fmt.Errorf("authentication required: please log in again")
		}
		return fmt.Errorf("failed to start run: %w", err)
	}
	fmt.Printf("Run started: %s\n", runID)
	fmt.Println("Track it with 'autoapply run watch'.")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	userID, err := env.userID()
	if err != nil {
		return err
	}

	token, err := env.tokens.Token(cmd.Context())
	if err != nil || token == "" {
		return fmt.Errorf("authentication required: please log in again")
	}
	runID, err := env.store.LastRunID()
	if err != nil {
		return err
	}

	snap, err := env.client.GetStatus(cmd.Context(), token, userID, runID)
	if err != nil {
		if api.IsAuthRequired(err) {
			return fmt.Errorf("authentication required: please log in again")
		}
		return err
	}

	if runctl.Stuck(snap, time.Now(), runctl.DefaultStuckAfter) {
		// Abandoned server-side; return the local state to idle.
		if err := env.store.SetLastRunID(""); err != nil {
			env.debugf("failed to clear run id: %v", err)
		}
		env.printer.PrintSnapshot(nil)
		return nil
	}

	env.printer.PrintSnapshot(snap)
	return nil
}

func runReset(_ *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	if err := env.store.SetLastRunID(""); err != nil {
		return err
	}
	fmt.Println("Run state cleared.")
	return nil
}

// fetchSnapshot queries the latest snapshot, returning nil on any failure.
func fetchSnapshot(ctx context.Context, env *appEnv, userID string) *types.RunSnapshot {
	token, err := env.tokens.Token(ctx)
	if err != nil || token == "" {
		return nil
	}
	runID, err := env.store.LastRunID()
	if err != nil {
		return nil
	}
	snap, err := env.client.GetStatus(ctx, token, userID, runID)
	if err != nil {
		return nil
	}
	return snap
}
