package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply-client/internal/runctl"
	"github.com/jonathan/autoapply-client/internal/store"
	"github.com/jonathan/autoapply-client/internal/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the current run until it finishes",
	Long:  "Polls the Auto-Apply service and prints status updates as the run progresses. Stops when the run reaches a terminal status or on Ctrl-C.",
	RunE:  runWatch,
}

func init() {
	runCmd.AddCommand(watchCmd)
}

var (
	statusStyles = map[types.RunStatus]lipgloss.Style{
		types.RunPending: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		types.RunRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		types.RunDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		types.RunError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func styledStatus(status types.RunStatus) string {
	if style, ok := statusStyles[status]; ok {
		return style.Render(string(status))
	}
	return string(status)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	env, err := buildEnv()
	if err != nil {
		return err
	}
	userID, err := env.userID()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authPrompted := false
	ctl := runctl.New(env.client, env.tokens, env.store, &runctl.Options{
		Interval: env.cfg.PollInterval(),
		OnAuthRequired: func() {
			if !authPrompted {
				authPrompted = true
				fmt.Fprintln(os.Stderr, "Authentication required. Please log in again.")
			}
		},
		Logf: env.debugf,
	})
	defer ctl.Stop()

	lastRunID, err := env.store.LastRunID()
	if err != nil {
		return err
	}
	ctl.SetUser(userID)
	ctl.Resume(lastRunID)

	var prefCh <-chan store.PrefEvent
	prefWatcher, err := env.store.WatchPreferences()
	if err == nil {
		if werr := prefWatcher.Start(ctx); werr != nil {
			env.debugf("preference watch unavailable: %v", werr)
		} else {
			prefCh = prefWatcher.Events()
		}
		defer func() { _ = prefWatcher.Stop() }()
	} else {
		env.debugf("preference watch unavailable: %v", err)
	}

	fmt.Println(dimStyle.Render("Watching run status. Ctrl-C to stop."))

	ticker := time.NewTicker(env.cfg.PollInterval())
	defer ticker.Stop()

	var lastLine string
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			env.printer.PrintSnapshot(ctl.Snapshot())
			return nil
		case ev, ok := <-prefCh:
			if !ok {
				prefCh = nil
				continue
			}
			if ev.Err == nil && ev.Prefs != nil {
				fmt.Println(dimStyle.Render("Preferences updated:"))
				env.printer.PrintPreferences(ev.Prefs)
			}
		case <-ticker.C:
			line := renderStatusLine(ctl)
			if line != lastLine {
				fmt.Println(line)
				lastLine = line
			}
			if ctl.Phase() == runctl.PhaseTerminal {
				env.printer.PrintSnapshot(ctl.Snapshot())
				return nil
			}
		}
	}
}

func renderStatusLine(ctl *runctl.Controller) string {
	phase := ctl.Phase()
	snap := ctl.Snapshot()
	if snap == nil {
		return fmt.Sprintf("[%s] no run in progress", phase)
	}
	line := fmt.Sprintf("[%s] run %s — %s", phase, snap.Run.RunID, styledStatus(snap.Run.Status))
	if snap.Run.Counts != nil {
		line += fmt.Sprintf(" (%d/%d done, %d failed)",
			snap.Run.Counts.Success, snap.Run.Counts.Total, snap.Run.Counts.Failed)
	} else if n := len(snap.Applications); n > 0 {
		line += fmt.Sprintf(" (%d applications)", n)
	}
	return line
}
