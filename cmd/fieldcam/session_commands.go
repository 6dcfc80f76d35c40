package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldcam/internal/daemonctl"
	"fieldcam/internal/ipc"
)

func newSessionCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a capture session, launching the daemon if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Session %s started\n", result.SessionID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Session %s already running\n", result.SessionID)
			case daemonctl.StartStateRequested:
				fmt.Fprintln(stdout, result.Message)
			}
			return nil
		},
	}

	var discard bool
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the capture session (the daemon keeps running)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop(discard)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Message != "" {
					fmt.Fprintln(stdout, resp.Message)
				}
				c := resp.Session.Counters
				fmt.Fprintf(stdout, "Session stopped: %d captured, %d sent, %d failed, %d discarded\n",
					c.FramesCaptured, c.UploadsSent, c.UploadsFailed, c.UploadsDiscarded)
				return nil
			})
		},
	}
	stopCmd.Flags().BoolVar(&discard, "discard", false, "Discard queued uploads instead of draining them")

	shutdownCmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the session and terminate the daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Shutdown(ctx.socketPath(), ctx.configValue(), 15*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session, and upload status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap.Status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range snap.Checks {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Session", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprint(stdout, renderTable([]string{"Field", "Value"}, sessionRows(snap.Status.Session), nil))
			if snap.DaemonReachable && strings.TrimSpace(snap.Status.Session.SessionID) != "" {
				fmt.Fprint(stdout, renderTable([]string{"Counter", "Value"}, counterRows(snap.Status.Session.Counters),
					[]columnAlignment{alignLeft, alignRight}))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Upload Ledger", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := ledgerRows(snap.Status.Uploads)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Ledger is empty")
				return nil
			}
			fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")

	return []*cobra.Command{startCmd, stopCmd, shutdownCmd, statusCmd}
}
