package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"fieldsync/internal/api"
	"fieldsync/internal/connectivity"
	"fieldsync/internal/ipc"
	"fieldsync/internal/queue"
	"fieldsync/internal/status"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snapshot api.DaemonStatus
			err := ctx.withClientOrLocal(cmd.Context(),
				func(client *ipc.Client) error {
					resp, err := client.Status()
					if err != nil {
						return err
					}
					snapshot = *resp
					return nil
				},
				func(engine *queue.Engine) error {
					snapshot = api.FromSnapshot(status.Compute(engine.Items(), false), connectivity.State{})
					snapshot.Banner = "Daemon not running"
					return nil
				},
			)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snapshot)
			}
			out := cmd.OutOrStdout()
			printStatus(out, snapshot, time.Now(), shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printStatus(out io.Writer, s api.DaemonStatus, now time.Time, colorize bool) {
	for _, line := range renderSectionHeader("Fieldsync", colorize) {
		fmt.Fprintln(out, line)
	}
	if s.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", s.PID), colorize))
		fmt.Fprintln(out, renderStatusLine("Connectivity", connectivityKind(s.Connectivity), connectivityDetail(s.Connectivity), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Banner", bannerKind(s), s.Banner, colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Pending", countKind(s.Counts.Pending, statusInfo), fmt.Sprint(s.Counts.Pending), colorize))
	fmt.Fprintln(out, renderStatusLine("Failed (retrying)", countKind(s.Counts.Failed, statusWarn), fmt.Sprint(s.Counts.Failed), colorize))
	fmt.Fprintln(out, renderStatusLine("Rejected", countKind(s.Counts.Rejected, statusError), fmt.Sprint(s.Counts.Rejected), colorize))
	if oldest, ok := api.ParseTime(s.OldestPendingAt); ok {
		fmt.Fprintln(out, renderStatusLine("Oldest waiting", statusInfo, formatAge(now.Sub(oldest)), colorize))
	}
	if s.LastSync != nil {
		fmt.Fprintln(out, renderStatusLine("Last sync", lastSyncKind(*s.LastSync), describeSync(*s.LastSync), colorize))
	}
	if s.QueuePath != "" {
		fmt.Fprintln(out, renderStatusLine("Storage", statusInfo, fmt.Sprintf("%s (%s)", s.QueuePath, s.StorageBackend), colorize))
	}
	if s.LogPath != "" {
		fmt.Fprintln(out, renderStatusLine("Log", statusInfo, s.LogPath, colorize))
	}
}

func connectivityKind(c api.Connectivity) statusKind {
	switch {
	case c.Online:
		return statusOK
	case c.Connected:
		return statusWarn
	default:
		return statusError
	}
}

func connectivityDetail(c api.Connectivity) string {
	switch {
	case c.Online:
		return "online"
	case c.Connected:
		return "connected, internet unreachable"
	default:
		return "offline"
	}
}

func bannerKind(s api.DaemonStatus) statusKind {
	switch {
	case s.Counts.Rejected > 0:
		return statusError
	case !s.Running || !s.Connectivity.Online:
		return statusWarn
	case s.Counts.Pending+s.Counts.Failed == 0:
		return statusOK
	default:
		return statusInfo
	}
}

func countKind(n int, nonZero statusKind) statusKind {
	if n == 0 {
		return statusOK
	}
	return nonZero
}

func lastSyncKind(r api.SyncResult) statusKind {
	switch {
	case r.Rejected > 0:
		return statusError
	case r.Failed > 0 || r.Interrupted:
		return statusWarn
	default:
		return statusOK
	}
}

func describeSync(r api.SyncResult) string {
	detail := fmt.Sprintf("%d synced, %d failed, %d rejected", r.Synced, r.Failed, r.Rejected)
	if r.Trigger != "" {
		detail += " (" + r.Trigger + ")"
	}
	if r.Interrupted {
		detail += ", interrupted"
	}
	return detail
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
