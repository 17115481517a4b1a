package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"fieldsync/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestShouldColorizeIgnoresBuffers(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	snapshot := api.DaemonStatus{
		Running:         true,
		PID:             4242,
		Banner:          "Offline · 2 pending",
		Connectivity:    api.Connectivity{Connected: true},
		Counts:          api.QueueCounts{Pending: 1, Failed: 1, Rejected: 1, Total: 3},
		OldestPendingAt: now.Add(-3 * time.Hour).Format("2006-01-02T15:04:05.000Z07:00"),
		LastSync:        &api.SyncResult{Trigger: "online", Synced: 4, Failed: 1},
		StorageBackend:  "sqlite",
		QueuePath:       "/var/lib/fieldsync/queue.db",
	}
	var out bytes.Buffer
	printStatus(&out, snapshot, now, false)
	text := out.String()
	for _, want := range []string{
		"running (pid 4242)",
		"[WARN] connected, internet unreachable",
		"[ERROR] Offline · 2 pending",
		"3h ago",
		"[WARN] 4 synced, 1 failed, 0 rejected (online)",
		"queue.db (sqlite)",
	} {
		requireContains(t, text, want)
	}
}

func TestFormatAge(t *testing.T) {
	cases := map[time.Duration]string{
		10 * time.Second: "just now",
		5 * time.Minute:  "5m ago",
		26 * time.Hour:   "26h ago",
		72 * time.Hour:   "3d ago",
	}
	for d, want := range cases {
		if got := formatAge(d); got != want {
			t.Errorf("formatAge(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestBuildQueueListRows(t *testing.T) {
	rows := buildQueueListRows([]api.QueueItem{{
		LocalID:      "0190f0a4-0000-7000-8000-000000000001",
		StatusLabel:  "failed (transient)",
		Attempts:     2,
		ErrorMessage: strings.Repeat("x", 80),
	}})
	if len(rows) != 1 || len(rows[0]) != len(queueListColumns()) {
		t.Fatalf("unexpected rows: %#v", rows)
	}
	if rows[0][1] != "-" || rows[0][4] != "-" {
		t.Fatalf("expected placeholders for empty summary and time: %#v", rows[0])
	}
	if n := len([]rune(rows[0][5])); n != maxErrorColumn {
		t.Fatalf("expected truncated error of %d runes, got %d", maxErrorColumn, n)
	}
}
