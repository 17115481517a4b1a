package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldsync/internal/api"
	"fieldsync/internal/remote"
)

var enqueueArgs = []string{
	"queue", "enqueue",
	"--species", "bovine", "--part", "liver", "--type", "partial",
	"--reason", "Distomatose", "--quantity", "3", "--unit", "kg",
}

func TestQueueEnqueueListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, enqueueArgs, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue enqueue: %v", err)
	}
	requireContains(t, out, "Queued ")
	requireContains(t, out, "Bovine Liver (Partial) 3 kg")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Local ID")
	requireContains(t, out, "pending")

	items, err := env.daemon.List(nil)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one entry, got %d (%v)", len(items), err)
	}
	out, _, err = runCLI(t, []string{"queue", "show", items[0].LocalID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, items[0].LocalID)
	requireContains(t, out, `"reason": "Distomatose"`)
}

func TestQueueEnqueueReportsFieldErrors(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "enqueue", "--species", "dragon", "--quantity", "1"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	requireContains(t, out, "species:")
	requireContains(t, out, "reason: is required")
	if items, _ := env.daemon.List(nil); len(items) != 0 {
		t.Fatalf("invalid seizure must not be queued")
	}
}

func TestQueueEnqueueFromFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "seizure.json")
	body := `{"species":"porcine","seized_part":"carcass","seizure_type":"total","reason":"Abscess","quantity":80,"unit":"kg"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "enqueue", "--file", path, "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue enqueue --file: %v", err)
	}
	var resp api.QueueItemResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode json output: %v\n%s", err, out)
	}
	if resp.Item.Status != "pending" || !strings.Contains(resp.Item.Summary, "Porcine") {
		t.Fatalf("unexpected item: %+v", resp.Item)
	}
}

func TestQueueSyncRetryDiscard(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	entry, err := env.daemon.Enqueue(ctx, []byte(`{"species":"ovine","seized_part":"lung","seizure_type":"total","reason":"Pneumonia","quantity":1,"unit":"pieces"}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	env.creator.FailFor(entry.LocalID, &remote.Error{StatusCode: 422, Kind: remote.KindValidation, Detail: "quantity: too small"})

	out, _, err := runCLI(t, []string{"queue", "sync"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue sync: %v", err)
	}
	requireContains(t, out, "0 synced, 0 failed, 1 rejected")

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "rejected"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list rejected: %v", err)
	}
	requireContains(t, out, "failed (permanent)")

	out, _, err = runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Reset 1 seizure(s) to pending")

	env.creator.FailFor(entry.LocalID, nil)
	out, _, err = runCLI(t, []string{"queue", "sync", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue sync --json: %v", err)
	}
	var result api.SyncResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode sync result: %v", err)
	}
	if result.Synced != 1 {
		t.Fatalf("expected one synced entry, got %+v", result)
	}

	second, err := env.daemon.Enqueue(ctx, []byte(`{"species":"ovine","seized_part":"head","seizure_type":"total","reason":"Cysts","quantity":1,"unit":"pieces"}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	out, _, err = runCLI(t, []string{"queue", "discard", second.LocalID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue discard: %v", err)
	}
	requireContains(t, out, "Discarded 1 seizure(s)")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueListFallsBackToStoreWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.daemon.Enqueue(context.Background(), []byte(`{"species":"caprine","seized_part":"spleen","seizure_type":"total","reason":"Anthrax suspicion","quantity":1,"unit":"pieces"}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	missingSocket := filepath.Join(t.TempDir(), "absent.sock")
	out, _, err := runCLI(t, []string{"queue", "list"}, missingSocket, env.configPath)
	if err != nil {
		t.Fatalf("queue list without daemon: %v", err)
	}
	requireContains(t, out, "Caprine Spleen (Total) 1 pieces")

	out, _, err = runCLI(t, []string{"status"}, missingSocket, env.configPath)
	if err != nil {
		t.Fatalf("status without daemon: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Pending")

	if _, _, err := runCLI(t, []string{"queue", "sync"}, missingSocket, env.configPath); err == nil {
		t.Fatal("expected sync to require the daemon")
	}
}
