package daemon_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/daemon"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/remote"
	"fieldsync/internal/seizure"
	"fieldsync/internal/testsupport"
)

const validSeizureJSON = `{"species":"bovine","seized_part":"liver","seizure_type":"partial","reason":"Distomatose","quantity":3,"unit":"kg"}`

type harness struct {
	cfg     *config.Config
	store   queue.Store
	creator *testsupport.RecordingCreator
	prober  *testsupport.StaticProber
	daemon  *daemon.Daemon
}

func newHarness(t *testing.T, online bool, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	creator := testsupport.NewRecordingCreator()
	prober := testsupport.NewStaticProber(online)
	d, err := daemon.New(cfg, store, logging.NewNop(),
		daemon.WithCreator(creator),
		daemon.WithProber(prober),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return &harness{cfg: cfg, store: store, creator: creator, prober: prober, daemon: d}
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := h.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != h.cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if h.daemon.APIAddress() == "" {
		t.Fatal("expected API to be listening")
	}

	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	if h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if h.daemon.APIAddress() != "" {
		t.Fatal("expected API to be closed after stop")
	}
}

func TestSecondDaemonCannotTakeLock(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	other, err := daemon.New(h.cfg, testsupport.NewMemoryStore(), logging.NewNop(),
		daemon.WithCreator(testsupport.NewRecordingCreator()),
		daemon.WithProber(testsupport.NewStaticProber(true)),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	err = other.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}
}

func TestEnqueueWhileOfflineWaitsForReconnect(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	testsupport.WaitFor(t, time.Second, "offline state", func() bool {
		return !h.daemon.Monitor().Online()
	})

	entry, err := h.daemon.Enqueue(ctx, []byte(validSeizureJSON))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if entry.Status != queue.StatusPending {
		t.Fatalf("expected pending entry, got %s", entry.Status)
	}
	status := h.daemon.Status(ctx)
	if status.Connectivity.Online || status.Counts.Pending != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(h.creator.Calls()) != 0 {
		t.Fatal("expected no submissions while offline")
	}

	h.prober.Set(true)
	h.daemon.Monitor().Trigger()
	testsupport.WaitFor(t, 2*time.Second, "queue drain", func() bool {
		items, _ := h.daemon.List(nil)
		return len(items) == 0
	})
	if calls := h.creator.Calls(); len(calls) != 1 || calls[0] != entry.LocalID {
		t.Fatalf("unexpected submissions: %v", calls)
	}
}

func TestStopCancelsEnqueueTriggeredPass(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	testsupport.WaitFor(t, time.Second, "first probe", func() bool {
		return h.prober.Calls() > 0
	})
	entered, release := h.creator.Block()
	defer release()

	entry, err := h.daemon.Enqueue(ctx, []byte(validSeizureJSON))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue did not start a sync pass")
	}

	stopped := make(chan struct{})
	go func() {
		h.daemon.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an in-flight sync pass")
	}

	got, err := h.daemon.Get(entry.LocalID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != queue.StatusPending || got.Attempts != 0 {
		t.Fatalf("interrupted submission must leave the entry untouched, got %+v", got)
	}
}

func TestSyncOnStartWaitsForFirstProbe(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	entry, err := h.daemon.Enqueue(ctx, []byte(validSeizureJSON))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !h.cfg.Sync.SyncOnStart {
		t.Fatal("expected sync_on_start enabled by default")
	}

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	testsupport.WaitFor(t, time.Second, "offline state", func() bool {
		return h.prober.Calls() > 0 && !h.daemon.Monitor().Online()
	})
	time.Sleep(100 * time.Millisecond)

	if calls := h.creator.Calls(); len(calls) != 0 {
		t.Fatalf("offline boot must not submit entries, got %v", calls)
	}
	got, err := h.daemon.Get(entry.LocalID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != queue.StatusPending || got.Attempts != 0 {
		t.Fatalf("expected untouched pending entry, got %+v", got)
	}
}

func TestEnqueueRejectsInvalidSeizure(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.daemon.Enqueue(context.Background(), []byte(`{"species":"dragon","quantity":0}`))
	var verr *seizure.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields) == 0 {
		t.Fatal("expected field errors")
	}

	_, err = h.daemon.Enqueue(context.Background(), []byte(`not json`))
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for malformed body, got %v", err)
	}
	if items, _ := h.daemon.List(nil); len(items) != 0 {
		t.Fatalf("invalid seizures must not be queued, got %d", len(items))
	}
}

func TestQueueOperationsBeforeStart(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	first, err := h.daemon.Enqueue(ctx, []byte(validSeizureJSON))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := h.daemon.Enqueue(ctx, []byte(validSeizureJSON))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	h.creator.FailFor(first.LocalID, &remote.Error{StatusCode: 422, Kind: remote.KindValidation, Detail: "quantity: too large"})
	h.creator.FailFor(second.LocalID, &remote.Error{StatusCode: 503, Kind: remote.KindServer})

	result, err := h.daemon.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Rejected != 1 || result.Failed != 1 {
		t.Fatalf("unexpected sync result: %+v", result)
	}

	rejected, err := h.daemon.List([]string{"rejected"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rejected) != 1 || rejected[0].LocalID != first.LocalID {
		t.Fatalf("expected one rejected entry, got %+v", rejected)
	}
	if _, err := h.daemon.List([]string{"bogus"}); err == nil {
		t.Fatal("expected unknown status filter to fail")
	}

	if updated := h.daemon.Retry(ctx, []string{first.LocalID}); updated != 1 {
		t.Fatalf("expected 1 retried entry, got %d", updated)
	}
	got, err := h.daemon.Get(first.LocalID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("expected pending after retry, got %s", got.Status)
	}

	if _, err := h.daemon.Discard(ctx, nil); err == nil {
		t.Fatal("expected discard without ids to fail")
	}
	removed, err := h.daemon.Discard(ctx, []string{second.LocalID, "missing"})
	if err != nil || removed != 1 {
		t.Fatalf("Discard = %d, %v", removed, err)
	}
	if _, err := h.daemon.Get(second.LocalID); !errors.Is(err, daemon.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first, err := daemon.New(cfg, store, logging.NewNop(),
		daemon.WithCreator(testsupport.NewRecordingCreator()),
		daemon.WithProber(testsupport.NewStaticProber(false)),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	entry, err := first.Enqueue(context.Background(), []byte(validSeizureJSON))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := queue.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	second, err := daemon.New(cfg, reopened, logging.NewNop(),
		daemon.WithCreator(testsupport.NewRecordingCreator()),
		daemon.WithProber(testsupport.NewStaticProber(false)),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := second.Get(entry.LocalID); err != nil {
		t.Fatalf("expected entry to survive restart: %v", err)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	h := newHarness(t, true)
	sent, message, err := h.daemon.TestNotification(context.Background())
	if err != nil || sent {
		t.Fatalf("expected skipped notification, got sent=%v err=%v", sent, err)
	}
	if !strings.Contains(message, "not configured") {
		t.Fatalf("unexpected message %q", message)
	}
}
