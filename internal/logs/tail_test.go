package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldsync/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldsync.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", result.Offset)
	}
}

func TestTailFromOffsetAndTruncation(t *testing.T) {
	path := writeLog(t, "first\nsecond\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 6})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "second" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}

	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("truncate log: %v", err)
	}
	result, err = logs.Tail(context.Background(), path, logs.TailOptions{Offset: result.Offset})
	if err != nil {
		t.Fatalf("tail after truncation: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "new" {
		t.Fatalf("expected restart from beginning, got %#v", result.Lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	initial, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil || len(initial.Lines) != 1 {
		t.Fatalf("initial tail: %#v %v", initial.Lines, err)
	}

	done := make(chan logs.TailResult, 1)
	go func() {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: initial.Offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- res
	}()

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case res := <-done:
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailFollowTimesOut(t *testing.T) {
	path := writeLog(t, "only\n")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 5, Follow: true, Wait: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 5 {
		t.Fatalf("unexpected result: %#v", result)
	}
}
