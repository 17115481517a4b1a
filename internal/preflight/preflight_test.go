package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldsync/internal/connectivity"
	"fieldsync/internal/remote"
	"fieldsync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("disk", dir, 1); !result.Passed {
		t.Fatalf("expected pass with tiny minimum, got %s", result.Detail)
	}
	if result := CheckFreeSpace("disk", dir, 1<<62); result.Passed {
		t.Fatal("expected failure with huge minimum")
	}
	if result := CheckFreeSpace("disk", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL(srv.URL))
	result := CheckAPI(context.Background(), remote.NewClient(cfg, nil))
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
}

func TestCheckAPIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL(srv.URL))
	result := CheckAPI(context.Background(), remote.NewClient(cfg, nil))
	if result.Passed || !strings.Contains(result.Detail, "502") {
		t.Fatalf("expected 502 failure, got %+v", result)
	}
}

type stubPinger struct {
	status int
	err    error
}

func (s stubPinger) Ping(context.Context) (int, error) { return s.status, s.err }
func (s stubPinger) BaseURL() string                   { return "http://records.test" }

func TestCheckAPIErrors(t *testing.T) {
	result := CheckAPI(context.Background(), stubPinger{err: &remote.Error{Kind: remote.KindConfiguration}})
	if result.Passed || !strings.Contains(result.Detail, "not configured") {
		t.Fatalf("unexpected result: %+v", result)
	}
	result = CheckAPI(context.Background(), stubPinger{err: context.DeadlineExceeded})
	if result.Passed || result.Detail != "request timed out" {
		t.Fatalf("unexpected result: %+v", result)
	}
	result = CheckAPI(context.Background(), stubPinger{err: errors.New("connection refused")})
	if result.Passed {
		t.Fatal("expected failure")
	}
}

type stateProber connectivity.State

func (p stateProber) Probe(context.Context) connectivity.State { return connectivity.State(p) }

func TestCheckConnectivity(t *testing.T) {
	cases := []struct {
		state  connectivity.State
		passed bool
		detail string
	}{
		{connectivity.State{Connected: true, InternetReachable: true}, true, "online"},
		{connectivity.State{Connected: true}, false, "connected but internet unreachable"},
		{connectivity.State{}, false, "no usable network interface"},
	}
	for _, tc := range cases {
		result := CheckConnectivity(context.Background(), stateProber(tc.state))
		if result.Passed != tc.passed || result.Detail != tc.detail {
			t.Fatalf("state %+v: got %+v", tc.state, result)
		}
	}
}

func TestRunAll(t *testing.T) {
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for _, r := range results[:4] {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if !Failed([]Result{{Passed: true}, {Passed: false}}) || Failed([]Result{{Passed: true}}) {
		t.Fatal("Failed misreports")
	}
}
