package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fieldsync/internal/api"
	"fieldsync/internal/logging"
	"fieldsync/internal/remote"
	"fieldsync/internal/testsupport"
)

const seizureBody = `{"species":"ovine","seized_part":"lung","seizure_type":"total","reason":"Pneumonia","quantity":2,"unit":"kg"}`

func newTestAPI(t *testing.T) (*Daemon, *testsupport.RecordingCreator, http.Handler) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	creator := testsupport.NewRecordingCreator()
	d, err := New(cfg, testsupport.NewMemoryStore(), logging.NewNop(),
		WithCreator(creator),
		WithProber(testsupport.NewStaticProber(false)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.api == nil {
		t.Fatal("expected api server for non-empty bind")
	}
	return d, creator, d.api.router
}

func serve(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

func TestAPIEnqueueAndList(t *testing.T) {
	_, _, handler := newTestAPI(t)

	rec := serve(t, handler, http.MethodPost, "/api/queue", seizureBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created api.QueueItemResponse
	decodeBody(t, rec, &created)
	if created.Item.LocalID == "" || created.Item.Status != "pending" {
		t.Fatalf("unexpected item: %+v", created.Item)
	}

	rec = serve(t, handler, http.MethodGet, "/api/queue", "")
	var list api.QueueListResponse
	decodeBody(t, rec, &list)
	if len(list.Items) != 1 || list.Items[0].LocalID != created.Item.LocalID {
		t.Fatalf("unexpected list: %+v", list.Items)
	}

	rec = serve(t, handler, http.MethodGet, "/api/queue?status=failed", "")
	decodeBody(t, rec, &list)
	if len(list.Items) != 0 {
		t.Fatalf("expected empty failed list, got %d", len(list.Items))
	}

	rec = serve(t, handler, http.MethodGet, "/api/queue/"+created.Item.LocalID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = serve(t, handler, http.MethodGet, "/api/status", "")
	var status api.DaemonStatus
	decodeBody(t, rec, &status)
	if status.Counts.Pending != 1 || status.Banner == "" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAPIEnqueueValidation(t *testing.T) {
	_, _, handler := newTestAPI(t)

	rec := serve(t, handler, http.MethodPost, "/api/queue", `{"species":"bovine"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rec, &resp)
	if len(resp.Fields) == 0 {
		t.Fatalf("expected field errors, got %+v", resp)
	}

	rec = serve(t, handler, http.MethodGet, "/api/queue?status=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestAPIRetryDiscardAndSync(t *testing.T) {
	d, creator, handler := newTestAPI(t)
	ctx := context.Background()

	entry, err := d.Enqueue(ctx, []byte(seizureBody))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	creator.FailFor(entry.LocalID, &remote.Error{StatusCode: 400, Kind: remote.KindValidation})

	rec := serve(t, handler, http.MethodPost, "/api/sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result api.SyncResult
	decodeBody(t, rec, &result)
	if result.Rejected != 1 {
		t.Fatalf("expected one rejection, got %+v", result)
	}

	rec = serve(t, handler, http.MethodPost, "/api/queue/"+entry.LocalID+"/retry", "")
	var retried api.RetryResponse
	decodeBody(t, rec, &retried)
	if retried.Updated != 1 {
		t.Fatalf("expected one retried entry, got %d", retried.Updated)
	}

	rec = serve(t, handler, http.MethodPost, "/api/queue/unknown/retry", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown retry, got %d", rec.Code)
	}

	rec = serve(t, handler, http.MethodDelete, "/api/queue/"+entry.LocalID, "")
	var discarded api.DiscardResponse
	decodeBody(t, rec, &discarded)
	if discarded.Removed != 1 {
		t.Fatalf("expected one removed entry, got %d", discarded.Removed)
	}

	rec = serve(t, handler, http.MethodDelete, "/api/queue/"+entry.LocalID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second discard, got %d", rec.Code)
	}
}

func TestAPISyncConflict(t *testing.T) {
	d, creator, handler := newTestAPI(t)
	if _, err := d.Enqueue(context.Background(), []byte(seizureBody)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	entered, release := creator.Block()
	defer release()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Sync(context.Background())
	}()
	<-entered

	rec := serve(t, handler, http.MethodPost, "/api/sync", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a pass runs, got %d", rec.Code)
	}
	release()
	<-done
}

func TestAPIRoutingErrors(t *testing.T) {
	_, _, handler := newTestAPI(t)

	rec := serve(t, handler, http.MethodGet, "/api/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = serve(t, handler, http.MethodPut, "/api/queue", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	d, err := New(cfg, testsupport.NewMemoryStore(), logging.NewNop(),
		WithCreator(testsupport.NewRecordingCreator()),
		WithProber(testsupport.NewStaticProber(true)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.api != nil {
		t.Fatal("expected no api server")
	}
	if d.APIAddress() != "" {
		t.Fatal("expected empty address")
	}
}
