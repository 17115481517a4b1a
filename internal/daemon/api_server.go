package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fieldsync/internal/api"
	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/seizure"
	"fieldsync/internal/syncer"
)

// maxBodyBytes bounds enqueue bodies; photos are base64 so allow headroom.
const maxBodyBytes = 16 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *mux.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.router = srv.routes()
	return srv
}

func (s *apiServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/queue", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/queue", s.handleEnqueue).Methods(http.MethodPost)
	r.HandleFunc("/api/queue/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/queue/{id}", s.handleDiscard).Methods(http.MethodDelete)
	r.HandleFunc("/api/queue/{id}/retry", s.handleRetry).Methods(http.MethodPost)
	r.HandleFunc("/api/sync", s.handleSync).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.Hint("check paths.api_bind"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_server_started"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []string
	for _, value := range r.URL.Query()["status"] {
		statuses = append(statuses, strings.Split(value, ",")...)
	}
	items, err := s.daemon.List(statuses)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: api.FromEntries(items)})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := s.daemon.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, "queue entry not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: api.FromEntry(entry)})
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	entry, err := s.daemon.Enqueue(r.Context(), body)
	if err != nil {
		var verr *seizure.ValidationError
		switch {
		case errors.As(err, &verr):
			s.writeJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{Error: "invalid seizure", Fields: verr.Fields})
		case errors.Is(err, queue.ErrNilPayload), errors.Is(err, queue.ErrInvalidPayload):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusCreated, api.QueueItemResponse{Item: api.FromEntry(entry)})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon.Get(id); err != nil {
		s.writeError(w, http.StatusNotFound, "queue entry not found")
		return
	}
	updated := s.daemon.Retry(r.Context(), []string{id})
	s.writeJSON(w, http.StatusOK, api.RetryResponse{Updated: updated})
}

func (s *apiServer) handleDiscard(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.Discard(r.Context(), []string{mux.Vars(r)["id"]})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if removed == 0 {
		s.writeError(w, http.StatusNotFound, "queue entry not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.DiscardResponse{Removed: removed})
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.Sync(r.Context())
	if errors.Is(err, syncer.ErrSyncInProgress) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSyncResult(result))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
