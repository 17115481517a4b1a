package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"fieldsync/internal/api"
	"fieldsync/internal/daemon"
	"fieldsync/internal/logging"
	"fieldsync/internal/logs"
	"fieldsync/internal/seizure"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path     string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer listens on path, replacing any stale socket file.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		_ = listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:     path,
		logger:   logger,
		listener: listener,
		rpc:      rpcServer,
		ctx:      serverCtx,
		cancel:   cancel,
	}, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.Impact("CLI commands may fail to reach the daemon"),
					logging.Hint("check socket permissions and restart the daemon"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpc.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops accepting, waits for open connections and removes the socket.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.Impact("a stale socket may confuse the next start"),
			logging.Hint("remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	items, err := s.daemon.List(req.Statuses)
	if err != nil {
		return err
	}
	resp.Items = api.FromEntries(items)
	return nil
}

func (s *service) Show(req ShowRequest, resp *ShowResponse) error {
	entry, err := s.daemon.Get(req.LocalID)
	if err != nil {
		return err
	}
	resp.Item = api.FromEntry(entry)
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	entry, err := s.daemon.Enqueue(s.ctx, req.Payload)
	if err != nil {
		var verr *seizure.ValidationError
		if errors.As(err, &verr) {
			resp.Fields = verr.Fields
			return nil
		}
		return err
	}
	item := api.FromEntry(entry)
	resp.Item = &item
	s.logger.Info("seizure queued via ipc",
		logging.EntryID(entry.LocalID),
		logging.String(logging.FieldEventType, "ipc_enqueue"),
	)
	return nil
}

func (s *service) Sync(_ SyncRequest, resp *SyncResponse) error {
	result, err := s.daemon.Sync(s.ctx)
	if err != nil {
		return err
	}
	*resp = api.FromSyncResult(result)
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	resp.Updated = s.daemon.Retry(s.ctx, req.LocalIDs)
	return nil
}

func (s *service) Discard(req DiscardRequest, resp *DiscardResponse) error {
	removed, err := s.daemon.Discard(s.ctx, req.LocalIDs)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("entries discarded via ipc",
		logging.Int("count", removed),
		logging.String(logging.FieldEventType, "ipc_discard"),
	)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	path := s.daemon.LogPath()
	if path == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, path, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
