package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"fieldsync/internal/api"
	"fieldsync/internal/config"
	"fieldsync/internal/connectivity"
	"fieldsync/internal/logging"
	"fieldsync/internal/notifications"
	"fieldsync/internal/queue"
	"fieldsync/internal/remote"
	"fieldsync/internal/seizure"
	"fieldsync/internal/status"
	"fieldsync/internal/syncer"
)

// ErrNotFound is returned for unknown local IDs.
var ErrNotFound = errors.New("queue entry not found")

// Daemon owns the offline queue for the lifetime of the process.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    queue.Store
	engine   *queue.Engine
	monitor  *connectivity.Monitor
	watcher  *connectivity.LinkWatcher
	driver   *syncer.Driver
	notifier notifications.Service
	surface  *status.Surface
	api      *apiServer
	logPath  string
	now      func() time.Time

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option customizes collaborators, mainly for tests.
type Option func(*options)

type options struct {
	creator  syncer.Creator
	prober   connectivity.Prober
	notifier notifications.Service
	logPath  string
}

// WithCreator replaces the remote API client.
func WithCreator(c syncer.Creator) Option {
	return func(o *options) { o.creator = c }
}

// WithProber replaces the HTTP connectivity prober.
func WithProber(p connectivity.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithNotifier replaces the ntfy notifier.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// WithLogPath records the active log file for status output.
func WithLogPath(path string) Option {
	return func(o *options) { o.logPath = path }
}

// New constructs a daemon around store. Nothing runs until Start.
func New(cfg *config.Config, store queue.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.creator == nil {
		o.creator = remote.NewClient(cfg, logger)
	}
	if o.prober == nil {
		o.prober = connectivity.NewHTTPProber(cfg, logger)
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}

	engine := queue.NewEngine(store, logger)
	monitor := connectivity.NewMonitor(o.prober,
		connectivity.WithInterval(time.Duration(cfg.Connectivity.ProbeIntervalSeconds)*time.Second),
		connectivity.WithLogger(logger),
	)
	driver := syncer.NewDriver(engine, o.creator,
		syncer.WithNotifier(o.notifier),
		syncer.WithLogger(logger),
		syncer.WithSyncOnStart(cfg.Sync.SyncOnStart),
		syncer.WithRetryInterval(time.Duration(cfg.Sync.RetryIntervalSeconds)*time.Second),
	)

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   engine,
		monitor:  monitor,
		driver:   driver,
		notifier: o.notifier,
		surface:  status.NewSurface(engine, monitor, driver),
		logPath:  o.logPath,
		now:      func() time.Time { return time.Now().UTC() },
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if cfg.Connectivity.WatchNetlink {
		d.watcher = connectivity.NewLinkWatcher(logger, monitor.Trigger)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the lock, loads the queue and launches monitoring, the sync
// driver and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldsync daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.engine.LoadFromStorage(runCtx)

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	transitions, unsubscribe := d.monitor.Subscribe()
	d.monitor.Start(runCtx)
	if err := d.watcher.Start(runCtx); err != nil {
		d.logger.Debug("link watcher start failed", logging.Error(err))
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer unsubscribe()
		// Online is optimistic until the first probe lands.
		select {
		case <-d.monitor.Settled():
		case <-runCtx.Done():
			return
		}
		d.driver.Run(runCtx, transitions, d.monitor.Online())
	}()

	d.runCtx = runCtx
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("fieldsync daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("queued", d.engine.Len()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts background work and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.watcher.Stop()
	d.monitor.Stop()
	d.wg.Wait()
	d.driver.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.Hint("remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("fieldsync daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the bound HTTP address, or "" when the API is off.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Monitor exposes the connectivity monitor.
func (d *Daemon) Monitor() *connectivity.Monitor {
	return d.monitor
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) api.DaemonStatus {
	out := api.FromSnapshot(d.surface.Snapshot(), d.monitor.State())
	out.Running = d.running.Load()
	out.PID = os.Getpid()
	out.StorageBackend = d.cfg.Storage.Backend
	out.QueuePath = d.queuePath()
	out.LockFilePath = d.lockPath
	out.LogPath = d.logPath
	return out
}

func (d *Daemon) queuePath() string {
	if d.cfg.Storage.Backend == config.StorageFile {
		return d.cfg.QueueFilePath()
	}
	return d.cfg.QueueDBPath()
}

// List returns entries in queue order, optionally filtered by status.
func (d *Daemon) List(statuses []string) ([]queue.Entry, error) {
	return FilterEntries(d.engine.Items(), statuses)
}

// FilterEntries keeps items whose status is listed. The pseudo-status
// "rejected" selects permanent failures. No statuses keeps everything.
func FilterEntries(items []queue.Entry, statuses []string) ([]queue.Entry, error) {
	filter, err := parseStatusFilter(statuses)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return items, nil
	}
	out := make([]queue.Entry, 0, len(items))
	for _, entry := range items {
		if filter(entry) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func parseStatusFilter(values []string) (func(queue.Entry) bool, error) {
	var statuses []queue.Status
	rejected := false
	for _, raw := range values {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value == "" {
			continue
		}
		if value == "rejected" {
			rejected = true
			continue
		}
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, parsed)
	}
	if len(statuses) == 0 && !rejected {
		return nil, nil
	}
	return func(entry queue.Entry) bool {
		if rejected && entry.Rejected() {
			return true
		}
		for _, s := range statuses {
			if entry.Status == s {
				return true
			}
		}
		return false
	}, nil
}

// Get returns a single entry.
func (d *Daemon) Get(localID string) (queue.Entry, error) {
	entry, ok := d.engine.Get(strings.TrimSpace(localID))
	if !ok {
		return queue.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, localID)
	}
	return entry, nil
}

// Enqueue validates payload as a seizure and queues it. When online a
// background sync pass is started so the record goes out immediately. The
// pass belongs to the daemon, not the request, so Stop can cancel it.
func (d *Daemon) Enqueue(ctx context.Context, payload json.RawMessage) (queue.Entry, error) {
	record, err := seizure.Decode(payload)
	if err != nil {
		return queue.Entry{}, &seizure.ValidationError{Fields: []seizure.FieldError{{Field: "body", Message: err.Error()}}}
	}
	normalized, err := record.Payload(d.now())
	if err != nil {
		return queue.Entry{}, err
	}
	id, err := d.engine.Enqueue(ctx, normalized)
	if err != nil {
		return queue.Entry{}, err
	}
	if d.running.Load() && d.monitor.Online() {
		d.driver.Kick(d.runCtx, "enqueue")
	}
	entry, _ := d.engine.Get(id)
	return entry, nil
}

// Sync runs a pass now.
func (d *Daemon) Sync(ctx context.Context) (syncer.Result, error) {
	return d.driver.SyncAll(ctx)
}

// Retry resets failed entries to pending. No IDs resets all failed entries.
func (d *Daemon) Retry(ctx context.Context, ids []string) int {
	updated := d.engine.Retry(ctx, ids...)
	if updated > 0 {
		d.logger.Info("entries reset for retry",
			logging.Int("count", updated),
			logging.String(logging.FieldEventType, "entries_retried"),
		)
	}
	return updated
}

// Discard removes the listed entries.
func (d *Daemon) Discard(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, errors.New("discard requires at least one id")
	}
	return d.engine.Discard(ctx, ids...), nil
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the active log file path.
func (d *Daemon) LogPath() string {
	return d.logPath
}
