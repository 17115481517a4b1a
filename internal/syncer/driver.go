package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fieldsync/internal/logging"
	"fieldsync/internal/notifications"
	"fieldsync/internal/queue"
)

// ErrSyncInProgress is returned when SyncAll is called while a pass runs.
var ErrSyncInProgress = errors.New("sync already in progress")

// Creator submits one queued payload to the remote service.
type Creator interface {
	Create(ctx context.Context, localID string, payload json.RawMessage) error
}

// Result summarizes one SyncAll pass.
type Result struct {
	Trigger     string        `json:"trigger,omitempty"`
	Attempted   int           `json:"attempted"`
	Synced      int           `json:"synced"`
	Failed      int           `json:"failed"`
	Rejected    int           `json:"rejected"`
	Interrupted bool          `json:"interrupted,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Driver runs sync passes against a queue engine.
type Driver struct {
	engine   *queue.Engine
	creator  Creator
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time

	syncOnStart   bool
	retryInterval time.Duration

	running atomic.Bool
	passes  atomic.Uint64
	kicked  sync.WaitGroup

	// pending is set by Kick and cleared when a pass takes its snapshot.
	pending atomic.Bool
	kickMu  sync.Mutex
	kickCtx context.Context

	mu   sync.Mutex
	last *Result
}

// Option customizes a Driver.
type Option func(*Driver)

// WithNotifier publishes rejections and pass summaries.
func WithNotifier(n notifications.Service) Option {
	return func(d *Driver) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithLogger sets the driver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logging.NewComponentLogger(logger, "sync")
	}
}

// WithClock overrides the time source for results.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithSyncOnStart makes Run sync once at startup when already online.
func WithSyncOnStart(enabled bool) Option {
	return func(d *Driver) {
		d.syncOnStart = enabled
	}
}

// WithRetryInterval makes Run re-sync on a timer while online. Zero disables.
func WithRetryInterval(interval time.Duration) Option {
	return func(d *Driver) {
		d.retryInterval = interval
	}
}

// NewDriver returns a driver that submits engine entries through creator.
func NewDriver(engine *queue.Engine, creator Creator, opts ...Option) *Driver {
	d := &Driver{
		engine:   engine,
		creator:  creator,
		notifier: notifications.NewService(nil),
		logger:   logging.NewComponentLogger(nil, "sync"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Syncing reports whether a pass is running.
func (d *Driver) Syncing() bool {
	return d.running.Load()
}

// Passes returns how many passes have run since start.
func (d *Driver) Passes() uint64 {
	return d.passes.Load()
}

// LastResult returns the most recent completed pass.
func (d *Driver) LastResult() (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Result{}, false
	}
	return *d.last, true
}

// SyncAll submits every eligible entry sequentially in queue order. One
// failure never stops the pass; only ctx cancellation does, in which case
// the unfinished entry is left untouched and ctx's error is returned.
func (d *Driver) SyncAll(ctx context.Context) (Result, error) {
	return d.syncAll(ctx, "manual")
}

func (d *Driver) syncAll(ctx context.Context, trigger string) (Result, error) {
	if !d.running.CompareAndSwap(false, true) {
		return Result{}, ErrSyncInProgress
	}
	defer func() {
		d.running.Store(false)
		d.followUp()
	}()
	d.passes.Add(1)
	d.pending.Store(false)

	result := Result{Trigger: trigger, StartedAt: d.now()}
	var eligible []queue.Entry
	for _, entry := range d.engine.Items() {
		if entry.Eligible() {
			eligible = append(eligible, entry)
		}
	}

	if len(eligible) > 0 {
		d.logger.Info("sync started",
			logging.Int("eligible", len(eligible)),
			logging.String("trigger", trigger),
			logging.String(logging.FieldEventType, "sync_started"),
		)
	}

	var passErr error
	for _, entry := range eligible {
		if err := ctx.Err(); err != nil {
			result.Interrupted = true
			passErr = err
			break
		}
		result.Attempted++
		err := d.creator.Create(ctx, entry.LocalID, entry.Payload)
		if err == nil {
			d.engine.MarkSynced(ctx, entry.LocalID)
			result.Synced++
			d.logger.Info("entry synced",
				logging.EntryID(entry.LocalID),
				logging.String(logging.FieldEventType, "entry_synced"),
			)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			result.Attempted--
			result.Interrupted = true
			passErr = ctxErr
			break
		}
		d.recordFailure(ctx, entry, err, &result)
	}

	result.Duration = d.now().Sub(result.StartedAt)
	d.mu.Lock()
	last := result
	d.last = &last
	d.mu.Unlock()

	if result.Attempted > 0 || result.Interrupted {
		d.logger.Info("sync finished",
			logging.String("trigger", trigger),
			logging.Int("attempted", result.Attempted),
			logging.Int("synced", result.Synced),
			logging.Int("failed", result.Failed),
			logging.Int("rejected", result.Rejected),
			logging.Bool("interrupted", result.Interrupted),
			logging.Duration("duration", result.Duration),
			logging.String(logging.FieldEventType, "sync_completed"),
		)
	}
	if result.Attempted > 0 {
		d.publish(ctx, notifications.EventSyncCompleted, notifications.Payload{
			"synced":   result.Synced,
			"failed":   result.Failed,
			"rejected": result.Rejected,
		})
	}
	return result, passErr
}

func (d *Driver) recordFailure(ctx context.Context, entry queue.Entry, err error, result *Result) {
	kind := queue.ClassifyFailure(err)
	d.engine.MarkFailed(ctx, entry.LocalID, err.Error(), kind)

	if kind == queue.FailurePermanent {
		result.Rejected++
		logging.WarnWithContext(d.logger, "entry rejected by server", "entry_rejected",
			logging.EntryID(entry.LocalID),
			logging.Error(err),
			logging.FailureKind(string(kind)),
			logging.Attempts(entry.Attempts+1),
			logging.Hint("fix the record and retry, or discard it"),
			logging.Impact("seizure stays on the device and is not retried automatically"),
		)
		d.publish(ctx, notifications.EventEntryRejected, notifications.Payload{
			"localId": entry.LocalID,
			"reason":  err.Error(),
		})
		return
	}

	result.Failed++
	logging.WarnWithContext(d.logger, "entry submission failed; will retry", "entry_sync_failed",
		logging.EntryID(entry.LocalID),
		logging.Error(err),
		logging.FailureKind(string(kind)),
		logging.Attempts(entry.Attempts+1),
		logging.Hint("check connectivity and API availability"),
		logging.Impact("seizure retried on the next sync pass"),
	)
}

func (d *Driver) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.Hint("check notifications.ntfy_topic"),
			logging.Impact("event not delivered to ntfy"),
		)
	}
}

// Run drives automatic passes until ctx is done: one per offline to online
// transition read from transitions, one at startup when enabled and online,
// and one per retry tick while online when a retry interval is set.
func (d *Driver) Run(ctx context.Context, transitions <-chan bool, initialOnline bool) {
	online := initialOnline
	if d.syncOnStart && online {
		d.runPass(ctx, "startup")
	}

	var tick <-chan time.Time
	if d.retryInterval > 0 {
		ticker := time.NewTicker(d.retryInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			wasOnline := online
			online = next
			if next && !wasOnline {
				d.runPass(ctx, "online")
			}
		case <-tick:
			if online && d.hasEligible() {
				d.runPass(ctx, "retry_timer")
			}
		}
	}
}

// Kick starts a background pass. When a pass is already running, entries
// queued after its snapshot are picked up by a follow-up pass once it ends.
// Wait blocks until kicked passes finish.
func (d *Driver) Kick(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	d.kickMu.Lock()
	d.kickCtx = ctx
	d.kickMu.Unlock()
	d.pending.Store(true)
	if d.running.Load() {
		return
	}
	d.spawn(ctx, trigger)
}

func (d *Driver) spawn(ctx context.Context, trigger string) {
	d.kicked.Add(1)
	go func() {
		defer d.kicked.Done()
		d.runPass(ctx, trigger)
	}()
}

// followUp runs after every pass. A Kick that landed after the pass took its
// snapshot leaves pending set.
func (d *Driver) followUp() {
	if !d.pending.Load() {
		return
	}
	d.kickMu.Lock()
	ctx := d.kickCtx
	d.kickMu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	d.spawn(ctx, "follow_up")
}

// Wait blocks until every kicked pass has returned.
func (d *Driver) Wait() {
	d.kicked.Wait()
}

func (d *Driver) hasEligible() bool {
	for _, entry := range d.engine.Items() {
		if entry.Eligible() {
			return true
		}
	}
	return false
}

func (d *Driver) runPass(ctx context.Context, trigger string) {
	_, err := d.syncAll(ctx, trigger)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		d.logger.Debug("sync trigger skipped; pass already running", logging.String("trigger", trigger))
	case ctx.Err() != nil:
	default:
		logging.WarnWithContext(d.logger, "sync pass failed", "sync_failed",
			logging.String("trigger", trigger),
			logging.Error(err),
		)
	}
}
