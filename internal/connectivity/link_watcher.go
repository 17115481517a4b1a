package connectivity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"fieldsync/internal/logging"
)

// LinkWatcher listens for kernel network link events over netlink and asks
// the monitor to re-probe, so a cable unplug or Wi-Fi association shows up
// without waiting for the next poll.
type LinkWatcher struct {
	logger  *slog.Logger
	trigger func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewLinkWatcher returns a watcher that calls trigger on each matching event.
func NewLinkWatcher(logger *slog.Logger, trigger func()) *LinkWatcher {
	return &LinkWatcher{
		logger:  logging.NewComponentLogger(logger, "link-watcher"),
		trigger: trigger,
	}
}

// Start connects to the udev netlink socket. Failure to connect is logged and
// ignored; polling still covers connectivity changes.
func (w *LinkWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(w.logger, "failed to connect to netlink socket; relying on probe polling", "netlink_connect_failed",
			logging.Error(err),
			logging.Hint("ensure the daemon may open netlink sockets"),
			logging.Impact("link changes are noticed at the next probe interval"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.loop(ctx, conn, quit)

	w.logger.Info("link watcher started",
		logging.String(logging.FieldEventType, "link_watcher_started"),
	)
	return nil
}

// Stop closes the netlink connection.
func (w *LinkWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false

	w.logger.Info("link watcher stopped",
		logging.String(logging.FieldEventType, "link_watcher_stopped"),
	)
}

// Running reports whether the watcher is connected.
func (w *LinkWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *LinkWatcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(events, errs, linkMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			w.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.Hint("check kernel netlink subsystem"),
				logging.Impact("link changes may be noticed late"),
			)
		}
	}
}

// linkMatcher matches SUBSYSTEM=net with ACTION add, remove or change.
func linkMatcher() netlink.Matcher {
	action := "add|remove|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (w *LinkWatcher) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	if iface == "lo" {
		return
	}
	w.logger.Debug("link event",
		logging.String("action", string(uevent.Action)),
		logging.String("interface", iface),
	)
	if w.trigger != nil {
		w.trigger()
	}
}
