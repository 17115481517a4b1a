package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fieldsync/internal/logging"
)

// State is one connectivity observation.
type State struct {
	Connected         bool `json:"connected"`
	InternetReachable bool `json:"internet_reachable"`
}

// Online reports whether the observation counts as online. A connection that
// cannot reach the internet, such as a captive portal, is offline.
func (s State) Online() bool {
	return s.Connected && s.InternetReachable
}

// Prober produces a fresh observation.
type Prober interface {
	Probe(ctx context.Context) State
}

// Monitor holds the current connectivity state and fans transitions out to
// subscribers.
type Monitor struct {
	prober   Prober
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	state    State
	observed bool
	settled  chan struct{}
	subs     map[uint64]*subscriber
	nextSub  uint64

	trigger chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithInterval sets how often the prober is polled. Non-positive disables
// polling; only Trigger and Observe then update the state.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.interval = d
	}
}

// WithLogger sets the monitor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logging.NewComponentLogger(logger, "connectivity")
	}
}

// NewMonitor returns a monitor that reports online until the first
// observation arrives. prober may be nil when observations are fed manually.
func NewMonitor(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:  prober,
		logger:  logging.NewComponentLogger(nil, "connectivity"),
		state:   State{Connected: true, InternetReachable: true},
		settled: make(chan struct{}),
		subs:    make(map[uint64]*subscriber),
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Online reports the current online flag.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Online()
}

// State returns the latest observation, or the optimistic default.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Settled is closed once the first real observation has been recorded.
// Until then Online reports the optimistic default.
func (m *Monitor) Settled() <-chan struct{} {
	return m.settled
}

// Observe records a new observation. Subscribers are notified only when the
// online flag changes; the return value reports whether it did.
func (m *Monitor) Observe(s State) bool {
	m.mu.Lock()
	prev := m.state.Online()
	first := !m.observed
	m.state = s
	m.observed = true
	if first {
		close(m.settled)
	}
	online := s.Online()
	changed := prev != online
	if changed {
		for _, sub := range m.subs {
			sub.push(online)
		}
	}
	m.mu.Unlock()

	if changed {
		m.logger.Info("connectivity changed",
			logging.Bool("online", online),
			logging.Bool("connected", s.Connected),
			logging.Bool("internet_reachable", s.InternetReachable),
			logging.String(logging.FieldEventType, "connectivity_changed"),
		)
	} else if first {
		m.logger.Debug("initial connectivity observed", logging.Bool("online", online))
	}
	return changed
}

// Subscribe returns a channel that receives the new online flag on every
// transition, in order. Slow readers never block Observe: transitions are
// buffered per subscriber. The returned func unsubscribes and closes the
// channel once buffered values are abandoned.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	sub := newSubscriber()

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = sub
	m.mu.Unlock()

	go sub.run()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(sub.done)
		})
	}
}

// Trigger requests an immediate re-probe. Requests coalesce while a probe is
// outstanding.
func (m *Monitor) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// ProbeNow runs the prober once and records the result.
func (m *Monitor) ProbeNow(ctx context.Context) State {
	if m.prober == nil {
		return m.State()
	}
	s := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		return m.State()
	}
	m.Observe(s)
	return s
}

// Start launches the polling loop. The first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running || m.prober == nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.loop(loopCtx, m.done)
	m.logger.Info("connectivity monitor started",
		logging.Duration("interval", m.interval),
		logging.String(logging.FieldEventType, "connectivity_monitor_started"),
	)
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	<-m.done
	m.running = false
	m.cancel = nil
	m.done = nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	m.ProbeNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			m.ProbeNow(ctx)
		case <-m.trigger:
			m.ProbeNow(ctx)
		}
	}
}

// subscriber buffers transitions so the observer never waits on a reader.
type subscriber struct {
	mu      sync.Mutex
	pending []bool
	wake    chan struct{}
	out     chan bool
	done    chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan bool),
		done: make(chan struct{}),
	}
}

func (s *subscriber) push(online bool) {
	s.mu.Lock()
	s.pending = append(s.pending, online)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, v := range batch {
			select {
			case s.out <- v:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
