package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Reconnect errors.
var (
	ErrManagerClosed    = errors.New("reconnect manager closed")
	ErrAlreadyConnected = errors.New("already connected")
	ErrGaveUp           = errors.New("reconnect attempts exhausted")
)

// State represents the managed connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a caller-initiated attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates the manager is retrying in the background.
	StateReconnecting

	// StateClosed indicates the manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes a connection and returns once it is usable.
type ConnectFunc func(ctx context.Context) error

// Config configures a Manager.
type Config struct {
	// Backoff shapes the delay between attempts.
	Backoff BackoffConfig

	// AttemptTimeout bounds each background attempt.
	AttemptTimeout time.Duration

	// MaxAttempts stops retrying after this many failures. Zero means no limit.
	MaxAttempts int

	// Permanent reports errors that must not be retried (for example a
	// rejected pairing or a certificate mismatch).
	Permanent func(error) bool

	Logger *slog.Logger
}

// DefaultConfig returns the default reconnect configuration.
func DefaultConfig() Config {
	return Config{
		Backoff:        DefaultBackoffConfig(),
		AttemptTimeout: 30 * time.Second,
	}
}

// Manager keeps a connection alive, retrying with backoff after losses.
type Manager struct {
	mu sync.RWMutex

	state         State
	autoReconnect bool

	cfg       Config
	backoff   *Backoff
	connectFn ConnectFunc
	logger    *slog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	loopStarted bool
	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onReconnecting func(attempt int, delay time.Duration)
	onGiveUp       func(err error)
}

// NewManager creates a manager with DefaultConfig.
func NewManager(connectFn ConnectFunc) *Manager {
	return NewManagerWithConfig(connectFn, DefaultConfig())
}

// NewManagerWithConfig creates a manager.
func NewManagerWithConfig(connectFn ConnectFunc, cfg Config) *Manager {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:         StateDisconnected,
		autoReconnect: true,
		cfg:           cfg,
		backoff:       NewBackoffWithConfig(cfg.Backoff),
		connectFn:     connectFn,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the connection is up.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// SetAutoReconnect enables or disables background retries.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	m.autoReconnect = enabled
	m.mu.Unlock()
}

// Connect performs one caller-driven attempt. Failures are returned and do
// not start background retries.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	}
	old := m.state
	m.state = StateConnecting
	m.mu.Unlock()
	m.notifyState(old, StateConnecting)

	if err := m.connectFn(ctx); err != nil {
		m.transition(StateConnecting, StateDisconnected)
		return err
	}

	m.backoff.Reset()
	m.transition(StateConnecting, StateConnected)
	return nil
}

// NotifyConnectionLost reports a lost connection. With auto-reconnect on
// (and a non-permanent cause) the background loop starts retrying.
func (m *Manager) NotifyConnectionLost(cause error) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	retry := m.autoReconnect && !m.isPermanent(cause)
	next := StateDisconnected
	if retry {
		next = StateReconnecting
	}
	m.state = next
	m.mu.Unlock()

	m.logger.Debug("connection lost", "cause", cause, "retry", retry)
	m.notifyState(StateConnected, next)

	if retry {
		m.startLoop()
		select {
		case m.reconnectCh <- struct{}{}:
		default:
		}
	}
}

// MarkDisconnected records a deliberate disconnect. No retries follow.
func (m *Manager) MarkDisconnected() {
	m.mu.Lock()
	old := m.state
	if old == StateClosed || old == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.mu.Unlock()
	m.notifyState(old, StateDisconnected)
}

// Close stops the manager and waits for the background loop.
// It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = StateClosed
	m.mu.Unlock()

	m.notifyState(old, StateClosed)
	m.cancel()
	m.wg.Wait()
}

// Attempts returns the number of retries since the last success.
func (m *Manager) Attempts() int {
	return m.backoff.Attempts()
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	m.onStateChange = fn
	m.mu.Unlock()
}

// OnReconnecting sets a callback invoked before each retry delay.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	m.onReconnecting = fn
	m.mu.Unlock()
}

// OnGiveUp sets a callback invoked when retries stop without success.
func (m *Manager) OnGiveUp(fn func(err error)) {
	m.mu.Lock()
	m.onGiveUp = fn
	m.mu.Unlock()
}

func (m *Manager) isPermanent(err error) bool {
	return err != nil && m.cfg.Permanent != nil && m.cfg.Permanent(err)
}

func (m *Manager) startLoop() {
	m.mu.Lock()
	if m.loopStarted || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.loopStarted = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.reconnectLoop()
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.retry()
		}
	}
}

func (m *Manager) retry() {
	for {
		if m.State() != StateReconnecting {
			return
		}

		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()
		if fn := m.reconnectingCallback(); fn != nil {
			fn(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if m.State() != StateReconnecting {
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.AttemptTimeout)
		err := m.connectFn(ctx)
		cancel()

		if err == nil {
			m.backoff.Reset()
			m.transition(StateReconnecting, StateConnected)
			m.logger.Debug("reconnected", "attempts", attempt)
			return
		}

		m.logger.Debug("reconnect attempt failed", "attempt", attempt, "error", err)

		if m.isPermanent(err) || (m.cfg.MaxAttempts > 0 && attempt >= m.cfg.MaxAttempts) {
			if !m.isPermanent(err) {
				err = errors.Join(ErrGaveUp, err)
			}
			m.transition(StateReconnecting, StateDisconnected)
			m.mu.RLock()
			fn := m.onGiveUp
			m.mu.RUnlock()
			if fn != nil {
				fn(err)
			}
			return
		}
	}
}

func (m *Manager) reconnectingCallback() func(int, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.onReconnecting
}

// transition moves from -> to if the manager is still in from.
func (m *Manager) transition(from, to State) {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.mu.Unlock()
	m.notifyState(from, to)
}

func (m *Manager) notifyState(old, next State) {
	m.mu.RLock()
	fn := m.onStateChange
	m.mu.RUnlock()
	if fn != nil && old != next {
		fn(old, next)
	}
}
