package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/rendercast/rendercast-go/pkg/cert"
	"github.com/rendercast/rendercast-go/pkg/log"
	"github.com/rendercast/rendercast-go/pkg/metrics"
	"github.com/rendercast/rendercast-go/pkg/wire"
)

// URIs used by the session itself.
const (
	URISetPin = "ssap://pairing/setPin"
)

// Listener receives session lifecycle events. Methods run on the reader
// goroutine and must not block.
type Listener interface {
	// OnRegistered is called once the device accepted the client.
	OnRegistered()

	// OnPairingRequired is called when the device prompts the user.
	OnPairingRequired(pairingType string)

	// OnConnectionFailed is called when a connect attempt ends before
	// registration.
	OnConnectionFailed(err error)

	// OnDisconnected is called when a registered session ends. err is nil
	// for a requested disconnect.
	OnDisconnected(err error)

	// OnUnsolicited receives messages that match no pending command.
	OnUnsolicited(msg *wire.Message)
}

// Session is a control session with one device.
type Session struct {
	cfg    Config
	pinner *cert.Pinner

	mu         sync.Mutex
	state      State
	gen        uint64
	conn       *websocket.Conn
	cancel     context.CancelFunc
	connID     atomic.Value
	nextID     int
	registerID int
	commands   map[int]*Command
	pending    []*Command
	listener   Listener

	writeMu sync.Mutex

	plog    log.Logger
	metrics *metrics.Collectors
}

// New creates a session. Nothing is dialed until Connect or the first
// command.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Session{
		cfg:      cfg,
		pinner:   cert.NewPinner(cfg.Credentials),
		commands: make(map[int]*Command),
		plog:     cfg.ProtocolLogger,
		metrics:  cfg.Metrics,
	}, nil
}

// SetListener sets the lifecycle listener.
func (s *Session) SetListener(l Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRegistered reports whether commands are sent immediately.
func (s *Session) IsRegistered() bool {
	return s.State() == StateRegistered
}

// PendingCount returns the number of commands in the correlation table and
// the pending queue.
func (s *Session) PendingCount() (inFlight, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commands), len(s.pending)
}

// URL returns the endpoint the session dials.
func (s *Session) URL() string {
	scheme := "ws"
	if s.cfg.Secure {
		scheme = "wss"
	}
	return scheme + "://" + net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.port())) + s.cfg.Path
}

// Connect starts a connection attempt in the background. It is a no-op
// unless the session is in StateInitial. The outcome is reported to the
// listener.
func (s *Session) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateInitial {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.connID.Store(uuid.New().String())
	s.nextID = 1
	s.registerID = 0
	s.setStateLocked(StateConnecting, "connect")
	s.mu.Unlock()

	go s.run(runCtx, gen)
	return nil
}

// Disconnect closes the connection and fails everything pending with
// ErrConnectionLost. It is idempotent.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateInitial || s.state == StateDisconnecting {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	s.setStateLocked(StateDisconnecting, "requested")
	s.mu.Unlock()

	s.terminate(gen, nil)
	return nil
}

// Send issues a one-shot command. Before registration the command is
// queued; in StateInitial it also starts a connection. If Send returns an
// error, cb is not called.
func (s *Session) Send(ctx context.Context, uri string, payload any, cb ResponseFunc) error {
	_, err := s.submit(ctx, newCommand(uri, payload, false, cb))
	return err
}

// Subscribe issues a subscription. cb receives every update until
// Unsubscribe or until the connection ends.
func (s *Session) Subscribe(ctx context.Context, uri string, payload any, cb ResponseFunc) (*Subscription, error) {
	cmd := newCommand(uri, payload, true, cb)
	if _, err := s.submit(ctx, cmd); err != nil {
		return nil, err
	}
	return &Subscription{s: s, cmd: cmd}, nil
}

// SendPairingKey answers a PIN prompt. It is valid only while registering.
func (s *Session) SendPairingKey(pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRegistering {
		return ErrNotPairing
	}
	s.cfg.Credentials.SetPairingKey(pin)
	cmd := newCommand(URISetPin, wire.PinPayload{PIN: pin}, false, func(_ json.RawMessage, err error) {
		if err != nil {
			s.cfg.Logger.Warn("session: pin rejected", "host", s.cfg.Host, "error", err)
		}
	})
	return s.sendLocked(cmd)
}

func (s *Session) submit(ctx context.Context, cmd *Command) (*Command, error) {
	s.mu.Lock()
	switch s.state {
	case StateRegistered:
		err := s.sendLocked(cmd)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return cmd, nil
	case StateInitial:
		s.pending = append(s.pending, cmd)
		s.mu.Unlock()
		if err := s.Connect(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		return cmd, nil
	default:
		s.pending = append(s.pending, cmd)
		s.mu.Unlock()
		return cmd, nil
	}
}

// sendLocked assigns an id, arms the command and writes it. s.mu is held so
// no other command can be written in between.
func (s *Session) sendLocked(cmd *Command) error {
	if s.conn == nil {
		return ErrConnectionLost
	}

	cmd.id = s.nextID
	s.nextID++
	cmd.sentAt = time.Now()
	s.commands[cmd.id] = cmd

	if s.cfg.CommandTimeout > 0 && !cmd.subscription {
		gen, id := s.gen, cmd.id
		cmd.timer = time.AfterFunc(s.cfg.CommandTimeout, func() { s.expire(gen, id) })
	}

	if err := s.write(s.conn, cmd.request()); err != nil {
		delete(s.commands, cmd.id)
		cmd.stopTimer()
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	return nil
}

func (s *Session) write(conn *websocket.Conn, req wire.Request) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, req); err != nil {
		s.logError(log.LayerTransport, err.Error(), "write "+req.Name())
		return err
	}
	s.logOutbound(req)
	return nil
}

// run dials, registers and then reads until the connection ends.
func (s *Session) run(ctx context.Context, gen uint64) {
	conn, err := s.dial(ctx)
	if err != nil {
		s.pinner.Discard()
		s.terminate(gen, err)
		return
	}
	conn.SetReadLimit(s.cfg.ReadLimit)
	if s.pinner.Commit() {
		s.cfg.Logger.Info("session: pinned device certificate", "host", s.cfg.Host)
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateConnecting {
		s.mu.Unlock()
		conn.CloseNow()
		return
	}
	s.conn = conn
	s.registerID = s.nextID
	s.nextID++
	regID := s.registerID
	s.setStateLocked(StateRegistering, "transport up")
	s.mu.Unlock()

	go s.keepAlive(ctx, conn, s.cfg.KeepAlive, func(err error) { s.terminate(gen, err) })

	if err := s.write(conn, s.registerRequest(regID)); err != nil {
		s.terminate(gen, fmt.Errorf("%w: %w", ErrConnectionLost, err))
		return
	}

	s.readLoop(ctx, conn, gen)
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	s.pinner.Begin()
	opts := &websocket.DialOptions{}
	if s.cfg.Secure {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: s.pinner.ClientTLSConfig(s.cfg.Host),
			},
		}
	}

	s.logState(log.StateEntityConnection, "", "DIALING", s.URL())
	conn, _, err := websocket.Dial(ctx, s.URL(), opts)
	if err != nil {
		if !errors.Is(err, cert.ErrCertificateMismatch) && s.pinner.Mismatched() {
			err = fmt.Errorf("%w: %v", cert.ErrCertificateMismatch, err)
		}
		s.logError(log.LayerTransport, err.Error(), "dial")
		return nil, err
	}
	s.logState(log.StateEntityConnection, "DIALING", "CONNECTED", "")
	return conn, nil
}

func (s *Session) registerRequest(id int) wire.Request {
	payload := wire.RegisterPayload{
		ForcePairing: s.cfg.ForcePairing,
		PairingType:  s.cfg.PairingType,
		ClientKey:    s.cfg.Credentials.ClientKey(),
		Manifest:     s.cfg.Manifest,
	}
	return wire.Request{
		Type:    wire.TypeRegister,
		ID:      wire.MessageID(id),
		Payload: payload,
	}
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.terminate(gen, s.transportError(err))
			return
		}
		s.logFrame(data)

		msg, err := wire.DecodeMessage(data)
		if err != nil {
			s.cfg.Logger.Debug("session: dropping malformed message", "host", s.cfg.Host, "error", err)
			s.logError(log.LayerWire, err.Error(), "decode")
			continue
		}
		s.logInbound(msg)
		s.dispatch(gen, msg)
	}
}

func (s *Session) transportError(err error) error {
	if status := websocket.CloseStatus(err); status != -1 {
		code := int(status)
		s.logControl(log.DirectionIn, log.ControlMsgClose, &code)
		return fmt.Errorf("%w: closed by device (%d)", ErrConnectionLost, code)
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}

// dispatch routes one inbound message.
func (s *Session) dispatch(gen uint64, msg *wire.Message) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if msg.HasID() && int(msg.ID) == s.registerID && s.state == StateRegistering {
		s.mu.Unlock()
		s.handleRegister(gen, msg)
		return
	}

	var cmd *Command
	if msg.HasID() {
		cmd = s.commands[int(msg.ID)]
	}
	if cmd == nil {
		l := s.listener
		s.mu.Unlock()
		if msg.HasID() {
			s.cfg.Logger.Debug("session: message for unknown id", "host", s.cfg.Host, "id", int(msg.ID))
		}
		if l != nil {
			l.OnUnsolicited(msg)
		}
		return
	}

	if msg.Type == wire.TypeError {
		delete(s.commands, cmd.id)
		s.mu.Unlock()

		info := wire.ParseError(msg.Error)
		if info.IsAuthorizationDenied() {
			s.metrics.CommandDone(metrics.OutcomeDenied, time.Since(cmd.sentAt))
			cmd.deliver(nil, fmt.Errorf("%w: %s", ErrAuthorizationDenied, msg.Error))
			s.terminate(gen, fmt.Errorf("%w: %s", ErrAuthorizationDenied, msg.Error))
			return
		}
		s.metrics.CommandDone(metrics.OutcomeProtocolError, time.Since(cmd.sentAt))
		cmd.deliver(nil, &ProtocolError{Code: info.Code, Message: info.Message})
		return
	}

	if !cmd.subscription {
		delete(s.commands, cmd.id)
	}
	s.mu.Unlock()

	if !cmd.subscription {
		s.metrics.CommandDone(metrics.OutcomeOK, time.Since(cmd.sentAt))
	}
	cmd.deliver(msg.Payload, nil)
}

func (s *Session) handleRegister(gen uint64, msg *wire.Message) {
	switch msg.Type {
	case wire.TypeRegistered:
		var reg wire.RegisteredPayload
		if err := msg.DecodePayload(&reg); err == nil && reg.ClientKey != "" {
			s.cfg.Credentials.SetClientKey(reg.ClientKey)
		}
		s.registered(gen)

	case wire.TypeResponse:
		var p wire.PairingPayload
		if err := msg.DecodePayload(&p); err != nil || p.PairingType == "" {
			return
		}
		s.logState(log.StateEntityPairing, "", "PROMPT_"+p.PairingType, "")
		s.mu.Lock()
		l := s.listener
		s.mu.Unlock()
		if l != nil {
			l.OnPairingRequired(p.PairingType)
		}

	case wire.TypeError:
		info := wire.ParseError(msg.Error)
		if info.IsAuthorizationDenied() {
			s.terminate(gen, fmt.Errorf("%w: %s", ErrAuthorizationDenied, msg.Error))
			return
		}
		s.terminate(gen, &ProtocolError{Code: info.Code, Message: info.Message})
	}
}

// registered moves to StateRegistered and flushes the pending queue in
// submission order while holding the lock, so nothing submitted after the
// transition can overtake it.
func (s *Session) registered(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateRegistering {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateRegistered, "registered")

	queued := s.pending
	s.pending = nil
	failed := make(map[*Command]error)
	for _, cmd := range queued {
		if cmd.finished.Load() {
			continue
		}
		if err := s.sendLocked(cmd); err != nil {
			failed[cmd] = err
		}
	}
	l := s.listener
	s.mu.Unlock()

	for cmd, err := range failed {
		cmd.deliver(nil, err)
	}
	if l != nil {
		l.OnRegistered()
	}
}

// terminate ends connection generation gen. A nil cause is a requested
// disconnect. Every command in the table and the queue fails with
// ErrConnectionLost.
func (s *Session) terminate(gen uint64, cause error) {
	s.mu.Lock()
	if s.gen != gen || s.state == StateInitial {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.gen++
	conn := s.conn
	s.conn = nil
	cancel := s.cancel
	s.cancel = nil

	cmds := make([]*Command, 0, len(s.commands)+len(s.pending))
	for _, cmd := range s.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].id < cmds[j].id })
	cmds = append(cmds, s.pending...)
	s.commands = make(map[int]*Command)
	s.pending = nil

	reason := "requested"
	if cause != nil {
		reason = cause.Error()
	}
	s.setStateLocked(StateInitial, reason)
	l := s.listener
	s.mu.Unlock()

	if cancel == nil {
		cancel = func() {}
	}
	switch {
	case conn != nil && cause == nil:
		// The close handshake completes in the background; the reader sees
		// the echo and exits on its stale generation.
		code := int(websocket.StatusNormalClosure)
		s.logControl(log.DirectionOut, log.ControlMsgClose, &code)
		go func() {
			defer cancel()
			conn.Close(websocket.StatusNormalClosure, "")
		}()
	case conn != nil:
		conn.CloseNow()
		cancel()
	default:
		cancel()
	}

	lost := ErrConnectionLost
	if cause != nil && !errors.Is(cause, ErrConnectionLost) {
		lost = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
	} else if cause != nil {
		lost = cause
	}
	for _, cmd := range cmds {
		if !cmd.finished.Load() {
			s.metrics.CommandDone(metrics.OutcomeConnectionLost, 0)
		}
		cmd.deliver(nil, lost)
	}

	if cause != nil {
		s.cfg.Logger.Debug("session: connection ended", "host", s.cfg.Host, "state", prev, "error", cause)
	}
	if l == nil {
		return
	}
	if prev == StateRegistered || (prev == StateDisconnecting && cause == nil) {
		l.OnDisconnected(cause)
		return
	}
	l.OnConnectionFailed(cause)
}

func (s *Session) expire(gen uint64, id int) {
	s.mu.Lock()
	cmd, ok := s.commands[id]
	if s.gen != gen || !ok {
		s.mu.Unlock()
		return
	}
	delete(s.commands, id)
	s.mu.Unlock()

	s.metrics.CommandDone(metrics.OutcomeTimeout, 0)
	cmd.deliver(nil, fmt.Errorf("%w: %s", ErrCommandTimeout, cmd.uri))
}

func (s *Session) unsubscribe(cmd *Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.finished.Load() {
		return nil
	}
	cmd.cancel()

	for i, p := range s.pending {
		if p == cmd {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}

	if s.commands[cmd.id] != cmd {
		return nil
	}
	delete(s.commands, cmd.id)
	if s.conn == nil {
		return nil
	}
	return s.write(s.conn, wire.Request{
		Type: wire.TypeUnsubscribe,
		ID:   wire.MessageID(cmd.id),
		URI:  cmd.uri,
	})
}

func (s *Session) setStateLocked(next State, reason string) {
	prev := s.state
	if prev == next {
		return
	}
	s.state = next

	delta := 0
	switch {
	case next == StateRegistered:
		delta = 1
	case prev == StateRegistered:
		delta = -1
	}
	s.metrics.SessionState(next.String(), delta)
	s.logState(log.StateEntitySession, prev.String(), next.String(), reason)
	s.cfg.Logger.Debug("session: state", "host", s.cfg.Host, "from", prev, "to", next, "reason", reason)
}
