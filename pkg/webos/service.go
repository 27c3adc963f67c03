package webos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/cert"
	"github.com/rendercast/rendercast-go/pkg/connection"
	"github.com/rendercast/rendercast-go/pkg/log"
	"github.com/rendercast/rendercast-go/pkg/metrics"
	"github.com/rendercast/rendercast-go/pkg/record"
	"github.com/rendercast/rendercast-go/pkg/service"
	"github.com/rendercast/rendercast-go/pkg/session"
	"github.com/rendercast/rendercast-go/pkg/wire"
)

// Service identification.
const (
	// ServiceID is the protocol id of the service.
	ServiceID = "webOS TV"

	// SearchTarget is the SSDP search target of the second-screen socket.
	SearchTarget = "urn:lge-com:service:webos-second-screen:1"
)

// ErrCommandFailed is returned when the device answers with returnValue false.
var ErrCommandFailed = errors.New("device reported failure")

// Capabilities lists what every webOS service offers.
var Capabilities = []string{
	capability.LauncherApp,
	capability.LauncherAppParams,
	capability.LauncherAppClose,
	capability.LauncherAppList,
	capability.LauncherBrowser,
	capability.LauncherYouTube,
	capability.MediaPlayerPlayVideo,
	capability.MediaPlayerPlayAudio,
	capability.MediaPlayerDisplayImage,
	capability.MediaPlayerClose,
	capability.MediaControlPlay,
	capability.MediaControlPause,
	capability.MediaControlStop,
	capability.VolumeControlGet,
	capability.VolumeControlSet,
	capability.VolumeControlUpDown,
	capability.VolumeControlMuteGet,
	capability.VolumeControlMuteSet,
	capability.VolumeControlSubscribe,
	capability.PowerControlOff,
	capability.ToastControlShow,
	capability.KeyControlSend,
	capability.TVControlChannelUp,
	capability.TVControlChannelDown,
}

// Options configures services created by New and NewFactory.
type Options struct {
	// Secure selects wss:// with certificate pinning.
	Secure bool

	// Port overrides the default socket port.
	Port int

	// Manifest overrides the default permission manifest.
	Manifest *wire.Manifest

	// CommandTimeout bounds each command. Zero waits for the device or ctx.
	CommandTimeout time.Duration

	KeepAlive session.KeepAliveConfig

	// AutoReconnect re-establishes a lost registered connection.
	AutoReconnect bool
	Reconnect     connection.Config

	// ProbeApps lists installed apps after registration and adds launcher
	// capabilities for the ones found.
	ProbeApps bool

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	ProtocolLogger log.Logger
	Metrics        *metrics.Collectors
}

// DefaultOptions returns secure options with app probing enabled.
func DefaultOptions() Options {
	return Options{
		Secure:    true,
		KeepAlive: session.DefaultKeepAliveConfig(),
		Reconnect: connection.DefaultConfig(),
		ProbeApps: true,
	}
}

// Service is a webOS second-screen service.
type Service struct {
	*service.Base

	opts      Options
	reconnect *connection.Manager

	mu      sync.Mutex
	sess    *session.Session
	probed  bool
	waiters []chan error
	subs    map[*subscription]struct{}
}

var (
	_ service.DeviceService    = (*Service)(nil)
	_ capability.Launcher      = (*Service)(nil)
	_ capability.MediaPlayer   = (*Service)(nil)
	_ capability.MediaControl  = (*Service)(nil)
	_ capability.VolumeControl = (*Service)(nil)
	_ capability.KeyControl    = (*Service)(nil)
	_ capability.PowerControl  = (*Service)(nil)
	_ capability.ToastControl  = (*Service)(nil)
	_ capability.TVControl     = (*Service)(nil)
	_ capability.Closer        = (*Service)(nil)
)

// New creates a service for desc. cfg carries stored credentials and may
// be nil.
func New(desc record.ServiceDescription, cfg *record.ServiceConfig, opts Options) (*Service, error) {
	if desc.IPAddress == "" {
		return nil, fmt.Errorf("%w: no address", service.ErrInvalidConfig)
	}
	if err := opts.KeepAlive.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrInvalidConfig, err)
	}
	if desc.ServiceID == "" {
		desc.ServiceID = ServiceID
	}

	s := &Service{
		Base: service.NewBase(service.BaseConfig{
			Description: desc,
			Config:      cfg,
			Connectable: true,
			Logger:      opts.Logger,
		}),
		opts: opts,
		subs: make(map[*subscription]struct{}),
	}
	s.Bind(s)

	rc := opts.Reconnect
	if rc.Logger == nil {
		rc.Logger = opts.Logger
	}
	rc.Permanent = isPermanent
	s.reconnect = connection.NewManagerWithConfig(s.connectAndWait, rc)
	s.reconnect.SetAutoReconnect(opts.AutoReconnect)
	s.reconnect.OnGiveUp(func(err error) {
		s.Logger().Warn("webos: reconnect gave up", "host", desc.IPAddress, "error", err)
		s.NotifyConnectionFailure(err)
	})

	s.SetCapabilities(Capabilities...)
	for tag, impl := range map[capability.Tag]any{
		capability.TagLauncher:      s,
		capability.TagMediaPlayer:   s,
		capability.TagMediaControl:  s,
		capability.TagVolumeControl: s,
		capability.TagKeyControl:    s,
		capability.TagPowerControl:  s,
		capability.TagToastControl:  s,
		capability.TagTVControl:     s,
	} {
		if err := s.RegisterAPI(tag, impl, capability.PriorityHigh); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewFactory returns a service.Factory creating webOS services with opts.
func NewFactory(opts Options) service.Factory {
	return func(desc record.ServiceDescription, cfg *record.ServiceConfig) (service.DeviceService, error) {
		return New(desc, cfg, opts)
	}
}

// isPermanent reports failures that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, session.ErrAuthorizationDenied) || errors.Is(err, cert.ErrCertificateMismatch)
}

// Connect starts connecting in the background. Pairing prompts and the
// outcome are reported to the listener.
func (s *Service) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.State() != service.StateDisconnected {
		return nil
	}
	s.SetState(service.StateConnecting)

	go func() {
		err := s.reconnect.Connect(context.WithoutCancel(ctx))
		if err != nil && !errors.Is(err, connection.ErrAlreadyConnected) {
			s.Logger().Debug("webos: connect failed", "host", s.Description().IPAddress, "error", err)
		}
	}()
	return nil
}

// Disconnect closes the session. Nothing is retried afterwards.
func (s *Service) Disconnect() error {
	s.reconnect.MarkDisconnected()

	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil || sess.State() == session.StateInitial {
		return s.Base.Disconnect()
	}
	return sess.Disconnect()
}

// Close disconnects, stops the reconnect loop and drops every
// subscription.
func (s *Service) Close() error {
	err := s.Disconnect()
	s.reconnect.Close()

	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[*subscription]struct{})
	s.mu.Unlock()
	for sub := range subs {
		_ = sub.Unsubscribe()
	}
	return err
}

// SetPairingType changes the requested pairing type. It takes effect on the
// next connection.
func (s *Service) SetPairingType(p service.PairingType) {
	s.Base.SetPairingType(p)
	s.mu.Lock()
	if s.sess != nil && s.sess.State() == session.StateInitial {
		s.sess = nil
	}
	s.mu.Unlock()
}

// SendCommand sends a raw command over the session. Subscriptions are
// re-armed after every reconnect until the device answers with an error.
func (s *Service) SendCommand(ctx context.Context, cmd service.Command, cb service.ResponseFunc) error {
	if cmd.Subscription {
		_, err := s.subscribe(ctx, cmd.URI, cmd.Payload, session.ResponseFunc(cb))
		return err
	}
	sess, err := s.session()
	if err != nil {
		return err
	}
	return sess.Send(ctx, cmd.URI, cmd.Payload, session.ResponseFunc(cb))
}

// PendingCount reports the session's in-flight and queued commands. Both are
// zero before the first command.
func (s *Service) PendingCount() (inFlight, queued int) {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		return 0, 0
	}
	return sess.PendingCount()
}

// SendPairingKey answers a PIN prompt.
func (s *Service) SendPairingKey(key string) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	return sess.SendPairingKey(key)
}

// session returns the session, creating it on first use.
func (s *Service) session() (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil {
		return s.sess, nil
	}

	desc := s.Description()
	cfg := session.DefaultConfig(desc.IPAddress)
	cfg.Secure = s.opts.Secure
	cfg.Port = s.opts.Port
	cfg.Credentials = s.Config()
	cfg.PairingType = wirePairingType(s.PairingType())
	cfg.CommandTimeout = s.opts.CommandTimeout
	cfg.KeepAlive = s.opts.KeepAlive
	cfg.ServiceID = desc.ServiceID
	cfg.DeviceID = s.DeviceID()
	cfg.Logger = s.opts.Logger
	cfg.ProtocolLogger = s.opts.ProtocolLogger
	cfg.Metrics = s.opts.Metrics
	if s.opts.Manifest != nil {
		cfg.Manifest = *s.opts.Manifest
	}

	sess, err := session.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrInvalidConfig, err)
	}
	sess.SetListener(&sessionListener{s: s})
	s.sess = sess
	return sess, nil
}

// connectAndWait connects the session and blocks until it is registered or
// the attempt failed. It is the reconnect manager's connect function.
func (s *Service) connectAndWait(ctx context.Context) error {
	sess, err := s.session()
	if err != nil {
		return err
	}

	ch := make(chan error, 1)
	s.mu.Lock()
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()
	defer s.dropWaiter(ch)

	if sess.IsRegistered() {
		return nil
	}
	if err := sess.Connect(ctx); err != nil {
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		_ = sess.Disconnect()
		return ctx.Err()
	}
}

func (s *Service) dropWaiter(ch chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

func (s *Service) wake(err error) {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, ch := range waiters {
		select {
		case ch <- err:
		default:
		}
	}
}

// sessionListener maps session events onto service events.
type sessionListener struct {
	s *Service
}

func (l *sessionListener) OnRegistered() {
	s := l.s
	s.rearm()
	s.wake(nil)
	s.NotifyConnected()

	if s.opts.ProbeApps {
		s.mu.Lock()
		probe := !s.probed
		s.probed = true
		s.mu.Unlock()
		if probe {
			go s.probeApps()
		}
	}
}

func (l *sessionListener) OnPairingRequired(pairingType string) {
	l.s.NotifyPairingRequired(servicePairingType(pairingType))
}

func (l *sessionListener) OnConnectionFailed(err error) {
	s := l.s
	s.wake(err)
	if s.reconnect.State() == connection.StateReconnecting {
		// Retries report only when the manager gives up.
		s.SetState(service.StateConnecting)
		return
	}
	s.NotifyConnectionFailure(err)
}

func (l *sessionListener) OnDisconnected(err error) {
	s := l.s
	if err == nil {
		s.wake(session.ErrConnectionLost)
		s.NotifyDisconnected(nil)
		return
	}
	s.wake(err)
	s.NotifyDisconnected(err)
	s.reconnect.NotifyConnectionLost(err)
}

func (l *sessionListener) OnUnsolicited(msg *wire.Message) {
	l.s.Logger().Debug("webos: unsolicited message", "host", l.s.Description().IPAddress, "type", msg.Type)
}

// probeApps adds launcher capabilities for installed apps.
func (s *Service) probeApps() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	apps, err := s.Apps(ctx)
	if err != nil {
		s.Logger().Debug("webos: app probe failed", "host", s.Description().IPAddress, "error", err)
		return
	}
	var found []string
	for _, app := range apps {
		switch app.ID {
		case AppNetflix:
			found = append(found, capability.LauncherNetflix)
		case AppYouTube:
			found = append(found, capability.LauncherYouTube)
		}
	}
	s.AddCapabilities(found...)
}

// request sends one command and waits for the answer. out may be nil.
func (s *Service) request(ctx context.Context, uri string, payload any, out any) error {
	sess, err := s.session()
	if err != nil {
		return err
	}

	type reply struct {
		payload json.RawMessage
		err     error
	}
	done := make(chan reply, 1)
	err = sess.Send(ctx, uri, payload, func(p json.RawMessage, err error) {
		done <- reply{p, err}
	})
	if err != nil {
		return err
	}

	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		return decodeReply(uri, r.payload, out)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decodeReply(uri string, payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return nil
	}
	var rv struct {
		ReturnValue *bool  `json:"returnValue"`
		ErrorText   string `json:"errorText"`
	}
	if err := json.Unmarshal(payload, &rv); err != nil {
		return fmt.Errorf("%s: %w: %w", uri, wire.ErrInvalidPayload, err)
	}
	if rv.ReturnValue != nil && !*rv.ReturnValue {
		return fmt.Errorf("%s: %w: %s", uri, ErrCommandFailed, rv.ErrorText)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: %w: %w", uri, wire.ErrInvalidPayload, err)
	}
	return nil
}

func wirePairingType(p service.PairingType) string {
	switch p {
	case service.PairingPinCode:
		return wire.PairingTypePIN
	case service.PairingMixed:
		return wire.PairingTypeCombined
	default:
		return wire.PairingTypePrompt
	}
}

func servicePairingType(p string) service.PairingType {
	switch p {
	case wire.PairingTypePIN:
		return service.PairingPinCode
	case wire.PairingTypeCombined:
		return service.PairingMixed
	default:
		return service.PairingFirstScreen
	}
}
