package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/record"
)

// BaseConfig configures a Base.
type BaseConfig struct {
	// Description is the discovered endpoint.
	Description record.ServiceDescription

	// Config carries stored credentials. A fresh config is created when nil.
	Config *record.ServiceConfig

	// Connectable marks services that keep a session open. Services that
	// are not connectable report IsConnected() == true.
	Connectable bool

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Base holds the state shared by all device services: description, config,
// capability set, typed API registry, connection state and the listener.
// Concrete services embed *Base and call Bind with themselves so events
// carry the outer service.
type Base struct {
	mu sync.RWMutex

	self        DeviceService
	desc        record.ServiceDescription
	config      *record.ServiceConfig
	listener    Listener
	state       ConnectionState
	pairingType PairingType
	deviceID    string
	connectable bool

	caps   *capability.Set
	apis   *capability.Registry
	logger *slog.Logger
}

// NewBase creates a base for a concrete service.
func NewBase(cfg BaseConfig) *Base {
	config := cfg.Config
	if config == nil {
		config = record.NewServiceConfig(cfg.Description.UUID)
	}
	return &Base{
		desc:        cfg.Description.Clone(),
		config:      config,
		connectable: cfg.Connectable,
		caps:        capability.NewSet(),
		apis:        capability.NewRegistry(),
		logger:      loggerOrDiscard(cfg.Logger),
	}
}

// Bind sets the service reported in listener events. Concrete services call
// it once from their constructor.
func (b *Base) Bind(self DeviceService) {
	b.mu.Lock()
	b.self = self
	b.mu.Unlock()
}

// Logger returns the service logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Connect marks a non-connectable service connected. Connectable services
// override it.
func (b *Base) Connect(context.Context) error {
	if b.connectable {
		return capability.ErrNotSupported
	}
	b.NotifyConnected()
	return nil
}

// Disconnect marks the service disconnected.
func (b *Base) Disconnect() error {
	b.mu.Lock()
	was := b.state
	b.state = StateDisconnected
	b.mu.Unlock()
	b.config.SetConnected(false)

	if was != StateDisconnected {
		b.emitDisconnect(nil)
	}
	return nil
}

// IsConnected implements DeviceService.
func (b *Base) IsConnected() bool {
	if !b.connectable {
		return true
	}
	return b.State() == StateConnected
}

// IsConnectable implements DeviceService.
func (b *Base) IsConnectable() bool {
	return b.connectable
}

// State returns the connection state.
func (b *Base) State() ConnectionState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SetState changes the connection state without notifying the listener.
func (b *Base) SetState(s ConnectionState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// SendCommand implements DeviceService. Services without a command channel
// return capability.ErrNotSupported.
func (b *Base) SendCommand(context.Context, Command, ResponseFunc) error {
	return capability.ErrNotSupported
}

// SendPairingKey implements DeviceService.
func (b *Base) SendPairingKey(string) error {
	return capability.ErrNotSupported
}

// Capabilities implements DeviceService.
func (b *Base) Capabilities() []string {
	return b.caps.List()
}

// HasCapability implements DeviceService.
func (b *Base) HasCapability(name string) bool {
	return b.caps.Has(name)
}

// HasCapabilities implements DeviceService.
func (b *Base) HasCapabilities(names ...string) bool {
	return b.caps.HasAll(names...)
}

// HasAnyCapability implements DeviceService.
func (b *Base) HasAnyCapability(names ...string) bool {
	return b.caps.HasAny(names...)
}

// AddCapabilities adds capabilities and reports the ones that were new.
func (b *Base) AddCapabilities(names ...string) {
	if added := b.caps.Add(names...); len(added) > 0 {
		b.emitCapabilities(added, nil)
	}
}

// RemoveCapabilities removes capabilities and reports the ones that were present.
func (b *Base) RemoveCapabilities(names ...string) {
	if removed := b.caps.Remove(names...); len(removed) > 0 {
		b.emitCapabilities(nil, removed)
	}
}

// SetCapabilities replaces the set and reports the difference as a single
// delta.
func (b *Base) SetCapabilities(names ...string) {
	added, removed := capability.Diff(b.caps.List(), dedupe(names))
	b.caps.Remove(removed...)
	b.caps.Add(added...)
	if len(added) > 0 || len(removed) > 0 {
		b.emitCapabilities(added, removed)
	}
}

// RegisterAPI binds impl as the implementation of tag.
func (b *Base) RegisterAPI(tag capability.Tag, impl any, priority capability.Priority) error {
	if err := b.apis.Register(tag, impl, priority); err != nil {
		return fmt.Errorf("register %s: %w", tag, err)
	}
	return nil
}

// PriorityLevel implements DeviceService.
func (b *Base) PriorityLevel(tag capability.Tag) capability.Priority {
	return b.apis.Priority(tag)
}

// API implements DeviceService.
func (b *Base) API(tag capability.Tag) (any, bool) {
	return b.apis.Lookup(tag)
}

// ServiceID implements DeviceService.
func (b *Base) ServiceID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.desc.ServiceID
}

// Description implements DeviceService.
func (b *Base) Description() record.ServiceDescription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.desc.Clone()
}

// UpdateDescription replaces the description after a re-announcement.
func (b *Base) UpdateDescription(desc record.ServiceDescription) {
	b.mu.Lock()
	b.desc = desc.Clone()
	b.mu.Unlock()
	if !desc.LastDetection.IsZero() {
		b.config.SetLastDetection(desc.LastDetection)
	}
}

// Config implements DeviceService.
func (b *Base) Config() *record.ServiceConfig {
	return b.config
}

// SetListener implements DeviceService.
func (b *Base) SetListener(l Listener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

// PairingType returns the requested pairing type.
func (b *Base) PairingType() PairingType {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pairingType
}

// SetPairingType implements DeviceService.
func (b *Base) SetPairingType(p PairingType) {
	b.mu.Lock()
	b.pairingType = p
	b.mu.Unlock()
}

// DeviceID implements DeviceService.
func (b *Base) DeviceID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.deviceID
}

// SetDeviceID implements DeviceService.
func (b *Base) SetDeviceID(id string) {
	b.mu.Lock()
	b.deviceID = id
	b.mu.Unlock()
}

// NotifyConnected moves to StateConnected and reports success.
func (b *Base) NotifyConnected() {
	b.mu.Lock()
	b.state = StateConnected
	self, l := b.self, b.listener
	b.mu.Unlock()
	b.config.SetConnected(true)

	b.logger.Debug("service connected", "serviceId", b.ServiceID())
	if l != nil && self != nil {
		l.OnConnectionSuccess(self)
	}
}

// NotifyConnectionFailure moves to StateDisconnected and reports err.
func (b *Base) NotifyConnectionFailure(err error) {
	b.mu.Lock()
	b.state = StateDisconnected
	self, l := b.self, b.listener
	b.mu.Unlock()
	b.config.SetConnected(false)

	b.logger.Debug("service connection failed", "serviceId", b.ServiceID(), "error", err)
	if l != nil && self != nil {
		l.OnConnectionFailure(self, err)
	}
}

// NotifyDisconnected moves to StateDisconnected and reports the cause
// (nil for a requested disconnect).
func (b *Base) NotifyDisconnected(err error) {
	b.SetState(StateDisconnected)
	b.config.SetConnected(false)
	b.emitDisconnect(err)
}

// NotifyPairingRequired reports that the user must approve the pairing.
func (b *Base) NotifyPairingRequired(p PairingType) {
	b.mu.RLock()
	self, l := b.self, b.listener
	b.mu.RUnlock()

	b.logger.Debug("service pairing required", "serviceId", b.ServiceID(), "pairingType", p)
	if l != nil && self != nil {
		l.OnPairingRequired(self, p)
	}
}

func (b *Base) emitDisconnect(err error) {
	b.mu.RLock()
	self, l := b.self, b.listener
	b.mu.RUnlock()

	b.logger.Debug("service disconnected", "serviceId", b.ServiceID(), "error", err)
	if l != nil && self != nil {
		l.OnDisconnect(self, err)
	}
}

func (b *Base) emitCapabilities(added, removed []string) {
	b.mu.RLock()
	self, l := b.self, b.listener
	b.mu.RUnlock()

	if l != nil && self != nil {
		l.OnCapabilitiesUpdated(self, added, removed)
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
