package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/device"
	"github.com/rendercast/rendercast-go/pkg/metrics"
	"github.com/rendercast/rendercast-go/pkg/record"
	"github.com/rendercast/rendercast-go/pkg/service"
	"github.com/rendercast/rendercast-go/pkg/store"
)

// DefaultStoreTimeout bounds one device store call.
const DefaultStoreTimeout = 5 * time.Second

// PairingLevel is how strongly devices are asked to authenticate the
// controller.
type PairingLevel uint8

const (
	// PairingOff leaves the pairing style to the device.
	PairingOff PairingLevel = iota

	// PairingOn asks for an on-screen prompt.
	PairingOn

	// PairingProtected asks for a PIN.
	PairingProtected
)

// String returns the level name.
func (l PairingLevel) String() string {
	switch l {
	case PairingOff:
		return "OFF"
	case PairingOn:
		return "ON"
	case PairingProtected:
		return "PROTECTED"
	default:
		return "UNKNOWN"
	}
}

// PairingType returns the pairing type services are asked to use.
func (l PairingLevel) PairingType() service.PairingType {
	switch l {
	case PairingOn:
		return service.PairingFirstScreen
	case PairingProtected:
		return service.PairingPinCode
	default:
		return service.PairingNone
	}
}

// ParsePairingLevel parses "off", "on" or "protected".
func ParsePairingLevel(s string) (PairingLevel, error) {
	switch s {
	case "off", "OFF", "":
		return PairingOff, nil
	case "on", "ON":
		return PairingOn, nil
	case "protected", "PROTECTED":
		return PairingProtected, nil
	}
	return PairingOff, fmt.Errorf("%w: pairing level %q", ErrInvalidConfig, s)
}

// Listener receives device set changes from the manager. Events run on the
// manager's delivery queue, in order.
type Listener interface {
	// OnDeviceAdded fires when a device is surfaced.
	OnDeviceAdded(m *Manager, d *device.ConnectableDevice)

	// OnDeviceUpdated fires when a surfaced device gains, loses or refreshes
	// a service.
	OnDeviceUpdated(m *Manager, d *device.ConnectableDevice)

	// OnDeviceRemoved fires when a surfaced device disappears or stops
	// matching the capability filters.
	OnDeviceRemoved(m *Manager, d *device.ConnectableDevice)

	OnDiscoveryFailed(m *Manager, err error)
}

// ListenerFuncs adapts functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Added   func(d *device.ConnectableDevice)
	Updated func(d *device.ConnectableDevice)
	Removed func(d *device.ConnectableDevice)
	Failed  func(err error)
}

var _ Listener = ListenerFuncs{}

func (f ListenerFuncs) OnDeviceAdded(_ *Manager, d *device.ConnectableDevice) {
	if f.Added != nil {
		f.Added(d)
	}
}

func (f ListenerFuncs) OnDeviceUpdated(_ *Manager, d *device.ConnectableDevice) {
	if f.Updated != nil {
		f.Updated(d)
	}
}

func (f ListenerFuncs) OnDeviceRemoved(_ *Manager, d *device.ConnectableDevice) {
	if f.Removed != nil {
		f.Removed(d)
	}
}

func (f ListenerFuncs) OnDiscoveryFailed(_ *Manager, err error) {
	if f.Failed != nil {
		f.Failed(err)
	}
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Store persists devices the user connected to. Nil uses a MemoryStore.
	Store store.DeviceStore

	// StoreTimeout bounds one store call. Default: 5 seconds.
	StoreTimeout time.Duration

	// Dispatcher delivers manager and device events. Nil creates one owned
	// by the manager and closed by Close.
	Dispatcher *device.Dispatcher

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	Metrics *metrics.Collectors
}

type deviceService struct {
	provider Provider
	filter   Filter
	factory  service.Factory
}

type managerListener struct {
	l Listener
}

// Manager merges provider output into one device registry.
type Manager struct {
	store        store.DeviceStore
	storeTimeout time.Duration
	dispatcher   *device.Dispatcher
	ownsQueue    bool
	logger       *slog.Logger
	metrics      *metrics.Collectors
	sink         *providerSink

	mu           sync.Mutex
	running      bool
	runCtx       context.Context
	providers    []Provider
	services     map[string]deviceService // keyed by service id
	capFilters   []capability.Filter
	pairingLevel PairingLevel
	reg          *registry

	listenerMu sync.Mutex
	listeners  []*managerListener
}

// NewManager creates a manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.StoreTimeout < 0 {
		return nil, fmt.Errorf("%w: negative store timeout", ErrInvalidConfig)
	}
	m := &Manager{
		store:        cfg.Store,
		storeTimeout: cfg.StoreTimeout,
		dispatcher:   cfg.Dispatcher,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		services:     make(map[string]deviceService),
		reg:          newRegistry(),
	}
	if m.store == nil {
		m.store = store.NewMemoryStore()
	}
	if m.storeTimeout == 0 {
		m.storeTimeout = DefaultStoreTimeout
	}
	if m.dispatcher == nil {
		m.dispatcher = device.NewDispatcher()
		m.ownsQueue = true
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	m.sink = &providerSink{m: m}
	return m, nil
}

// RegisterProvider adds a provider. A provider added while the manager
// runs is started immediately.
func (m *Manager) RegisterProvider(p Provider) {
	m.mu.Lock()
	if slices.Contains(m.providers, p) {
		m.mu.Unlock()
		return
	}
	m.providers = append(m.providers, p)
	running, ctx := m.running, m.runCtx
	m.mu.Unlock()

	p.AddListener(m.sink)
	if running {
		if err := p.Start(ctx); err != nil {
			m.logger.Warn("discovery: provider start failed", "provider", p.Name(), "error", err)
		}
	}
}

// RegisterDeviceService routes records matching f through p and creates
// their services with factory. f.ServiceID names the protocol.
func (m *Manager) RegisterDeviceService(p Provider, f Filter, factory service.Factory) {
	m.RegisterProvider(p)

	m.mu.Lock()
	if old, ok := m.services[f.ServiceID]; ok && old.provider != p {
		old.provider.RemoveFilter(old.filter)
	}
	m.services[f.ServiceID] = deviceService{provider: p, filter: f, factory: factory}
	m.mu.Unlock()

	p.AddFilter(f)
}

// UnregisterDeviceService removes a protocol. Its provider is stopped and
// dropped when it has no filters left.
func (m *Manager) UnregisterDeviceService(serviceID string) {
	m.mu.Lock()
	ds, ok := m.services[serviceID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.services, serviceID)
	ds.provider.RemoveFilter(ds.filter)
	drop := ds.provider.IsEmpty()
	if drop {
		m.providers = slices.DeleteFunc(m.providers, func(p Provider) bool { return p == ds.provider })
	}
	m.mu.Unlock()

	if drop {
		ds.provider.RemoveListener(m.sink)
		if err := ds.provider.Stop(); err != nil {
			m.logger.Debug("discovery: provider stop failed", "provider", ds.provider.Name(), "error", err)
		}
	}
}

// SetCapabilityFilters scopes the surfaced devices. A device is surfaced
// when it matches any filter. No filters surface every device.
func (m *Manager) SetCapabilityFilters(filters ...capability.Filter) {
	m.mu.Lock()
	m.capFilters = slices.Clone(filters)
	for _, e := range m.reg.entries() {
		m.resurfaceLocked(e)
	}
	m.updateGaugesLocked()
	m.mu.Unlock()
}

// SetPairingLevel sets the pairing preference of current and future
// services.
func (m *Manager) SetPairingLevel(level PairingLevel) {
	m.mu.Lock()
	m.pairingLevel = level
	for _, e := range m.reg.entries() {
		for _, s := range e.dev.Services() {
			s.SetPairingType(level.PairingType())
		}
	}
	m.mu.Unlock()
}

// PairingLevel returns the pairing preference.
func (m *Manager) PairingLevel() PairingLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairingLevel
}

// Start starts every provider. All providers are started even when one
// fails; the first error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.runCtx = context.WithoutCancel(ctx)
	providers := slices.Clone(m.providers)
	m.mu.Unlock()

	var g errgroup.Group
	for _, p := range providers {
		g.Go(func() error {
			if err := p.Start(ctx); err != nil {
				return fmt.Errorf("start %s: %w", p.Name(), err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		m.logger.Warn("discovery: provider failed to start", "error", err)
	}
	m.logger.Debug("discovery: started", "providers", len(providers))
	return err
}

// Stop stops every provider. Tracked devices are kept.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	providers := slices.Clone(m.providers)
	m.mu.Unlock()

	var errs []error
	for _, p := range providers {
		if err := p.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the manager and releases the delivery queue it owns. The
// store is left open.
func (m *Manager) Close() error {
	err := m.Stop()

	m.mu.Lock()
	entries := m.reg.entries()
	m.mu.Unlock()
	for _, e := range entries {
		e.handle.Release()
		e.dev.Close()
	}

	if m.ownsQueue {
		m.dispatcher.Close()
	}
	return err
}

// Rescan asks every provider to search now.
func (m *Manager) Rescan() {
	m.mu.Lock()
	providers := slices.Clone(m.providers)
	m.mu.Unlock()
	for _, p := range providers {
		p.Rescan()
	}
}

// AddListener registers l. Release the handle to unregister.
func (m *Manager) AddListener(l Listener) device.ListenerHandle {
	ml := &managerListener{l: l}
	m.listenerMu.Lock()
	m.listeners = append(m.listeners, ml)
	m.listenerMu.Unlock()

	return device.NewListenerHandle(func() {
		m.listenerMu.Lock()
		m.listeners = slices.DeleteFunc(m.listeners, func(x *managerListener) bool { return x == ml })
		m.listenerMu.Unlock()
	})
}

// AvailableDevices returns the surfaced devices ordered by id.
func (m *Manager) AvailableDevices() []*device.ConnectableDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*device.ConnectableDevice
	for _, e := range m.reg.entries() {
		if e.surfaced {
			out = append(out, e.dev)
		}
	}
	return out
}

// CompatibleDevices returns every tracked device ordered by id, including
// those hidden by the capability filters.
func (m *Manager) CompatibleDevices() []*device.ConnectableDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.reg.entries()
	out := make([]*device.ConnectableDevice, len(entries))
	for i, e := range entries {
		out[i] = e.dev
	}
	return out
}

// Device returns the tracked device with the given id.
func (m *Manager) Device(id string) (*device.ConnectableDevice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.reg.byKey {
		if e.dev.ID() == id {
			return e.dev, true
		}
	}
	return nil, false
}

// DeviceStore returns the store of connected devices.
func (m *Manager) DeviceStore() store.DeviceStore {
	return m.store
}

// Dispatcher returns the queue manager and device events run on.
func (m *Manager) Dispatcher() *device.Dispatcher {
	return m.dispatcher
}

// serviceSeen handles an added or updated record.
func (m *Manager) serviceSeen(p Provider, desc record.ServiceDescription, kind string) {
	m.metrics.ProviderEvent(p.Name(), kind)

	m.mu.Lock()
	defer m.mu.Unlock()

	ds, ok := m.services[desc.ServiceID]
	if !ok {
		m.logger.Debug("discovery: record for unregistered service ignored", "serviceId", desc.ServiceID, "uuid", desc.UUID)
		return
	}

	e := m.reg.lookup(desc)
	created := false
	var stored *record.DeviceRecord
	if e == nil {
		stored = m.storedRecord(desc)
		opts := []device.Option{device.WithDispatcher(m.dispatcher), device.WithLogger(m.logger)}
		if stored != nil {
			opts = append(opts, device.WithID(stored.ID))
		}
		dev := device.New(desc, opts...)
		e = m.reg.add(deviceKey(desc), dev)
		e.handle = dev.AddListener(&deviceWatcher{m: m})
		created = true
	} else {
		e.dev.Seen(desc)
	}

	if s := e.dev.ServiceByName(desc.ServiceID); s != nil && s.Description().UUID == desc.UUID {
		s.UpdateDescription(desc)
	} else {
		if stored == nil && !created {
			stored = m.storedRecord(desc)
		}
		svc, err := m.newService(ds, desc, stored, e.dev.ServiceByName(desc.ServiceID))
		if err != nil {
			m.logger.Warn("discovery: service creation failed", "serviceId", desc.ServiceID, "address", desc.IPAddress, "error", err)
			if created {
				m.reg.remove(e)
				e.handle.Release()
				e.dev.Close()
			}
			return
		}
		e.dev.AddService(svc)
	}
	m.reg.bind(desc.UUID, e)

	wasSurfaced := e.surfaced
	m.resurfaceLocked(e)
	if wasSurfaced && e.surfaced {
		m.emit(func(l Listener) { l.OnDeviceUpdated(m, e.dev) })
	}
	m.updateGaugesLocked()
}

// newService creates a service for desc carrying stored credentials and
// those of the service it replaces.
func (m *Manager) newService(ds deviceService, desc record.ServiceDescription, stored *record.DeviceRecord, replaced service.DeviceService) (service.DeviceService, error) {
	cfg := record.NewServiceConfig(desc.UUID)
	if replaced != nil {
		cfg.Merge(replaced.Config())
	}
	if stored != nil {
		if se, ok := stored.Service(desc.UUID); ok {
			cfg.Merge(se.Config.Config())
		} else if se, ok := stored.ServiceByID(desc.ServiceID); ok {
			cfg.Merge(se.Config.Config())
		}
	}
	s, err := ds.factory(desc, cfg)
	if err != nil {
		return nil, err
	}
	s.SetPairingType(m.pairingLevel.PairingType())
	return s, nil
}

// storedRecord looks a record up by service UUID, then by address.
func (m *Manager) storedRecord(desc record.ServiceDescription) *record.DeviceRecord {
	ctx, cancel := context.WithTimeout(context.Background(), m.storeTimeout)
	defer cancel()

	rec, err := m.store.FindByServiceUUID(ctx, desc.UUID)
	if errors.Is(err, store.ErrNotFound) && desc.IPAddress != "" {
		rec, err = m.store.FindByAddress(ctx, desc.IPAddress)
	}
	switch {
	case err == nil:
		return &rec
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		m.logger.Warn("discovery: device store lookup failed", "uuid", desc.UUID, "error", err)
		return nil
	}
}

// serviceRemoved detaches the service of a removed record.
func (m *Manager) serviceRemoved(p Provider, desc record.ServiceDescription) {
	m.metrics.ProviderEvent(p.Name(), "removed")

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.reg.lookup(desc)
	if e == nil {
		return
	}
	s := e.dev.ServiceByName(desc.ServiceID)
	if s == nil || s.Description().UUID != desc.UUID {
		return
	}
	e.dev.RemoveService(desc.ServiceID)
	m.reg.unbind(desc.UUID)

	if len(e.dev.Services()) == 0 {
		m.reg.remove(e)
		e.handle.Release()
		if e.surfaced {
			e.surfaced = false
			dev := e.dev
			m.emit(func(l Listener) { l.OnDeviceRemoved(m, dev) })
		}
		e.dev.Close()
		m.logger.Debug("discovery: device removed", "id", e.dev.ID())
	} else {
		wasSurfaced := e.surfaced
		m.resurfaceLocked(e)
		if wasSurfaced && e.surfaced {
			m.emit(func(l Listener) { l.OnDeviceUpdated(m, e.dev) })
		}
	}
	m.updateGaugesLocked()
}

// resurfaceLocked applies the capability filters to e and emits an add or
// remove when its visibility changes.
func (m *Manager) resurfaceLocked(e *entry) {
	visible := m.matchesLocked(e.dev)
	if visible == e.surfaced {
		return
	}
	e.surfaced = visible
	dev := e.dev
	if visible {
		m.logger.Debug("discovery: device surfaced", "id", dev.ID(), "name", dev.FriendlyName())
		m.emit(func(l Listener) { l.OnDeviceAdded(m, dev) })
	} else {
		m.emit(func(l Listener) { l.OnDeviceRemoved(m, dev) })
	}
}

func (m *Manager) matchesLocked(d *device.ConnectableDevice) bool {
	if len(m.capFilters) == 0 {
		return true
	}
	for _, f := range m.capFilters {
		if f.Matches(d.HasCapability) {
			return true
		}
	}
	return false
}

func (m *Manager) updateGaugesLocked() {
	m.metrics.SetDevices(m.reg.counts())
}

// emit queues fn for every listener registered now.
func (m *Manager) emit(fn func(Listener)) {
	m.listenerMu.Lock()
	listeners := slices.Clone(m.listeners)
	m.listenerMu.Unlock()
	if len(listeners) == 0 {
		return
	}
	m.dispatcher.Post(func() {
		for _, ml := range listeners {
			fn(ml.l)
		}
	})
}

// capabilitiesChanged re-applies the filters after a device capability
// change.
func (m *Manager) capabilitiesChanged(d *device.ConnectableDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.reg.find(d); e != nil {
		m.resurfaceLocked(e)
		m.updateGaugesLocked()
	}
}

// saveDevice persists a device the user connected to.
func (m *Manager) saveDevice(d *device.ConnectableDevice) {
	ctx, cancel := context.WithTimeout(context.Background(), m.storeTimeout)
	defer cancel()
	if err := m.store.Put(ctx, d.Record()); err != nil {
		m.logger.Warn("discovery: saving device failed", "id", d.ID(), "error", err)
		return
	}
	m.logger.Debug("discovery: device saved", "id", d.ID(), "name", d.FriendlyName())
}

// deviceWatcher follows one tracked device.
type deviceWatcher struct {
	m *Manager
}

func (w *deviceWatcher) OnDeviceReady(d *device.ConnectableDevice) {
	w.m.saveDevice(d)
}

func (w *deviceWatcher) OnDeviceDisconnected(*device.ConnectableDevice, error) {}

func (w *deviceWatcher) OnCapabilityUpdated(d *device.ConnectableDevice, _, _ []string) {
	w.m.capabilitiesChanged(d)
}

func (w *deviceWatcher) OnPairingRequired(*device.ConnectableDevice, service.DeviceService, service.PairingType) {
}

func (w *deviceWatcher) OnConnectionFailed(d *device.ConnectableDevice, err error) {
	w.m.logger.Debug("discovery: device connection failed", "id", d.ID(), "error", err)
}

// providerSink receives provider events for the manager.
type providerSink struct {
	m *Manager
}

func (s *providerSink) OnServiceAdded(p Provider, desc record.ServiceDescription) {
	s.m.serviceSeen(p, desc, "added")
}

func (s *providerSink) OnServiceUpdated(p Provider, desc record.ServiceDescription) {
	s.m.serviceSeen(p, desc, "updated")
}

func (s *providerSink) OnServiceRemoved(p Provider, desc record.ServiceDescription) {
	s.m.serviceRemoved(p, desc)
}

func (s *providerSink) OnDiscoveryFailed(p Provider, err error) {
	s.m.metrics.ProviderError(p.Name())
	s.m.logger.Warn("discovery: provider failed", "provider", p.Name(), "error", err)
	s.m.emit(func(l Listener) { l.OnDiscoveryFailed(s.m, err) })
}
