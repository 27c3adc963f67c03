package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/record"
	"github.com/rendercast/rendercast-go/pkg/service"
)

// ErrNoServices is returned by Connect on a device without services.
var ErrNoServices = errors.New("device has no services")

// Option configures a ConnectableDevice.
type Option func(*ConnectableDevice)

// WithID sets the device id, typically from a stored record.
func WithID(id string) Option {
	return func(d *ConnectableDevice) {
		if id != "" {
			d.id = id
		}
	}
}

// WithDispatcher delivers events on a shared dispatcher. The device does
// not close it.
func WithDispatcher(dispatcher *Dispatcher) Option {
	return func(d *ConnectableDevice) {
		d.dispatcher = dispatcher
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *ConnectableDevice) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the time source for LastSeen and LastConnected.
func WithClock(now func() time.Time) Option {
	return func(d *ConnectableDevice) {
		if now != nil {
			d.now = now
		}
	}
}

// ConnectableDevice aggregates the services of one physical device.
//
// Its capability set is the union of the services' sets. Typed accessors
// resolve to the service with the highest priority for the interface; ties
// go to the service added first.
type ConnectableDevice struct {
	id         string
	logger     *slog.Logger
	now        func() time.Time
	dispatcher *Dispatcher
	ownsQueue  bool

	mu            sync.RWMutex
	desc          record.ServiceDescription
	lastSeen      time.Time
	lastConnected time.Time
	services      []service.DeviceService
	caps          []string
	ready         bool
	connecting    bool
	closed        bool

	listenerMu sync.Mutex
	listeners  []listenerEntry
	nextID     uint64
}

type listenerEntry struct {
	id uint64
	l  Listener
}

// New creates a device from the first description seen for it.
func New(desc record.ServiceDescription, opts ...Option) *ConnectableDevice {
	d := &ConnectableDevice{
		id:     desc.UUID,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		desc:   desc.Clone(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.id == "" {
		d.id = uuid.New().String()
	}
	if d.dispatcher == nil {
		d.dispatcher = NewDispatcher()
		d.ownsQueue = true
	}
	d.lastSeen = desc.LastDetection
	if d.lastSeen.IsZero() {
		d.lastSeen = d.now()
	}
	return d
}

// ID returns the device id.
func (d *ConnectableDevice) ID() string { return d.id }

// FriendlyName returns the name the device advertises.
func (d *ConnectableDevice) FriendlyName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.desc.FriendlyName
}

// IPAddress returns the address the device was last seen at.
func (d *ConnectableDevice) IPAddress() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.desc.IPAddress
}

// ModelName returns the advertised model name.
func (d *ConnectableDevice) ModelName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.desc.ModelName
}

// ModelNumber returns the advertised model number.
func (d *ConnectableDevice) ModelNumber() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.desc.ModelNumber
}

// LastSeen returns when any provider last reported the device.
func (d *ConnectableDevice) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

// LastConnected returns when a service last became ready, zero if never.
func (d *ConnectableDevice) LastConnected() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastConnected
}

// Seen refreshes the identity fields from a newer description.
func (d *ConnectableDevice) Seen(desc record.ServiceDescription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.FriendlyName != "" {
		d.desc.FriendlyName = desc.FriendlyName
	}
	if desc.ModelName != "" {
		d.desc.ModelName = desc.ModelName
	}
	if desc.ModelNumber != "" {
		d.desc.ModelNumber = desc.ModelNumber
	}
	if desc.IPAddress != "" {
		d.desc.IPAddress = desc.IPAddress
	}
	seen := desc.LastDetection
	if seen.IsZero() {
		seen = d.now()
	}
	if seen.After(d.lastSeen) {
		d.lastSeen = seen
	}
}

// AddService attaches s. A service with the same ServiceID is replaced and
// closed. The capability delta is delivered as one event.
func (d *ConnectableDevice) AddService(s service.DeviceService) {
	d.mu.Lock()
	var old service.DeviceService
	if i := d.indexLocked(s.ServiceID()); i >= 0 {
		old = d.services[i]
		d.services[i] = s
	} else {
		d.services = append(d.services, s)
	}
	added, removed := d.recomputeLocked()
	connect := d.connecting && !s.IsConnected()
	if !s.IsConnected() {
		d.ready = false
	}
	d.mu.Unlock()

	s.SetDeviceID(d.id)
	s.SetListener(&serviceListener{d: d, s: s})
	if old != nil && old != s {
		old.SetListener(nil)
		closeService(old)
	}

	d.logger.Debug("device: service added", "device", d.id, "serviceId", s.ServiceID())
	d.postCapabilities(added, removed)

	if connect {
		if err := s.Connect(context.Background()); err != nil {
			d.post(func(l Listener) { l.OnConnectionFailed(d, err) })
		}
	}
}

// RemoveService detaches and closes the service with serviceID.
func (d *ConnectableDevice) RemoveService(serviceID string) {
	d.mu.Lock()
	i := d.indexLocked(serviceID)
	if i < 0 {
		d.mu.Unlock()
		return
	}
	old := d.services[i]
	d.services = slices.Delete(d.services, i, i+1)
	added, removed := d.recomputeLocked()
	becameReady := d.checkReadyLocked()
	d.mu.Unlock()

	old.SetListener(nil)
	closeService(old)

	d.logger.Debug("device: service removed", "device", d.id, "serviceId", serviceID)
	d.postCapabilities(added, removed)
	if becameReady {
		d.post(func(l Listener) { l.OnDeviceReady(d) })
	}
}

// ServiceByName returns the service with the given protocol id, or nil.
func (d *ConnectableDevice) ServiceByName(serviceID string) service.DeviceService {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.indexLocked(serviceID); i >= 0 {
		return d.services[i]
	}
	return nil
}

// Services returns the attached services in the order they were added.
func (d *ConnectableDevice) Services() []service.DeviceService {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.services)
}

// Resolve returns the service implementing tag with the highest priority.
func (d *ConnectableDevice) Resolve(tag capability.Tag) (service.DeviceService, error) {
	if !tag.Valid() {
		return nil, capability.ErrNotSupported
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var best service.DeviceService
	bestPrio := capability.PriorityNotSupported
	for _, s := range d.services {
		p := s.PriorityLevel(tag)
		if p <= bestPrio {
			continue
		}
		if _, ok := s.API(tag); ok {
			best, bestPrio = s, p
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", capability.ErrNotSupported, tag)
	}
	return best, nil
}

func resolveAs[T any](d *ConnectableDevice, tag capability.Tag) (T, error) {
	var zero T
	s, err := d.Resolve(tag)
	if err != nil {
		return zero, err
	}
	api, _ := s.API(tag)
	v, ok := api.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s", capability.ErrNotSupported, tag)
	}
	return v, nil
}

// Launcher returns the highest-priority Launcher implementation.
func (d *ConnectableDevice) Launcher() (capability.Launcher, error) {
	return resolveAs[capability.Launcher](d, capability.TagLauncher)
}

// MediaPlayer returns the highest-priority MediaPlayer implementation.
func (d *ConnectableDevice) MediaPlayer() (capability.MediaPlayer, error) {
	return resolveAs[capability.MediaPlayer](d, capability.TagMediaPlayer)
}

// MediaControl returns the highest-priority MediaControl implementation.
func (d *ConnectableDevice) MediaControl() (capability.MediaControl, error) {
	return resolveAs[capability.MediaControl](d, capability.TagMediaControl)
}

// VolumeControl returns the highest-priority VolumeControl implementation.
func (d *ConnectableDevice) VolumeControl() (capability.VolumeControl, error) {
	return resolveAs[capability.VolumeControl](d, capability.TagVolumeControl)
}

// KeyControl returns the highest-priority KeyControl implementation.
func (d *ConnectableDevice) KeyControl() (capability.KeyControl, error) {
	return resolveAs[capability.KeyControl](d, capability.TagKeyControl)
}

// PowerControl returns the highest-priority PowerControl implementation.
func (d *ConnectableDevice) PowerControl() (capability.PowerControl, error) {
	return resolveAs[capability.PowerControl](d, capability.TagPowerControl)
}

// ToastControl returns the highest-priority ToastControl implementation.
func (d *ConnectableDevice) ToastControl() (capability.ToastControl, error) {
	return resolveAs[capability.ToastControl](d, capability.TagToastControl)
}

// TVControl returns the highest-priority TVControl implementation.
func (d *ConnectableDevice) TVControl() (capability.TVControl, error) {
	return resolveAs[capability.TVControl](d, capability.TagTVControl)
}

// Connect connects every service that is not connected yet. Outcomes are
// reported to listeners; OnDeviceReady fires once all services are up.
func (d *ConnectableDevice) Connect(ctx context.Context) error {
	d.mu.Lock()
	if len(d.services) == 0 {
		d.mu.Unlock()
		return ErrNoServices
	}
	d.connecting = true
	services := slices.Clone(d.services)
	becameReady := d.checkReadyLocked()
	d.mu.Unlock()

	if becameReady {
		d.post(func(l Listener) { l.OnDeviceReady(d) })
		return nil
	}

	var errs []error
	for _, s := range services {
		if s.IsConnected() {
			continue
		}
		if err := s.Connect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.ServiceID(), err))
		}
	}
	return errors.Join(errs...)
}

// Disconnect disconnects every service.
func (d *ConnectableDevice) Disconnect() {
	d.mu.Lock()
	d.connecting = false
	wasReady := d.ready
	d.ready = false
	services := slices.Clone(d.services)
	d.mu.Unlock()

	for _, s := range services {
		if err := s.Disconnect(); err != nil {
			d.logger.Debug("device: disconnect failed", "device", d.id, "serviceId", s.ServiceID(), "error", err)
		}
	}
	if wasReady {
		d.post(func(l Listener) { l.OnDeviceDisconnected(d, nil) })
	}
}

// IsReady reports whether every attached service is connected.
func (d *ConnectableDevice) IsReady() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

// Capabilities returns the sorted union of the services' capabilities.
func (d *ConnectableDevice) Capabilities() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.caps)
}

// HasCapability reports whether any service provides name. Wildcards are
// accepted.
func (d *ConnectableDevice) HasCapability(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.services {
		if s.HasCapability(name) {
			return true
		}
	}
	return false
}

// HasCapabilities reports whether every name is provided by some service.
func (d *ConnectableDevice) HasCapabilities(names ...string) bool {
	for _, n := range names {
		if !d.HasCapability(n) {
			return false
		}
	}
	return true
}

// HasAnyCapability reports whether at least one name is provided.
func (d *ConnectableDevice) HasAnyCapability(names ...string) bool {
	for _, n := range names {
		if d.HasCapability(n) {
			return true
		}
	}
	return false
}

// AddListener registers l. Release the handle to remove it.
func (d *ConnectableDevice) AddListener(l Listener) ListenerHandle {
	d.listenerMu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listenerEntry{id: id, l: l})
	d.listenerMu.Unlock()

	return NewListenerHandle(func() {
		d.listenerMu.Lock()
		defer d.listenerMu.Unlock()
		d.listeners = slices.DeleteFunc(d.listeners, func(e listenerEntry) bool { return e.id == id })
	})
}

// Close stops event delivery. Services are left as they are.
func (d *ConnectableDevice) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	if d.ownsQueue {
		d.dispatcher.Close()
	}
}

// Record returns the persisted form of the device.
func (d *ConnectableDevice) Record() record.DeviceRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r := record.DeviceRecord{
		ID:            d.id,
		FriendlyName:  d.desc.FriendlyName,
		ModelName:     d.desc.ModelName,
		ModelNumber:   d.desc.ModelNumber,
		IPAddress:     d.desc.IPAddress,
		LastSeen:      d.lastSeen,
		LastConnected: d.lastConnected,
	}
	for _, s := range d.services {
		r.Services = append(r.Services, record.ServiceEntry{
			Description: s.Description(),
			Config:      s.Config().Snapshot(),
		})
	}
	return r
}

func (d *ConnectableDevice) indexLocked(serviceID string) int {
	return slices.IndexFunc(d.services, func(s service.DeviceService) bool {
		return s.ServiceID() == serviceID
	})
}

func (d *ConnectableDevice) attached(s service.DeviceService) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Contains(d.services, s)
}

func (d *ConnectableDevice) recomputeLocked() (added, removed []string) {
	set := capability.NewSet()
	for _, s := range d.services {
		set.Add(s.Capabilities()...)
	}
	next := set.List()
	added, removed = capability.Diff(d.caps, next)
	d.caps = next
	return added, removed
}

// checkReadyLocked marks the device ready if every service is connected and
// reports whether that was a transition.
func (d *ConnectableDevice) checkReadyLocked() bool {
	if d.ready || len(d.services) == 0 {
		return false
	}
	for _, s := range d.services {
		if !s.IsConnected() {
			return false
		}
	}
	d.ready = true
	return true
}

func (d *ConnectableDevice) postCapabilities(added, removed []string) {
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	d.post(func(l Listener) { l.OnCapabilityUpdated(d, added, removed) })
}

// post queues fn for every listener registered now.
func (d *ConnectableDevice) post(fn func(Listener)) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return
	}

	d.listenerMu.Lock()
	listeners := make([]Listener, len(d.listeners))
	for i, e := range d.listeners {
		listeners[i] = e.l
	}
	d.listenerMu.Unlock()
	if len(listeners) == 0 {
		return
	}

	d.dispatcher.Post(func() {
		for _, l := range listeners {
			fn(l)
		}
	})
}

func closeService(s service.DeviceService) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
		return
	}
	_ = s.Disconnect()
}

// serviceListener forwards the events of one attached service.
type serviceListener struct {
	d *ConnectableDevice
	s service.DeviceService
}

var _ service.Listener = (*serviceListener)(nil)

func (sl *serviceListener) OnConnectionSuccess(service.DeviceService) {
	d := sl.d
	if !d.attached(sl.s) {
		return
	}
	d.mu.Lock()
	d.lastConnected = d.now()
	becameReady := d.checkReadyLocked()
	d.mu.Unlock()

	if becameReady {
		d.logger.Debug("device: ready", "device", d.id)
		d.post(func(l Listener) { l.OnDeviceReady(d) })
	}
}

func (sl *serviceListener) OnConnectionFailure(_ service.DeviceService, err error) {
	d := sl.d
	if !d.attached(sl.s) {
		return
	}
	err = fmt.Errorf("%s: %w", sl.s.ServiceID(), err)
	d.post(func(l Listener) { l.OnConnectionFailed(d, err) })
}

func (sl *serviceListener) OnDisconnect(_ service.DeviceService, err error) {
	d := sl.d
	if !d.attached(sl.s) {
		return
	}
	d.mu.Lock()
	wasReady := d.ready
	d.ready = false
	d.mu.Unlock()

	if wasReady {
		d.post(func(l Listener) { l.OnDeviceDisconnected(d, err) })
	}
}

func (sl *serviceListener) OnCapabilitiesUpdated(service.DeviceService, []string, []string) {
	d := sl.d
	if !d.attached(sl.s) {
		return
	}
	d.mu.Lock()
	added, removed := d.recomputeLocked()
	d.mu.Unlock()
	d.postCapabilities(added, removed)
}

func (sl *serviceListener) OnPairingRequired(s service.DeviceService, p service.PairingType) {
	d := sl.d
	if !d.attached(sl.s) {
		return
	}
	d.post(func(l Listener) { l.OnPairingRequired(d, s, p) })
}
