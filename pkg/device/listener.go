package device

import (
	"sync"

	"github.com/rendercast/rendercast-go/pkg/service"
)

// Listener receives device events. Events are delivered on the device's
// dispatcher goroutine, one at a time and in order.
type Listener interface {
	// OnDeviceReady fires when every attached service is connected.
	OnDeviceReady(d *ConnectableDevice)

	// OnDeviceDisconnected fires when a ready device loses a service
	// connection. err is nil for a requested disconnect.
	OnDeviceDisconnected(d *ConnectableDevice, err error)

	// OnCapabilityUpdated carries the delta of the device capability set.
	OnCapabilityUpdated(d *ConnectableDevice, added, removed []string)

	// OnPairingRequired asks the user to approve the controller.
	OnPairingRequired(d *ConnectableDevice, s service.DeviceService, pairingType service.PairingType)

	// OnConnectionFailed reports a service that could not connect.
	OnConnectionFailed(d *ConnectableDevice, err error)
}

// ListenerHandle unregisters a listener.
type ListenerHandle struct {
	once    *sync.Once
	release func()
}

// Release removes the listener. Events already queued may still arrive.
// Release is idempotent; the zero handle does nothing.
func (h ListenerHandle) Release() {
	if h.once == nil {
		return
	}
	h.once.Do(h.release)
}

// NewListenerHandle returns a handle that runs release once.
func NewListenerHandle(release func()) ListenerHandle {
	return ListenerHandle{once: new(sync.Once), release: release}
}

// ListenerFuncs adapts functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Ready            func(d *ConnectableDevice)
	Disconnected     func(d *ConnectableDevice, err error)
	CapabilityUpdate func(d *ConnectableDevice, added, removed []string)
	PairingRequired  func(d *ConnectableDevice, s service.DeviceService, p service.PairingType)
	ConnectionFailed func(d *ConnectableDevice, err error)
}

var _ Listener = ListenerFuncs{}

// OnDeviceReady calls f.Ready if set.
func (f ListenerFuncs) OnDeviceReady(d *ConnectableDevice) {
	if f.Ready != nil {
		f.Ready(d)
	}
}

// OnDeviceDisconnected calls f.Disconnected if set.
func (f ListenerFuncs) OnDeviceDisconnected(d *ConnectableDevice, err error) {
	if f.Disconnected != nil {
		f.Disconnected(d, err)
	}
}

// OnCapabilityUpdated calls f.CapabilityUpdate if set.
func (f ListenerFuncs) OnCapabilityUpdated(d *ConnectableDevice, added, removed []string) {
	if f.CapabilityUpdate != nil {
		f.CapabilityUpdate(d, added, removed)
	}
}

// OnPairingRequired calls f.PairingRequired if set.
func (f ListenerFuncs) OnPairingRequired(d *ConnectableDevice, s service.DeviceService, p service.PairingType) {
	if f.PairingRequired != nil {
		f.PairingRequired(d, s, p)
	}
}

// OnConnectionFailed calls f.ConnectionFailed if set.
func (f ListenerFuncs) OnConnectionFailed(d *ConnectableDevice, err error) {
	if f.ConnectionFailed != nil {
		f.ConnectionFailed(d, err)
	}
}
