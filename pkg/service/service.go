package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/record"
)

// Service errors.
var (
	ErrNotConnected  = errors.New("service not connected")
	ErrInvalidConfig = errors.New("invalid service configuration")
)

// ConnectionState is the connection state of a service.
type ConnectionState uint8

const (
	// StateDisconnected - no session.
	StateDisconnected ConnectionState = iota

	// StateConnecting - connect in progress (including pairing).
	StateConnecting

	// StateConnected - ready for commands.
	StateConnected

	// StateDisconnecting - teardown in progress.
	StateDisconnecting
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// PairingType is how a device asks the user to approve a controller.
type PairingType uint8

const (
	// PairingNone leaves the choice to the device.
	PairingNone PairingType = iota

	// PairingFirstScreen shows an accept/reject prompt on the device.
	PairingFirstScreen

	// PairingPinCode shows a PIN on the device that the user types back.
	PairingPinCode

	// PairingMixed lets the user pick either.
	PairingMixed
)

// String returns the pairing type name.
func (p PairingType) String() string {
	switch p {
	case PairingNone:
		return "NONE"
	case PairingFirstScreen:
		return "FIRST_SCREEN"
	case PairingPinCode:
		return "PIN_CODE"
	case PairingMixed:
		return "MIXED"
	default:
		return "UNKNOWN"
	}
}

// ResponseFunc receives the outcome of a command. It is invoked exactly once
// per command (once per message for subscriptions) with either a payload or
// an error.
type ResponseFunc func(payload json.RawMessage, err error)

// Command is a protocol request addressed by URI.
type Command struct {
	URI     string
	Payload any

	// Subscription keeps the command armed for every matching message
	// until it is unsubscribed.
	Subscription bool
}

// Listener receives service lifecycle events.
type Listener interface {
	OnConnectionSuccess(s DeviceService)
	OnConnectionFailure(s DeviceService, err error)
	OnDisconnect(s DeviceService, err error)
	OnCapabilitiesUpdated(s DeviceService, added, removed []string)
	OnPairingRequired(s DeviceService, pairingType PairingType)
}

// DeviceService is one protocol endpoint of a physical device.
type DeviceService interface {
	// Connect starts connecting. The outcome is reported to the listener.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. It is idempotent.
	Disconnect() error

	IsConnected() bool
	IsConnectable() bool

	Capabilities() []string

	// HasCapability accepts exact names and trailing ".Any"/".*" wildcards.
	HasCapability(name string) bool
	HasCapabilities(names ...string) bool
	HasAnyCapability(names ...string) bool

	// SendCommand sends a raw protocol command. cb may be nil.
	SendCommand(ctx context.Context, cmd Command, cb ResponseFunc) error

	// SendPairingKey answers a PIN pairing prompt.
	SendPairingKey(key string) error

	PriorityLevel(tag capability.Tag) capability.Priority

	// API returns the implementation registered for tag.
	API(tag capability.Tag) (any, bool)

	ServiceID() string
	Description() record.ServiceDescription
	UpdateDescription(desc record.ServiceDescription)
	Config() *record.ServiceConfig

	SetListener(l Listener)
	SetPairingType(p PairingType)

	DeviceID() string
	SetDeviceID(id string)
}

// Factory creates a service for a discovered endpoint. cfg carries any
// stored credentials and is never nil.
type Factory func(desc record.ServiceDescription, cfg *record.ServiceConfig) (DeviceService, error)
