package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this side is the controller or the device.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (host:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceID is the connectable device identifier, if known.
	DeviceID string `cbor:"8,keyasint,omitempty"`

	// ServiceID is the protocol id of the service owning the connection.
	ServiceID string `cbor:"9,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Ping/pong/close
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the WebSocket layer (raw text frames).
	LayerTransport Layer = 0
	// LayerWire is the envelope layer (decoded JSON).
	LayerWire Layer = 1
	// LayerService is the device service layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an envelope (request/response/subscription).
	CategoryMessage Category = 0
	// CategoryControl indicates a control message (ping/pong/close).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which end of the control session logged the event.
type Role uint8

const (
	// RoleController is the controlling application.
	RoleController Role = 0
	// RoleDevice is the rendering device (or a fake of one).
	RoleDevice Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "CONTROLLER"
	case RoleDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxFrameData is the number of frame bytes kept in a FrameEvent.
const MaxFrameData = 4096

// NewFrameEvent builds a FrameEvent, truncating data to MaxFrameData.
func NewFrameEvent(data []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(data)}
	if len(data) > MaxFrameData {
		fe.Data = append([]byte(nil), data[:MaxFrameData]...)
		fe.Truncated = true
	} else {
		fe.Data = append([]byte(nil), data...)
	}
	return fe
}

// MessageEvent captures a decoded envelope at the wire layer.
type MessageEvent struct {
	// Type is the envelope type.
	Type MessageType `cbor:"1,keyasint"`

	// MessageID correlates requests and responses (0 when absent).
	MessageID int `cbor:"2,keyasint"`

	// URI is the operation addressed by a request.
	URI string `cbor:"3,keyasint,omitempty"`

	// Subscription is set for subscribe requests and their updates.
	Subscription bool `cbor:"4,keyasint,omitempty"`

	// ErrorText is the error string of an error envelope.
	ErrorText string `cbor:"5,keyasint,omitempty"`

	// Payload is the decoded payload.
	Payload any `cbor:"8,keyasint,omitempty"`

	// Latency is the time from request send to response receipt (responses only).
	// Stored as nanoseconds.
	Latency *time.Duration `cbor:"9,keyasint,omitempty"`
}

// MessageType is the kind of envelope.
type MessageType uint8

const (
	// MessageTypeRequest is a one-shot request.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse is a response to a request or subscription.
	MessageTypeResponse MessageType = 1
	// MessageTypeNotification is an unsolicited message without an id.
	MessageTypeNotification MessageType = 2
	// MessageTypeError is an error envelope.
	MessageTypeError MessageType = 3
	// MessageTypeRegister is a register request.
	MessageTypeRegister MessageType = 4
	// MessageTypeRegistered acknowledges a register request.
	MessageTypeRegistered MessageType = 5
	// MessageTypeSubscribe is a subscribe request.
	MessageTypeSubscribe MessageType = 6
	// MessageTypeUnsubscribe ends a subscription.
	MessageTypeUnsubscribe MessageType = 7
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeNotification:
		return "NOTIFICATION"
	case MessageTypeError:
		return "ERROR"
	case MessageTypeRegister:
		return "REGISTER"
	case MessageTypeRegistered:
		return "REGISTERED"
	case MessageTypeSubscribe:
		return "SUBSCRIBE"
	case MessageTypeUnsubscribe:
		return "UNSUBSCRIBE"
	default:
		return "UNKNOWN"
	}
}

// ParseMessageType maps an envelope "type" string to a MessageType.
// Unknown strings map to MessageTypeNotification.
func ParseMessageType(s string) MessageType {
	switch s {
	case "request":
		return MessageTypeRequest
	case "response":
		return MessageTypeResponse
	case "error":
		return MessageTypeError
	case "register":
		return MessageTypeRegister
	case "registered":
		return MessageTypeRegistered
	case "subscribe":
		return MessageTypeSubscribe
	case "unsubscribe":
		return MessageTypeUnsubscribe
	default:
		return MessageTypeNotification
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a transport connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a control session state change.
	StateEntitySession StateEntity = 1
	// StateEntityPairing indicates a pairing state change.
	StateEntityPairing StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityPairing:
		return "PAIRING"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures transport-level control messages.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// CloseCode is the WebSocket status code for close messages.
	CloseCode *int `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgPing indicates a ping message.
	ControlMsgPing ControlMsgType = 0
	// ControlMsgPong indicates a pong message.
	ControlMsgPong ControlMsgType = 1
	// ControlMsgClose indicates a close message.
	ControlMsgClose ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgPing:
		return "PING"
	case ControlMsgPong:
		return "PONG"
	case ControlMsgClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
