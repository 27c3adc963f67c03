package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Decoding errors.
var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrMissingType    = errors.New("message has no type")
	ErrInvalidID      = errors.New("invalid message id")
	ErrInvalidPayload = errors.New("invalid payload")
)

// MessageType is the envelope "type" field.
type MessageType string

// Envelope types.
const (
	TypeRequest     MessageType = "request"
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypeRegister    MessageType = "register"
	TypeResponse    MessageType = "response"
	TypeError       MessageType = "error"
	TypeRegistered  MessageType = "registered"
	TypeHello       MessageType = "hello"
)

// IsOutbound reports whether t is sent by the client.
func (t MessageType) IsOutbound() bool {
	switch t {
	case TypeRequest, TypeSubscribe, TypeUnsubscribe, TypeRegister:
		return true
	}
	return false
}

// Request is an outbound envelope. Either URI or Target names the operation.
type Request struct {
	Type    MessageType `json:"type"`
	ID      MessageID   `json:"id,omitempty"`
	URI     string      `json:"uri,omitempty"`
	Target  string      `json:"target,omitempty"`
	Payload any         `json:"payload,omitempty"`
}

// Name returns the URI, or the target when no URI is set.
func (r Request) Name() string {
	if r.URI != "" {
		return r.URI
	}
	return r.Target
}

// MessageID is the correlation id of an envelope. It is sent as a JSON
// number; string ids holding digits (or a "_<n>" suffix) are accepted on
// input because devices echo back whatever form they are given.
type MessageID int

// UnmarshalJSON accepts numbers, digit strings and "prefix_<n>" strings.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if data[0] != '"' {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidID, data)
		}
		*id = MessageID(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, data)
	}
	if s == "" {
		*id = 0
		return nil
	}
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	*id = MessageID(n)
	return nil
}

// Message is a decoded inbound envelope.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      MessageID       `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HasID reports whether the message carries a correlation id.
func (m *Message) HasID() bool {
	return m.ID != 0
}

// DecodePayload unmarshals the payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// DecodeMessage parses one inbound envelope.
func DecodeMessage(data []byte) (*Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyMessage
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Type == "" {
		return nil, ErrMissingType
	}
	return &m, nil
}

// EncodeRequest serializes an outbound envelope.
func EncodeRequest(r Request) ([]byte, error) {
	return json.Marshal(r)
}

// ErrorInfo is a parsed error string of the form "<code> <message>".
type ErrorInfo struct {
	Code    int
	Message string
}

// ParseError splits an error envelope string. Strings without a leading
// code return Code 0.
func ParseError(s string) ErrorInfo {
	s = strings.TrimSpace(s)
	head, tail, _ := strings.Cut(s, " ")
	if code, err := strconv.Atoi(head); err == nil {
		return ErrorInfo{Code: code, Message: strings.TrimSpace(tail)}
	}
	return ErrorInfo{Message: s}
}

// IsAuthorizationDenied reports whether the error means the user or device
// refused access.
func (e ErrorInfo) IsAuthorizationDenied() bool {
	if e.Code == 403 {
		return true
	}
	msg := strings.ToLower(e.Message)
	for _, word := range []string{"denied", "rejected", "cancelled", "canceled"} {
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}

// ReturnValue is the common response payload shape.
type ReturnValue struct {
	ReturnValue bool   `json:"returnValue"`
	ErrorCode   string `json:"errorCode,omitempty"`
	ErrorText   string `json:"errorText,omitempty"`
}
