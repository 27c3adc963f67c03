package log

import "testing"

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DirectionIn", DirectionIn.String(), "IN"},
		{"DirectionOut", DirectionOut.String(), "OUT"},
		{"DirectionUnknown", Direction(9).String(), "UNKNOWN"},
		{"LayerTransport", LayerTransport.String(), "TRANSPORT"},
		{"LayerWire", LayerWire.String(), "WIRE"},
		{"LayerService", LayerService.String(), "SERVICE"},
		{"CategoryMessage", CategoryMessage.String(), "MESSAGE"},
		{"CategoryControl", CategoryControl.String(), "CONTROL"},
		{"CategoryState", CategoryState.String(), "STATE"},
		{"CategoryError", CategoryError.String(), "ERROR"},
		{"RoleController", RoleController.String(), "CONTROLLER"},
		{"RoleDevice", RoleDevice.String(), "DEVICE"},
		{"StateEntityPairing", StateEntityPairing.String(), "PAIRING"},
		{"ControlMsgPing", ControlMsgPing.String(), "PING"},
		{"ControlMsgPong", ControlMsgPong.String(), "PONG"},
		{"ControlMsgClose", ControlMsgClose.String(), "CLOSE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseMessageType(t *testing.T) {
	tests := map[string]MessageType{
		"request":     MessageTypeRequest,
		"response":    MessageTypeResponse,
		"error":       MessageTypeError,
		"register":    MessageTypeRegister,
		"registered":  MessageTypeRegistered,
		"subscribe":   MessageTypeSubscribe,
		"unsubscribe": MessageTypeUnsubscribe,
		"hello":       MessageTypeNotification,
	}
	for in, want := range tests {
		if got := ParseMessageType(in); got != want {
			t.Errorf("ParseMessageType(%q) = %v, want %v", in, got, want)
		}
	}
}
