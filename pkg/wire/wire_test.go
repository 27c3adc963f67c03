package wire

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageIDUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    MessageID
		wantErr bool
	}{
		{`7`, 7, false},
		{`"12"`, 12, false},
		{`"req_42"`, 42, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"abc"`, 0, true},
		{`{}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var id MessageID
			err := json.Unmarshal([]byte(tt.in), &id)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Fatalf("error = %v, want ErrInvalidID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if id != tt.want {
				t.Errorf("id = %d, want %d", id, tt.want)
			}
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	t.Run("Response", func(t *testing.T) {
		m, err := DecodeMessage([]byte(`{"type":"response","id":"3","payload":{"returnValue":true}}`))
		require.NoError(t, err)
		assert.Equal(t, TypeResponse, m.Type)
		assert.True(t, m.HasID())
		assert.Equal(t, MessageID(3), m.ID)

		var rv ReturnValue
		require.NoError(t, m.DecodePayload(&rv))
		assert.True(t, rv.ReturnValue)
	})

	t.Run("ErrorEnvelope", func(t *testing.T) {
		m, err := DecodeMessage([]byte(`{"type":"error","id":5,"error":"403 denied"}`))
		require.NoError(t, err)
		assert.Equal(t, TypeError, m.Type)
		assert.Equal(t, "403 denied", m.Error)
	})

	t.Run("NoID", func(t *testing.T) {
		m, err := DecodeMessage([]byte(`{"type":"hello","payload":{}}`))
		require.NoError(t, err)
		assert.False(t, m.HasID())
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := DecodeMessage([]byte("  "))
		assert.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("MissingType", func(t *testing.T) {
		_, err := DecodeMessage([]byte(`{"id":1}`))
		assert.ErrorIs(t, err, ErrMissingType)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		m, err := DecodeMessage([]byte(`{"type":"response","id":1}`))
		require.NoError(t, err)
		var v map[string]any
		assert.ErrorIs(t, m.DecodePayload(&v), ErrInvalidPayload)
	})
}

func TestEncodeRequest(t *testing.T) {
	data, err := EncodeRequest(Request{
		Type:    TypeRequest,
		ID:      9,
		URI:     "ssap://audio/setVolume",
		Payload: map[string]any{"volume": 40},
	})
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "request", back["type"])
	assert.EqualValues(t, 9, back["id"])
	assert.Equal(t, "ssap://audio/setVolume", back["uri"])
	assert.NotContains(t, back, "target")
}

func TestRequestName(t *testing.T) {
	assert.Equal(t, "ssap://a", Request{URI: "ssap://a", Target: "t"}.Name())
	assert.Equal(t, "t", Request{Target: "t"}.Name())
}

func TestMessageTypeIsOutbound(t *testing.T) {
	for _, mt := range []MessageType{TypeRequest, TypeSubscribe, TypeUnsubscribe, TypeRegister} {
		assert.True(t, mt.IsOutbound(), mt)
	}
	for _, mt := range []MessageType{TypeResponse, TypeError, TypeRegistered, TypeHello} {
		assert.False(t, mt.IsOutbound(), mt)
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		in     string
		code   int
		denied bool
	}{
		{"403 User denied access", 403, true},
		{"401 insufficient permissions", 401, false},
		{"500 Application error", 500, false},
		{"pairing rejected", 0, true},
		{"request cancelled by user", 0, true},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			info := ParseError(tt.in)
			if info.Code != tt.code {
				t.Errorf("Code = %d, want %d", info.Code, tt.code)
			}
			if got := info.IsAuthorizationDenied(); got != tt.denied {
				t.Errorf("IsAuthorizationDenied() = %v, want %v", got, tt.denied)
			}
		})
	}
}

func TestManifest(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		m := DefaultManifest()
		assert.Equal(t, 1, m.ManifestVersion)
		assert.Contains(t, m.Permissions, "CONTROL_AUDIO")
		assert.Equal(t, m.Permissions, m.Signed.Permissions)

		m.Permissions[0] = "changed"
		assert.Equal(t, "LAUNCH", DefaultPermissions[0])
	})

	t.Run("ParseOverrides", func(t *testing.T) {
		m, err := ParseManifest([]byte("appVersion: \"2.0\"\nsigned:\n  appId: com.example\n  permissions: [LAUNCH]\n"))
		require.NoError(t, err)
		assert.Equal(t, "2.0", m.AppVersion)
		assert.Equal(t, "com.example", m.Signed.AppID)
		assert.Equal(t, []string{"LAUNCH"}, m.Signed.Permissions)
		assert.Equal(t, 1, m.ManifestVersion)
	})

	t.Run("ParseInvalid", func(t *testing.T) {
		_, err := ParseManifest([]byte("signed: [1, 2"))
		assert.Error(t, err)
	})

	t.Run("LoadFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.yaml")
		require.NoError(t, os.WriteFile(path, []byte("appVersion: \"3.1\"\n"), 0o644))
		m, err := LoadManifest(path)
		require.NoError(t, err)
		assert.Equal(t, "3.1", m.AppVersion)

		_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestRegisterPayloadJSON(t *testing.T) {
	data, err := json.Marshal(RegisterPayload{
		PairingType: PairingTypePrompt,
		ClientKey:   "abc",
		Manifest:    DefaultManifest(),
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"client-key":"abc"`))

	data, err = json.Marshal(RegisterPayload{PairingType: PairingTypePrompt})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "client-key")
}
