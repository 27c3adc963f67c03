package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rendercast/rendercast-go/pkg/log"
	"github.com/rendercast/rendercast-go/pkg/metrics"
	"github.com/rendercast/rendercast-go/pkg/record"
	"github.com/rendercast/rendercast-go/pkg/wire"
)

// Default ports of the second-screen socket.
const (
	DefaultSecurePort = 3001
	DefaultPlainPort  = 3000
)

// Session defaults.
const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadLimit    = 4 << 20
)

// Config configures a Session.
type Config struct {
	// Host is the device address.
	Host string

	// Port overrides the default port (3001 secure, 3000 plain).
	Port int

	// Secure selects wss:// with certificate pinning. Plain ws:// otherwise.
	Secure bool

	// Path is the request path, "/" when empty.
	Path string

	// Credentials holds the client key and pinned certificate. Updated in
	// place when the device issues a key or on first TLS contact.
	Credentials *record.ServiceConfig

	// Manifest is sent with every register request.
	Manifest wire.Manifest

	// PairingType is requested when no client key is stored
	// (wire.PairingTypePrompt when empty).
	PairingType string

	// ForcePairing asks the device to prompt even with a valid client key.
	ForcePairing bool

	// CommandTimeout fails commands that get no response in time with
	// ErrCommandTimeout. Zero disables it. Subscriptions are exempt.
	CommandTimeout time.Duration

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// ReadLimit caps the size of one inbound message.
	ReadLimit int64

	// KeepAlive configures websocket pings. A zero PingInterval disables them.
	KeepAlive KeepAliveConfig

	// ServiceID and DeviceID tag protocol log events.
	ServiceID string
	DeviceID  string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives a trace of every envelope and state change.
	ProtocolLogger log.Logger

	// Metrics is optional.
	Metrics *metrics.Collectors
}

// DefaultConfig returns a secure configuration for host.
func DefaultConfig(host string) Config {
	return Config{
		Host:         host,
		Secure:       true,
		Manifest:     wire.DefaultManifest(),
		PairingType:  wire.PairingTypePrompt,
		DialTimeout:  DefaultDialTimeout,
		WriteTimeout: DefaultWriteTimeout,
		ReadLimit:    DefaultReadLimit,
		KeepAlive:    DefaultKeepAliveConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("%w: negative command timeout", ErrInvalidConfig)
	}
	return c.KeepAlive.Validate()
}

// port returns the effective port.
func (c Config) port() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.Secure {
		return DefaultSecurePort
	}
	return DefaultPlainPort
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "/"
	}
	if c.PairingType == "" {
		c.PairingType = wire.PairingTypePrompt
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ReadLimit == 0 {
		c.ReadLimit = DefaultReadLimit
	}
	if c.Manifest.Signed.AppID == "" {
		c.Manifest = wire.DefaultManifest()
	}
	if c.Credentials == nil {
		c.Credentials = record.NewServiceConfig("")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}
