package session

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"

	"github.com/rendercast/rendercast-go/pkg/log"
)

// Keep-alive constants.
const (
	// DefaultPingInterval is the default interval between pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultPongTimeout is the default timeout waiting for a pong response.
	DefaultPongTimeout = 5 * time.Second

	// DefaultMaxMissedPongs is the default number of missed pongs before disconnect.
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// PingInterval is the interval between pings. Zero disables pings.
	PingInterval time.Duration

	// PongTimeout is the timeout waiting for a pong response.
	PongTimeout time.Duration

	// MaxMissedPongs is the number of missed pongs before disconnect.
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// Validate checks the configuration.
func (c KeepAliveConfig) Validate() error {
	if c.PingInterval < 0 || c.PongTimeout < 0 || c.MaxMissedPongs < 0 {
		return fmt.Errorf("%w: negative keep-alive setting", ErrInvalidConfig)
	}
	return nil
}

// DetectionDelay is the longest time a dead peer can go unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

// keepAlive pings conn until ctx ends. After MaxMissedPongs consecutive
// failures it reports ErrPingTimeout through onTimeout.
func (s *Session) keepAlive(ctx context.Context, conn *websocket.Conn, cfg KeepAliveConfig, onTimeout func(error)) {
	if cfg.PingInterval <= 0 {
		return
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = DefaultPongTimeout
	}
	if cfg.MaxMissedPongs <= 0 {
		cfg.MaxMissedPongs = DefaultMaxMissedPongs
	}

	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.logControl(log.DirectionOut, log.ControlMsgPing, nil)
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PongTimeout)
		err := conn.Ping(pingCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			missed++
			s.cfg.Logger.Debug("session: missed pong", "host", s.cfg.Host, "missed", missed, "error", err)
			if missed >= cfg.MaxMissedPongs {
				onTimeout(fmt.Errorf("%w: %w after %d missed pongs", ErrConnectionLost, ErrPingTimeout, missed))
				return
			}
			continue
		}
		missed = 0
		s.logControl(log.DirectionIn, log.ControlMsgPong, nil)
	}
}
