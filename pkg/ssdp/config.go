package ssdp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/time/rate"

	"github.com/rendercast/rendercast-go/pkg/discovery"
	"github.com/rendercast/rendercast-go/pkg/metrics"
)

// SSDP constants.
const (
	// DefaultGroupAddr is the IPv4 SSDP multicast group.
	DefaultGroupAddr = "239.255.255.250:1900"

	// DefaultMX is the maximum response delay requested in M-SEARCH.
	DefaultMX = 2

	// multicastTTL is the hop limit of outgoing searches.
	multicastTTL = 2

	maxDatagram = 64 * 1024
)

// Configuration errors.
var (
	ErrInvalidInterval = errors.New("rescan interval must be positive")
	ErrInvalidAttempts = errors.New("rescan attempts must be positive")
	ErrInvalidGroup    = errors.New("invalid group address")
)

// Config configures a Provider.
type Config struct {
	// GroupAddr is where searches are sent. Tests point it at a unicast
	// responder.
	GroupAddr string

	// RescanInterval is the time between search cycles.
	RescanInterval time.Duration

	// RescanAttempts is how many missed cycles make a record stale.
	RescanAttempts int

	// SearchStagger holds the delays of the repeated searches in a cycle.
	SearchStagger []time.Duration

	// MX is the maximum response delay in seconds.
	MX int

	// Interface restricts multicast to one network interface. Nil uses the
	// system default.
	Interface *net.Interface

	// FetchTimeout bounds one description fetch.
	FetchTimeout time.Duration

	// FetchRate and FetchBurst limit description fetches.
	FetchRate  rate.Limit
	FetchBurst int

	// ListenSearch opens the socket searches are sent from and responses
	// read on. Nil opens an ephemeral UDP socket with multicast options.
	ListenSearch func() (net.PacketConn, error)

	// ListenNotify opens the socket NOTIFY announcements are read on. Nil
	// joins GroupAddr on Interface.
	ListenNotify func() (net.PacketConn, error)

	// Fetcher loads description documents. Nil uses FetchDescription.
	Fetcher Fetcher

	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	Metrics *metrics.Collectors
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		GroupAddr:      DefaultGroupAddr,
		RescanInterval: discovery.DefaultRescanInterval,
		RescanAttempts: discovery.DefaultRescanAttempts,
		SearchStagger:  []time.Duration{0, time.Second, 2 * time.Second},
		MX:             DefaultMX,
		FetchTimeout:   5 * time.Second,
		FetchRate:      rate.Limit(4),
		FetchBurst:     4,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RescanInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.RescanAttempts <= 0 {
		return ErrInvalidAttempts
	}
	if _, err := net.ResolveUDPAddr("udp4", c.GroupAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGroup, err)
	}
	return nil
}

// TTL is how long a record lives without being seen.
func (c Config) TTL() time.Duration {
	return c.RescanInterval * time.Duration(c.RescanAttempts)
}

func (c Config) listenSearch() (net.PacketConn, error) {
	if c.ListenSearch != nil {
		return c.ListenSearch()
	}
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, err
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(multicastTTL); err != nil {
		conn.Close()
		return nil, err
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, err
	}
	if c.Interface != nil {
		if err := pc.SetMulticastInterface(c.Interface); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (c Config) listenNotify() (net.PacketConn, error) {
	if c.ListenNotify != nil {
		return c.ListenNotify()
	}
	group, err := net.ResolveUDPAddr("udp4", c.GroupAddr)
	if err != nil {
		return nil, err
	}
	return net.ListenMulticastUDP("udp4", c.Interface, group)
}

func (c Config) fetcher() Fetcher {
	if c.Fetcher != nil {
		return c.Fetcher
	}
	return FetcherFunc(FetchDescription)
}
