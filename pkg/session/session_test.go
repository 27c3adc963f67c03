package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendercast/rendercast-go/internal/fakedevice"
	"github.com/rendercast/rendercast-go/pkg/cert"
	"github.com/rendercast/rendercast-go/pkg/log"
	"github.com/rendercast/rendercast-go/pkg/metrics"
	"github.com/rendercast/rendercast-go/pkg/record"
	"github.com/rendercast/rendercast-go/pkg/wire"
)

const waitTimeout = 5 * time.Second

type testListener struct {
	registered   chan struct{}
	pairing      chan string
	failed       chan error
	disconnected chan error
	unsolicited  chan *wire.Message
}

func newTestListener() *testListener {
	return &testListener{
		registered:   make(chan struct{}, 8),
		pairing:      make(chan string, 8),
		failed:       make(chan error, 8),
		disconnected: make(chan error, 8),
		unsolicited:  make(chan *wire.Message, 8),
	}
}

func (l *testListener) OnRegistered()                   { l.registered <- struct{}{} }
func (l *testListener) OnPairingRequired(p string)      { l.pairing <- p }
func (l *testListener) OnConnectionFailed(err error)    { l.failed <- err }
func (l *testListener) OnDisconnected(err error)        { l.disconnected <- err }
func (l *testListener) OnUnsolicited(msg *wire.Message) { l.unsolicited <- msg }

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

// result collects the outcome of one callback.
type result struct {
	payload json.RawMessage
	err     error
}

func collect() (ResponseFunc, chan result) {
	ch := make(chan result, 16)
	return func(p json.RawMessage, err error) { ch <- result{p, err} }, ch
}

func startDevice(t *testing.T, opts fakedevice.Options, secure bool) (*fakedevice.Device, *httptest.Server) {
	t.Helper()
	d := fakedevice.New(opts)
	var srv *httptest.Server
	if secure {
		srv = httptest.NewTLSServer(d.Handler())
	} else {
		srv = httptest.NewServer(d.Handler())
	}
	t.Cleanup(func() {
		d.DropConnections()
		srv.Close()
	})
	return d, srv
}

func configFor(t *testing.T, srv *httptest.Server) Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := DefaultConfig(host)
	cfg.Port = port
	cfg.Secure = u.Scheme == "https"
	cfg.KeepAlive = KeepAliveConfig{}
	cfg.Credentials = record.NewServiceConfig("uuid-test")
	return cfg
}

func newSession(t *testing.T, cfg Config) (*Session, *testListener) {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	l := newTestListener()
	s.SetListener(l)
	t.Cleanup(func() { _ = s.Disconnect() })
	return s, l
}

func uris(reqs []fakedevice.Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if r.URI == "" {
			out = append(out, string(r.Type))
			continue
		}
		out = append(out, r.URI)
	}
	return out
}

func TestQueuedCommandsFlushBeforeLaterCommands(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{RequirePairing: true}, false)
	s, l := newSession(t, configFor(t, srv))
	ctx := context.Background()

	cbA, resA := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URIPlay, nil, cbA))
	assert.Equal(t, wire.PairingTypePrompt, recv(t, l.pairing))
	assert.Equal(t, StateRegistering, s.State())

	cbB, resB := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URIPause, nil, cbB))
	_, queued := s.PendingCount()
	assert.Equal(t, 2, queued)

	d.Approve()
	recv(t, l.registered)

	cbC, resC := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URIStop, nil, cbC))

	for _, ch := range []chan result{resA, resB, resC} {
		r := recv(t, ch)
		assert.NoError(t, r.err)
	}

	reqs := d.Requests()
	assert.Equal(t, []string{"register", fakedevice.URIPlay, fakedevice.URIPause, fakedevice.URIStop}, uris(reqs))
	for i := 1; i < len(reqs); i++ {
		assert.Greater(t, int(reqs[i].ID), int(reqs[i-1].ID), "ids must increase")
	}
	assert.Equal(t, d.ClientKey(), s.cfg.Credentials.ClientKey())
}

func TestTransportLossFailsPending(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{}, false)
	d.Silence(fakedevice.URIPlay)
	d.Silence(fakedevice.URIPause)
	s, l := newSession(t, configFor(t, srv))
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	recv(t, l.registered)

	cb1, res1 := collect()
	cb2, res2 := collect()
	cbSub, resSub := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URIPlay, nil, cb1))
	require.NoError(t, s.Send(ctx, fakedevice.URIPause, nil, cb2))
	_, err := s.Subscribe(ctx, fakedevice.URIGetAudioStatus, nil, cbSub)
	require.NoError(t, err)

	first := recv(t, resSub)
	require.NoError(t, first.err)
	inFlight, _ := s.PendingCount()
	assert.Equal(t, 3, inFlight)

	d.DropConnections()

	for _, ch := range []chan result{res1, res2, resSub} {
		r := recv(t, ch)
		assert.ErrorIs(t, r.err, ErrConnectionLost)
	}
	assert.ErrorIs(t, recv(t, l.disconnected), ErrConnectionLost)

	inFlight, queued := s.PendingCount()
	assert.Zero(t, inFlight)
	assert.Zero(t, queued)
	assert.Equal(t, StateInitial, s.State())

	// Reconnecting does not resubscribe.
	require.NoError(t, s.Connect(ctx))
	recv(t, l.registered)
	cb3, res3 := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URIStop, nil, cb3))
	require.NoError(t, recv(t, res3).err)
	assert.Len(t, d.RequestsFor(fakedevice.URIGetAudioStatus), 1)

	// The subscription callback stays silent after its final error.
	d.SetVolume(42)
	select {
	case r := <-resSub:
		t.Fatalf("unexpected delivery after connection loss: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCertificatePinMismatch(t *testing.T) {
	_, srv := startDevice(t, fakedevice.Options{}, true)

	other, err := cert.GenerateSelfSigned("other-tv", "127.0.0.1")
	require.NoError(t, err)
	pinned := cert.EncodeDERPEM(other.Certificate[0])

	cfg := configFor(t, srv)
	cfg.Credentials.SetServerCertificate(pinned)
	s, l := newSession(t, cfg)

	cb, res := collect()
	require.NoError(t, s.Send(context.Background(), fakedevice.URIPlay, nil, cb))

	err = recv(t, l.failed)
	assert.ErrorIs(t, err, cert.ErrCertificateMismatch)
	assert.ErrorIs(t, recv(t, res).err, ErrConnectionLost)
	assert.Equal(t, StateInitial, s.State())
	assert.Equal(t, pinned, cfg.Credentials.ServerCertificate())
	assert.Empty(t, l.registered)
}

func TestTrustOnFirstUsePinsCertificate(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{}, true)
	cfg := configFor(t, srv)
	s, l := newSession(t, cfg)

	require.NoError(t, s.Connect(context.Background()))
	recv(t, l.registered)

	der, err := cert.DecodeDERPEM(cfg.Credentials.ServerCertificate())
	require.NoError(t, err)
	assert.Equal(t, srv.Certificate().Raw, der)
	assert.Equal(t, d.ClientKey(), cfg.Credentials.ClientKey())

	// The pinned certificate is accepted on the next connection.
	require.NoError(t, s.Disconnect())
	assert.Nil(t, recv(t, l.disconnected))
	require.NoError(t, s.Connect(context.Background()))
	recv(t, l.registered)
}

func TestPinPairing(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{
		RequirePairing: true,
		PairingType:    wire.PairingTypePIN,
		PIN:            "1234",
	}, false)
	cfg := configFor(t, srv)
	cfg.PairingType = wire.PairingTypePIN
	s, l := newSession(t, cfg)

	assert.ErrorIs(t, s.SendPairingKey("1234"), ErrNotPairing)

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, wire.PairingTypePIN, recv(t, l.pairing))
	require.NoError(t, s.SendPairingKey("1234"))
	recv(t, l.registered)

	assert.Equal(t, "1234", cfg.Credentials.PairingKey())
	assert.Len(t, d.RequestsFor(URISetPin), 1)
}

func TestRegistrationDenied(t *testing.T) {
	_, srv := startDevice(t, fakedevice.Options{DenyPairing: true}, false)
	s, l := newSession(t, configFor(t, srv))

	cb, res := collect()
	require.NoError(t, s.Send(context.Background(), fakedevice.URIPlay, nil, cb))

	assert.ErrorIs(t, recv(t, l.failed), ErrAuthorizationDenied)
	r := recv(t, res)
	assert.ErrorIs(t, r.err, ErrConnectionLost)
	assert.ErrorIs(t, r.err, ErrAuthorizationDenied)
	assert.Equal(t, StateInitial, s.State())
}

func TestRejectedPrompt(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{RequirePairing: true}, false)
	s, l := newSession(t, configFor(t, srv))

	require.NoError(t, s.Connect(context.Background()))
	recv(t, l.pairing)
	d.Reject()

	assert.ErrorIs(t, recv(t, l.failed), ErrAuthorizationDenied)
}

func TestProtocolErrorKeepsConnection(t *testing.T) {
	_, srv := startDevice(t, fakedevice.Options{}, false)
	s, l := newSession(t, configFor(t, srv))
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	recv(t, l.registered)

	cb, res := collect()
	require.NoError(t, s.Send(ctx, "ssap://nowhere", nil, cb))
	r := recv(t, res)
	var perr *ProtocolError
	require.ErrorAs(t, r.err, &perr)
	assert.Equal(t, 404, perr.Code)
	assert.True(t, s.IsRegistered())

	cb2, res2 := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URIGetVolume, nil, cb2))
	r = recv(t, res2)
	require.NoError(t, r.err)

	var status struct {
		Volume int `json:"volume"`
	}
	require.NoError(t, json.Unmarshal(r.payload, &status))
	assert.Equal(t, 0, status.Volume)
}

func TestAuthorizationDeniedCommandDisconnects(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{}, false)
	d.SetHandler(fakedevice.URITurnOff, func(fakedevice.Request) (any, string) {
		return nil, "403 permission denied"
	})
	s, l := newSession(t, configFor(t, srv))
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	recv(t, l.registered)

	cb, res := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URITurnOff, nil, cb))
	assert.ErrorIs(t, recv(t, res).err, ErrAuthorizationDenied)
	assert.ErrorIs(t, recv(t, l.disconnected), ErrAuthorizationDenied)
	assert.Equal(t, StateInitial, s.State())
}

func TestCommandTimeout(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{}, false)
	d.Silence(fakedevice.URIPlay)
	cfg := configFor(t, srv)
	cfg.CommandTimeout = 50 * time.Millisecond

	reg := prometheus.NewRegistry()
	cfg.Metrics = metrics.New(reg)
	s, l := newSession(t, cfg)
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	recv(t, l.registered)

	cb, res := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URIPlay, nil, cb))
	assert.ErrorIs(t, recv(t, res).err, ErrCommandTimeout)

	inFlight, _ := s.PendingCount()
	assert.Zero(t, inFlight)
	assert.True(t, s.IsRegistered())
	assert.Equal(t, 1, mustCount(t, reg, "rendercast_session_commands_total"))
}

func TestUnsubscribe(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{}, false)
	s, l := newSession(t, configFor(t, srv))
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	recv(t, l.registered)

	cb, res := collect()
	sub, err := s.Subscribe(ctx, fakedevice.URIGetAudioStatus, nil, cb)
	require.NoError(t, err)
	require.NoError(t, recv(t, res).err)

	d.SetVolume(7)
	update := recv(t, res)
	require.NoError(t, update.err)
	assert.JSONEq(t, `{"returnValue":true,"volume":7,"muted":false}`, string(update.payload))

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())

	require.Eventually(t, func() bool {
		for _, r := range d.Requests() {
			if r.Type == wire.TypeUnsubscribe {
				return int(r.ID) == sub.Command().ID()
			}
		}
		return false
	}, waitTimeout, 10*time.Millisecond)

	inFlight, _ := s.PendingCount()
	assert.Zero(t, inFlight)
}

func TestUnsubscribeWhileQueued(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{RequirePairing: true}, false)
	s, l := newSession(t, configFor(t, srv))
	ctx := context.Background()

	cb, res := collect()
	sub, err := s.Subscribe(ctx, fakedevice.URIGetAudioStatus, nil, cb)
	require.NoError(t, err)
	recv(t, l.pairing)
	require.NoError(t, sub.Unsubscribe())

	d.Approve()
	recv(t, l.registered)
	assert.Empty(t, d.RequestsFor(fakedevice.URIGetAudioStatus))
	assert.Empty(t, res)
}

func TestUnsolicitedMessages(t *testing.T) {
	d, srv := startDevice(t, fakedevice.Options{}, false)
	s, l := newSession(t, configFor(t, srv))

	require.NoError(t, s.Connect(context.Background()))
	recv(t, l.registered)

	d.Notify(map[string]any{"event": "input-changed"})
	msg := recv(t, l.unsolicited)
	assert.False(t, msg.HasID())
	assert.JSONEq(t, `{"event":"input-changed"}`, string(msg.Payload))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	_, srv := startDevice(t, fakedevice.Options{}, false)
	s, l := newSession(t, configFor(t, srv))

	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Connect(context.Background()))
	recv(t, l.registered)

	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Disconnect())
	assert.Nil(t, recv(t, l.disconnected))
	assert.Empty(t, l.disconnected)
	assert.Equal(t, StateInitial, s.State())
}

func TestConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	cfg := DefaultConfig("127.0.0.1")
	cfg.Port = addr.Port
	cfg.Secure = false
	cfg.KeepAlive = KeepAliveConfig{}
	s, l := newSession(t, cfg)

	require.NoError(t, s.Connect(context.Background()))
	err = recv(t, l.failed)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, cert.ErrCertificateMismatch))
}

func TestConnectionRefusedAfterPinMismatch(t *testing.T) {
	_, srv := startDevice(t, fakedevice.Options{}, true)

	other, err := cert.GenerateSelfSigned("other-tv", "127.0.0.1")
	require.NoError(t, err)
	cfg := configFor(t, srv)
	cfg.Credentials.SetServerCertificate(cert.EncodeDERPEM(other.Certificate[0]))
	s, l := newSession(t, cfg)

	require.NoError(t, s.Connect(context.Background()))
	assert.ErrorIs(t, recv(t, l.failed), cert.ErrCertificateMismatch)

	// The user clears the pin and the device goes away.
	cfg.Credentials.SetServerCertificate(nil)
	srv.Close()

	require.NoError(t, s.Connect(context.Background()))
	err = recv(t, l.failed)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, cert.ErrCertificateMismatch)
}

func mustCount(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	n, err := testutil.GatherAndCount(reg, name)
	require.NoError(t, err)
	return n
}

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(ev log.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureLogger) messages(dir log.Direction) []*log.MessageEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*log.MessageEvent
	for _, ev := range c.events {
		if ev.Message != nil && ev.Direction == dir {
			out = append(out, ev.Message)
		}
	}
	return out
}

func TestProtocolLog(t *testing.T) {
	_, srv := startDevice(t, fakedevice.Options{}, false)
	cfg := configFor(t, srv)
	plog := &captureLogger{}
	cfg.ProtocolLogger = plog
	cfg.ServiceID = "webOS TV"
	s, l := newSession(t, cfg)
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	recv(t, l.registered)
	cb, res := collect()
	require.NoError(t, s.Send(ctx, fakedevice.URIGetVolume, nil, cb))
	require.NoError(t, recv(t, res).err)

	out := plog.messages(log.DirectionOut)
	require.Len(t, out, 2)
	assert.Equal(t, log.MessageTypeRegister, out[0].Type)
	assert.Equal(t, fakedevice.URIGetVolume, out[1].URI)

	in := plog.messages(log.DirectionIn)
	require.Len(t, in, 2)
	assert.Equal(t, log.MessageTypeRegistered, in[0].Type)
	assert.Equal(t, fakedevice.URIGetVolume, in[1].URI)
	assert.NotNil(t, in[1].Latency)

	plog.mu.Lock()
	defer plog.mu.Unlock()
	for _, ev := range plog.events {
		assert.Equal(t, "webOS TV", ev.ServiceID)
		assert.NotEmpty(t, ev.ConnectionID)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultConfig("10.0.0.5")
	cfg.CommandTimeout = -1
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := New(DefaultConfig("10.0.0.5"))
	require.NoError(t, err)
	assert.Equal(t, "wss://10.0.0.5:3001/", s.URL())
	assert.Equal(t, StateInitial, s.State())
}
