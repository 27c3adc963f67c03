package rendercast_test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendercast/rendercast-go/internal/fakedevice"
	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/device"
	"github.com/rendercast/rendercast-go/pkg/discovery"
	"github.com/rendercast/rendercast-go/pkg/service"
	"github.com/rendercast/rendercast-go/pkg/session"
	"github.com/rendercast/rendercast-go/pkg/ssdp"
	"github.com/rendercast/rendercast-go/pkg/store"
	"github.com/rendercast/rendercast-go/pkg/webos"
	"github.com/rendercast/rendercast-go/pkg/wire"
)

const e2eTimeout = 10 * time.Second

func localConn(t *testing.T) func() (net.PacketConn, error) {
	t.Helper()
	return func() (net.PacketConn, error) {
		return net.ListenPacket("udp4", "127.0.0.1:0")
	}
}

type e2e struct {
	tv    *fakedevice.Device
	mgr   *discovery.Manager
	store *store.MemoryStore
	added chan *device.ConnectableDevice
}

// startE2E runs a fake TV and a manager discovering it over unicast SSDP.
func startE2E(t *testing.T, tvOpts fakedevice.Options) *e2e {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tv := fakedevice.New(tvOpts)
	ep, err := tv.Start("127.0.0.1:0", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { tv.Close() })

	cfg := ssdp.DefaultConfig()
	cfg.GroupAddr = ep.SSDPAddr.String()
	cfg.SearchStagger = []time.Duration{0}
	cfg.ListenSearch = localConn(t)
	cfg.ListenNotify = localConn(t)
	sp, err := ssdp.NewProvider(cfg)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	mgr, err := discovery.NewManager(discovery.ManagerConfig{Store: st})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	opts := webos.DefaultOptions()
	opts.Secure = false
	opts.Port = ep.Port
	opts.ProbeApps = false
	opts.KeepAlive = session.KeepAliveConfig{}
	mgr.RegisterDeviceService(sp, discovery.Filter{ServiceID: webos.ServiceID, Target: tv.ServiceType()}, webos.NewFactory(opts))

	e := &e2e{tv: tv, mgr: mgr, store: st, added: make(chan *device.ConnectableDevice, 4)}
	h := mgr.AddListener(discovery.ListenerFuncs{
		Added: func(d *device.ConnectableDevice) { e.added <- d },
	})
	t.Cleanup(h.Release)

	require.NoError(t, mgr.Start(context.Background()))
	return e
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(e2eTimeout):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

// TestE2E_DiscoverAndSetVolume discovers a TV and issues a volume change
// while registration waits on the user. The command stays queued until the
// TV accepts the pairing and is then sent exactly once.
func TestE2E_DiscoverAndSetVolume(t *testing.T) {
	e := startE2E(t, fakedevice.Options{FriendlyName: "Living Room", Volume: 10, RequirePairing: true})

	d := recv(t, e.added)
	assert.Equal(t, "Living Room", d.FriendlyName())
	assert.Equal(t, "127.0.0.1", d.IPAddress())
	assert.True(t, d.HasCapability(capability.VolumeControlSet))

	svc, ok := d.ServiceByName(webos.ServiceID).(*webos.Service)
	require.True(t, ok)

	ready := make(chan struct{}, 1)
	prompted := make(chan struct{}, 1)
	h := d.AddListener(device.ListenerFuncs{
		Ready:           func(*device.ConnectableDevice) { ready <- struct{}{} },
		PairingRequired: func(*device.ConnectableDevice, service.DeviceService, service.PairingType) { prompted <- struct{}{} },
	})
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), e2eTimeout)
	defer cancel()
	require.NoError(t, d.Connect(ctx))
	recv(t, prompted)

	vc, err := d.VolumeControl()
	require.NoError(t, err)

	var calls atomic.Int32
	done := make(chan error, 2)
	go func() {
		err := vc.SetVolume(ctx, 0.5)
		calls.Add(1)
		done <- err
	}()

	require.Eventually(t, func() bool {
		inFlight, queued := svc.PendingCount()
		return inFlight == 0 && queued == 1
	}, e2eTimeout, 5*time.Millisecond)
	assert.Empty(t, e.tv.RequestsFor(fakedevice.URISetVolume))
	assert.Equal(t, int32(0), calls.Load())

	e.tv.Approve()
	recv(t, ready)
	require.NoError(t, recv(t, done))

	reqs := e.tv.Requests()
	registerAt, setAt := -1, -1
	for i, r := range reqs {
		switch {
		case r.Type == wire.TypeRegister && registerAt < 0:
			registerAt = i
		case r.URI == fakedevice.URISetVolume:
			assert.Equal(t, -1, setAt, "setVolume sent more than once")
			setAt = i
		}
	}
	require.GreaterOrEqual(t, registerAt, 0)
	assert.Greater(t, setAt, registerAt)
	assert.Len(t, e.tv.RequestsFor(fakedevice.URISetVolume), 1)

	select {
	case err := <-done:
		t.Fatalf("second completion: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 50, e.tv.Volume())
	assert.True(t, d.IsReady())

	inFlight, queued := svc.PendingCount()
	assert.Zero(t, inFlight)
	assert.Zero(t, queued)
}

// TestE2E_PairedDeviceIsStored checks that a connected device and its
// client key end up in the device store.
func TestE2E_PairedDeviceIsStored(t *testing.T) {
	e := startE2E(t, fakedevice.Options{FriendlyName: "Bedroom"})

	d := recv(t, e.added)
	ready := make(chan struct{}, 1)
	h := d.AddListener(device.ListenerFuncs{
		Ready: func(*device.ConnectableDevice) { ready <- struct{}{} },
	})
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), e2eTimeout)
	defer cancel()
	require.NoError(t, d.Connect(ctx))
	recv(t, ready)

	require.Eventually(t, func() bool {
		rec, err := e.store.Get(ctx, d.ID())
		if err != nil {
			return false
		}
		svc, ok := rec.ServiceByID(webos.ServiceID)
		return ok && svc.Config.ClientKey == e.tv.ClientKey()
	}, e2eTimeout, 20*time.Millisecond)
}
