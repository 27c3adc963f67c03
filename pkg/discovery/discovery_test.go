package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendercast/rendercast-go/pkg/device"
	"github.com/rendercast/rendercast-go/pkg/record"
)

func TestFilters(t *testing.T) {
	var fs Filters
	a := Filter{ServiceID: "webOS TV", Target: "urn:lge-com:service:webos-second-screen:1"}
	b := Filter{ServiceID: "Chromecast", Target: "_googlecast._tcp"}

	fs.Add(a)
	fs.Add(b)
	fs.Add(Filter{ServiceID: a.ServiceID, Target: a.Target, RequiredServices: []string{"x"}})
	require.Equal(t, 2, fs.Len())
	assert.Equal(t, []string{"x"}, fs.List()[0].RequiredServices)

	got, ok := fs.Match("_googlecast._tcp")
	require.True(t, ok)
	assert.Equal(t, "Chromecast", got.ServiceID)
	_, ok = fs.Match("ssdp:all")
	assert.False(t, ok)

	fs.Remove(a)
	assert.Equal(t, []Filter{b}, fs.List())
}

func TestFilterHasServices(t *testing.T) {
	f := Filter{RequiredServices: []string{"urn:a:1", "urn:b:1"}}
	assert.True(t, f.HasServices([]string{"urn:b:1", "urn:a:1", "urn:c:1"}))
	assert.False(t, f.HasServices([]string{"urn:a:1"}))
	assert.True(t, Filter{}.HasServices(nil))
}

// collector records provider events.
type collector struct {
	added   chan record.ServiceDescription
	updated chan record.ServiceDescription
	removed chan record.ServiceDescription
	failed  chan error
}

func newCollector() *collector {
	return &collector{
		added:   make(chan record.ServiceDescription, 16),
		updated: make(chan record.ServiceDescription, 16),
		removed: make(chan record.ServiceDescription, 16),
		failed:  make(chan error, 16),
	}
}

func (c *collector) OnServiceAdded(_ Provider, d record.ServiceDescription)   { c.added <- d }
func (c *collector) OnServiceUpdated(_ Provider, d record.ServiceDescription) { c.updated <- d }
func (c *collector) OnServiceRemoved(_ Provider, d record.ServiceDescription) { c.removed <- d }
func (c *collector) OnDiscoveryFailed(_ Provider, err error)                  { c.failed <- err }

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func TestProviderListenersClone(t *testing.T) {
	var ls ProviderListeners
	c := newCollector()
	ls.Add(c)
	ls.Add(c)

	desc := record.ServiceDescription{UUID: "u", ServiceList: []string{"a"}}
	ls.Added(nil, desc)
	got := recv(t, c.added)
	got.ServiceList[0] = "changed"
	assert.Equal(t, "a", desc.ServiceList[0])
	assert.Len(t, c.added, 0)

	ls.Remove(c)
	ls.Removed(nil, desc)
	assert.Len(t, c.removed, 0)
}

// fakeBrowser hands the test the channels of each browse.
type fakeBrowser struct {
	mu      sync.Mutex
	started chan browse
	err     error
}

type browse struct {
	ctx     context.Context
	service string
	entries chan<- *ServiceEntry
	removed chan<- *ServiceEntry
}

func (b *fakeBrowser) Browse(ctx context.Context, service string, entries, removed chan<- *ServiceEntry) error {
	b.mu.Lock()
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return err
	}
	b.started <- browse{ctx: ctx, service: service, entries: entries, removed: removed}
	<-ctx.Done()
	return ctx.Err()
}

func (br browse) send(t *testing.T, ch chan<- *ServiceEntry, e *ServiceEntry) {
	t.Helper()
	select {
	case ch <- e:
	case <-time.After(5 * time.Second):
		t.Fatal("browse consumer not reading")
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var castFilter = Filter{ServiceID: "Chromecast", Target: "_googlecast._tcp"}

func newMDNS(t *testing.T) (*MDNSProvider, *fakeBrowser, *collector, *testClock) {
	t.Helper()
	fb := &fakeBrowser{started: make(chan browse, 8)}
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	p, err := NewMDNSProvider(MDNSConfig{
		RescanInterval: time.Hour,
		RescanAttempts: 2,
		Browse:         fb.Browse,
		Clock:          clock.Now,
	})
	require.NoError(t, err)
	c := newCollector()
	p.AddListener(c)
	p.AddFilter(castFilter)
	t.Cleanup(func() { p.Stop() })
	return p, fb, c, clock
}

func castEntry(addrs ...string) *ServiceEntry {
	return &ServiceEntry{
		Instance: "Chromecast-abc",
		Host:     "abc.local.",
		Port:     8009,
		Text:     []string{"id=cast-uuid", "fn=Kitchen", "md=Chromecast Ultra", "flag"},
		Addrs:    addrs,
	}
}

func TestMDNSProviderAddsAndMerges(t *testing.T) {
	p, fb, c, _ := newMDNS(t)
	require.NoError(t, p.Start(context.Background()))
	br := recv(t, fb.started)
	assert.Equal(t, "_googlecast._tcp", br.service)

	br.send(t, br.entries, castEntry("fe80::1", "192.168.1.30"))
	desc := recv(t, c.added)
	assert.Equal(t, "cast-uuid", desc.UUID)
	assert.Equal(t, "Kitchen", desc.FriendlyName)
	assert.Equal(t, "Chromecast Ultra", desc.ModelName)
	assert.Equal(t, "192.168.1.30", desc.IPAddress)
	assert.Equal(t, 8009, desc.Port)
	assert.Equal(t, "Chromecast", desc.ServiceID)
	assert.Equal(t, "", desc.Metadata["flag"])

	// The same instance on another interface only merges addresses.
	br.send(t, br.entries, castEntry("192.168.2.30"))
	br.send(t, br.removed, castEntry("192.168.2.30"))
	br.send(t, br.removed, castEntry("192.168.1.30"))
	desc = recv(t, c.updated)
	assert.Equal(t, "fe80::1", desc.IPAddress)

	br.send(t, br.removed, castEntry("fe80::1"))
	assert.Equal(t, "cast-uuid", recv(t, c.removed).UUID)
	assert.Empty(t, p.Found())
}

func TestMDNSProviderFallsBackToInstanceName(t *testing.T) {
	p, fb, c, _ := newMDNS(t)
	require.NoError(t, p.Start(context.Background()))
	br := recv(t, fb.started)

	br.send(t, br.entries, &ServiceEntry{Instance: "Bedroom TV", Port: 8009, Addrs: []string{"10.0.0.5"}})
	desc := recv(t, c.added)
	assert.Equal(t, "Bedroom TV", desc.UUID)
	assert.Equal(t, "Bedroom TV", desc.FriendlyName)
	assert.Nil(t, desc.Metadata)

	// Entries without addresses are not usable.
	br.send(t, br.entries, &ServiceEntry{Instance: "Ghost"})
	assert.Len(t, p.Found(), 1)
}

func TestMDNSProviderEvictsStaleRecordOnce(t *testing.T) {
	p, fb, c, clock := newMDNS(t)
	require.NoError(t, p.Start(context.Background()))
	br := recv(t, fb.started)
	br.send(t, br.entries, castEntry("192.168.1.30"))
	recv(t, c.added)

	clock.Advance(2*time.Hour + time.Second)
	p.Rescan()
	assert.Equal(t, "cast-uuid", recv(t, c.removed).UUID)

	// The rescan restarted the browse; the old one is cancelled.
	recv(t, fb.started)
	<-br.ctx.Done()

	p.Rescan()
	br = recv(t, fb.started)
	assert.Len(t, c.removed, 0)

	// A later announcement is a fresh record.
	br.send(t, br.entries, castEntry("192.168.1.30"))
	assert.Equal(t, "cast-uuid", recv(t, c.added).UUID)
}

func TestMDNSProviderBrowseFailure(t *testing.T) {
	fb := &fakeBrowser{started: make(chan browse, 8), err: errors.New("no multicast interface")}
	p, err := NewMDNSProvider(MDNSConfig{Browse: fb.Browse})
	require.NoError(t, err)
	c := newCollector()
	p.AddListener(c)
	p.AddFilter(castFilter)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	assert.EqualError(t, recv(t, c.failed), "no multicast interface")
}

func TestMDNSProviderReset(t *testing.T) {
	p, fb, c, _ := newMDNS(t)
	require.NoError(t, p.Start(context.Background()))
	br := recv(t, fb.started)
	br.send(t, br.entries, castEntry("192.168.1.30"))
	recv(t, c.added)

	p.Reset()
	assert.Equal(t, "cast-uuid", recv(t, c.removed).UUID)
	assert.Empty(t, p.Found())

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	<-br.ctx.Done()
}

func TestNewMDNSProviderValidates(t *testing.T) {
	_, err := NewMDNSProvider(MDNSConfig{RescanAttempts: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewMDNSProvider(MDNSConfig{})
	require.NoError(t, err)
	assert.Equal(t, MDNSName, p.Name())
	assert.Equal(t, DefaultDomain, p.cfg.Domain)
	assert.True(t, p.IsEmpty())
}

func TestAddressHelpers(t *testing.T) {
	addrs := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "fe80::1"})
	assert.Equal(t, []string{"10.0.0.1", "fe80::1"}, addrs)
	assert.Equal(t, []string{"fe80::1"}, removeAddresses(addrs, []string{"10.0.0.1"}))
	assert.Nil(t, removeAddresses(addrs, nil))

	assert.Equal(t, "10.0.0.1", preferredAddress([]string{"fe80::1", "10.0.0.1"}))
	assert.Equal(t, "fe80::1", preferredAddress([]string{"fe80::1"}))
	assert.Equal(t, "", preferredAddress(nil))

	assert.Equal(t, map[string]string{"id": "x", "fn": "a=b", "flag": ""}, parseTXT([]string{"id=x", "fn=a=b", "flag", "=skip"}))
}

func TestRegistryRekeysOnAddressChange(t *testing.T) {
	r := newRegistry()
	desc := record.ServiceDescription{UUID: "svc-1", IPAddress: "10.0.0.1", FriendlyName: "TV"}
	dev := device.New(desc)
	t.Cleanup(dev.Close)

	e := r.add(deviceKey(desc), dev)
	r.bind(desc.UUID, e)

	desc.IPAddress = "10.0.0.2"
	assert.Same(t, e, r.lookup(desc))
	assert.Equal(t, "10.0.0.2|TV", e.key)
	assert.Same(t, e, r.byKey["10.0.0.2|TV"])

	// A second service of the same device is found by identity.
	assert.Same(t, e, r.lookup(record.ServiceDescription{UUID: "svc-2", IPAddress: "10.0.0.2", FriendlyName: "TV"}))

	r.remove(e)
	assert.Nil(t, r.lookup(desc))
	tracked, surfaced := r.counts()
	assert.Zero(t, tracked)
	assert.Zero(t, surfaced)
}
