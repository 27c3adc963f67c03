package ssdp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/huin/goupnp/httpu"
	"golang.org/x/time/rate"

	"github.com/rendercast/rendercast-go/pkg/discovery"
	"github.com/rendercast/rendercast-go/pkg/record"
)

// Name is the provider name used in logs and metrics.
const Name = "ssdp"

// Provider discovers devices with SSDP.
type Provider struct {
	cfg       Config
	group     *net.UDPAddr
	fetcher   Fetcher
	limiter   *rate.Limiter
	now       func() time.Time
	logger    *slog.Logger
	filters   discovery.Filters
	listeners discovery.ProviderListeners

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	search   net.PacketConn
	notify   net.PacketConn
	rescanCh chan struct{}
	pending  map[string]*record.ServiceDescription
	found    map[string]*record.ServiceDescription

	wg sync.WaitGroup
}

var _ discovery.Provider = (*Provider)(nil)

// NewProvider creates a provider. Zero fields of cfg take their defaults.
func NewProvider(cfg Config) (*Provider, error) {
	def := DefaultConfig()
	if cfg.GroupAddr == "" {
		cfg.GroupAddr = def.GroupAddr
	}
	if cfg.RescanInterval == 0 {
		cfg.RescanInterval = def.RescanInterval
	}
	if cfg.RescanAttempts == 0 {
		cfg.RescanAttempts = def.RescanAttempts
	}
	if cfg.SearchStagger == nil {
		cfg.SearchStagger = def.SearchStagger
	}
	if cfg.MX == 0 {
		cfg.MX = def.MX
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.FetchRate == 0 {
		cfg.FetchRate = def.FetchRate
	}
	if cfg.FetchBurst == 0 {
		cfg.FetchBurst = def.FetchBurst
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	group, _ := net.ResolveUDPAddr("udp4", cfg.GroupAddr)

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		cfg:      cfg,
		group:    group,
		fetcher:  cfg.fetcher(),
		limiter:  rate.NewLimiter(cfg.FetchRate, cfg.FetchBurst),
		now:      now,
		logger:   logger,
		rescanCh: make(chan struct{}, 1),
		pending:  make(map[string]*record.ServiceDescription),
		found:    make(map[string]*record.ServiceDescription),
	}, nil
}

// Name implements discovery.Provider.
func (p *Provider) Name() string { return Name }

// Start opens the sockets and starts searching. Starting a running
// provider does nothing.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	search, err := p.cfg.listenSearch()
	if err != nil {
		return fmt.Errorf("ssdp: open search socket: %w", err)
	}
	notify, err := p.cfg.listenNotify()
	if err != nil {
		search.Close()
		return fmt.Errorf("ssdp: join %s: %w", p.cfg.GroupAddr, err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.running = true
	p.cancel = cancel
	p.search = search
	p.notify = notify

	p.wg.Add(3)
	go p.searchLoop(loopCtx)
	go p.responseLoop(loopCtx, search)
	go p.notifyLoop(loopCtx, notify)

	p.logger.Debug("ssdp: started", "group", p.cfg.GroupAddr, "local", search.LocalAddr())
	return nil
}

// Stop closes the sockets and waits for the loops. Records are kept.
func (p *Provider) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	err := errors.Join(p.search.Close(), p.notify.Close())
	p.search, p.notify = nil, nil
	clear(p.pending)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug("ssdp: stopped")
	return err
}

// Restart stops and starts the provider.
func (p *Provider) Restart(ctx context.Context) error {
	if err := p.Stop(); err != nil {
		p.logger.Debug("ssdp: stop during restart", "error", err)
	}
	return p.Start(ctx)
}

// Rescan runs a search cycle now.
func (p *Provider) Rescan() {
	select {
	case p.rescanCh <- struct{}{}:
	default:
	}
}

// Reset forgets every record and reports the found ones as removed.
func (p *Provider) Reset() {
	p.mu.Lock()
	removed := make([]record.ServiceDescription, 0, len(p.found))
	for _, desc := range p.found {
		removed = append(removed, *desc)
	}
	clear(p.found)
	clear(p.pending)
	p.mu.Unlock()

	for _, desc := range removed {
		p.listeners.Removed(p, desc)
	}
}

func (p *Provider) AddFilter(f discovery.Filter)    { p.filters.Add(f) }
func (p *Provider) RemoveFilter(f discovery.Filter) { p.filters.Remove(f) }
func (p *Provider) IsEmpty() bool                   { return p.filters.Len() == 0 }

func (p *Provider) AddListener(l discovery.ProviderListener)    { p.listeners.Add(l) }
func (p *Provider) RemoveListener(l discovery.ProviderListener) { p.listeners.Remove(l) }

// Found returns the records that passed their description fetch.
func (p *Provider) Found() []record.ServiceDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]record.ServiceDescription, 0, len(p.found))
	for _, desc := range p.found {
		out = append(out, desc.Clone())
	}
	return out
}

func (p *Provider) searchLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.RescanInterval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		case <-p.rescanCh:
			p.cycle(ctx)
		}
	}
}

// cycle evicts stale records and then searches for every filter.
func (p *Provider) cycle(ctx context.Context) {
	p.evictStale()

	filters := p.filters.List()
	if len(filters) == 0 {
		return
	}
	for _, delay := range p.cfg.SearchStagger {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		for _, f := range filters {
			p.sendSearch(f.Target)
		}
	}
}

func (p *Provider) sendSearch(target string) {
	p.mu.Lock()
	conn := p.search
	p.mu.Unlock()
	if conn == nil {
		return
	}
	msg := searchRequest(p.cfg.GroupAddr, target, p.cfg.MX)
	if _, err := conn.WriteTo(msg, p.group); err != nil {
		p.logger.Debug("ssdp: search send failed", "target", target, "error", err)
	}
}

// evictStale removes found records older than the TTL. Each removal is
// reported exactly once because the record leaves the map under the lock.
func (p *Provider) evictStale() {
	ttl := p.cfg.TTL()
	now := p.now()

	p.mu.Lock()
	var stale []record.ServiceDescription
	for id, desc := range p.found {
		if now.Sub(desc.LastDetection) > ttl {
			stale = append(stale, *desc)
			delete(p.found, id)
		}
	}
	p.mu.Unlock()

	for _, desc := range stale {
		p.logger.Debug("ssdp: record expired", "uuid", desc.UUID, "address", desc.IPAddress)
		p.cfg.Metrics.ProviderEvent(Name, "expired")
		p.listeners.Removed(p, desc)
	}
}

func (p *Provider) responseLoop(ctx context.Context, conn net.PacketConn) {
	defer p.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			p.readFailed(ctx, "search", err)
			return
		}
		h, err := parseResponse(buf[:n])
		if err != nil {
			p.logger.Debug("ssdp: malformed response dropped", "from", from, "error", err)
			continue
		}
		p.handle(ctx, announcementFrom(h, h.Get("ST"), from.String()))
	}
}

func (p *Provider) notifyLoop(ctx context.Context, conn net.PacketConn) {
	defer p.wg.Done()
	srv := &httpu.Server{
		Addr:            p.cfg.GroupAddr,
		Multicast:       true,
		Interface:       p.cfg.Interface,
		MaxMessageBytes: maxDatagram,
		Handler:         httpu.HandlerFunc(func(r *http.Request) {
			if r.Method != "NOTIFY" {
				return
			}
			a := announcementFrom(r.Header, r.Header.Get("NT"), r.RemoteAddr)
			switch r.Header.Get("NTS") {
			case ntsByeBye:
				p.byebye(a)
			case ntsAlive:
				p.handle(ctx, a)
			}
		}),
	}
	if err := srv.Serve(conn); err != nil {
		p.readFailed(ctx, "notify", err)
	}
}

func (p *Provider) readFailed(ctx context.Context, loop string, err error) {
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return
	}
	p.logger.Warn("ssdp: listener stopped", "loop", loop, "error", err)
	p.cfg.Metrics.ProviderError(Name)
	p.listeners.Failed(p, fmt.Errorf("ssdp: %s listener: %w", loop, err))
}

func announcementFrom(h http.Header, target, remote string) announcement {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	a := announcement{
		target:   target,
		location: h.Get("LOCATION"),
		host:     host,
		headers:  h,
	}
	a.uuid, _ = uuidFromUSN(h.Get("USN"))
	if a.host == "" && a.location != "" {
		if u, err := url.Parse(a.location); err == nil {
			a.host = u.Hostname()
		}
	}
	return a
}

func (p *Provider) byebye(a announcement) {
	if a.uuid == "" {
		return
	}
	p.mu.Lock()
	desc, ok := p.found[a.uuid]
	if ok {
		delete(p.found, a.uuid)
	}
	delete(p.pending, a.uuid)
	p.mu.Unlock()

	if ok {
		p.logger.Debug("ssdp: byebye", "uuid", a.uuid)
		p.listeners.Removed(p, *desc)
	}
}

// handle processes a search response or alive announcement.
func (p *Provider) handle(ctx context.Context, a announcement) {
	f, ok := p.filters.Match(a.target)
	if !ok {
		return
	}
	if a.uuid == "" || a.location == "" {
		p.logger.Debug("ssdp: announcement without usn or location dropped", "from", a.host)
		return
	}
	now := p.now()

	p.mu.Lock()
	if desc, ok := p.found[a.uuid]; ok {
		desc.LastDetection = now
		changed := desc.Location != a.location || desc.IPAddress != a.host ||
			!sameHeaders(http.Header(desc.ResponseHeaders), a.headers)
		if changed {
			desc.Location = a.location
			desc.IPAddress = a.host
			desc.ResponseHeaders = cloneHeader(a.headers)
		}
		updated := desc.Clone()
		p.mu.Unlock()
		if changed {
			p.listeners.Updated(p, updated)
		}
		return
	}
	if _, ok := p.pending[a.uuid]; ok || !p.running {
		p.mu.Unlock()
		return
	}
	desc := &record.ServiceDescription{
		IPAddress:       a.host,
		ServiceID:       f.ServiceID,
		Filter:          f.Target,
		UUID:            a.uuid,
		Location:        a.location,
		LastDetection:   now,
		ResponseHeaders: cloneHeader(a.headers),
	}
	p.pending[a.uuid] = desc
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Debug("ssdp: new record pending", "uuid", a.uuid, "location", a.location)
	go p.fetch(ctx, desc, f)
}

// fetch loads the description of a pending record and promotes it.
func (p *Provider) fetch(ctx context.Context, desc *record.ServiceDescription, f discovery.Filter) {
	defer p.wg.Done()

	info, err := p.load(ctx, desc.Location)

	p.mu.Lock()
	if p.pending[desc.UUID] != desc {
		// Reset, stopped or byebye while fetching.
		p.mu.Unlock()
		return
	}
	delete(p.pending, desc.UUID)
	if err != nil {
		p.mu.Unlock()
		p.logger.Debug("ssdp: description fetch failed", "uuid", desc.UUID, "location", desc.Location, "error", err)
		p.cfg.Metrics.ProviderError(Name)
		return
	}
	if !f.HasServices(info.ServiceTypes) {
		p.mu.Unlock()
		p.logger.Debug("ssdp: required services missing", "uuid", desc.UUID, "required", f.RequiredServices)
		return
	}
	desc.FriendlyName = info.FriendlyName
	desc.Manufacturer = info.Manufacturer
	desc.ModelName = info.ModelName
	desc.ModelNumber = info.ModelNumber
	desc.ServiceList = info.ServiceTypes
	p.found[desc.UUID] = desc
	added := desc.Clone()
	p.mu.Unlock()

	p.logger.Debug("ssdp: record found", "uuid", added.UUID, "name", added.FriendlyName, "address", added.IPAddress)
	p.listeners.Added(p, added)
}

func (p *Provider) load(ctx context.Context, location string) (Description, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Description{}, err
	}
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()
	return p.fetcher.Fetch(fctx, location)
}

func cloneHeader(h http.Header) map[string][]string {
	return map[string][]string(h.Clone())
}
