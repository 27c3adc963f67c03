package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/rendercast/rendercast-go/pkg/metrics"
	"github.com/rendercast/rendercast-go/pkg/record"
)

// MDNSName is the mDNS provider name used in logs and metrics.
const MDNSName = "mdns"

// DefaultDomain is the DNS-SD browse domain.
const DefaultDomain = "local."

// TXT keys read from announcements.
const (
	TXTKeyID           = "id"
	TXTKeyFriendlyName = "fn"
	TXTKeyModel        = "md"
)

// ErrInvalidConfig is returned for an unusable provider configuration.
var ErrInvalidConfig = errors.New("invalid discovery configuration")

// ServiceEntry is a DNS-SD service instance as reported by a browse.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// BrowseFunc browses service in the background until ctx is done. Resolved
// instances are sent on entries and expired ones on removed.
type BrowseFunc func(ctx context.Context, service string, entries, removed chan<- *ServiceEntry) error

// MDNSConfig configures an MDNSProvider.
type MDNSConfig struct {
	// Domain is the browse domain. Default: "local.".
	Domain string

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string

	RescanInterval time.Duration
	RescanAttempts int

	// Browse replaces the zeroconf browser. Set this in tests.
	Browse BrowseFunc

	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	Metrics *metrics.Collectors
}

// DefaultMDNSConfig returns the default mDNS configuration.
func DefaultMDNSConfig() MDNSConfig {
	return MDNSConfig{
		Domain:         DefaultDomain,
		RescanInterval: DefaultRescanInterval,
		RescanAttempts: DefaultRescanAttempts,
	}
}

// mdnsRecord is a found instance with the addresses seen on every interface.
type mdnsRecord struct {
	desc  record.ServiceDescription
	addrs []string
}

// MDNSProvider discovers devices with DNS-SD over multicast DNS.
type MDNSProvider struct {
	cfg       MDNSConfig
	browse    BrowseFunc
	now       func() time.Time
	logger    *slog.Logger
	filters   Filters
	listeners ProviderListeners

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	browsing context.CancelFunc
	rescanCh chan struct{}
	found    map[string]*mdnsRecord // keyed by instance name

	wg sync.WaitGroup
}

var _ Provider = (*MDNSProvider)(nil)

// NewMDNSProvider creates an mDNS provider.
func NewMDNSProvider(cfg MDNSConfig) (*MDNSProvider, error) {
	def := DefaultMDNSConfig()
	if cfg.Domain == "" {
		cfg.Domain = def.Domain
	}
	if cfg.RescanInterval == 0 {
		cfg.RescanInterval = def.RescanInterval
	}
	if cfg.RescanAttempts == 0 {
		cfg.RescanAttempts = def.RescanAttempts
	}
	if cfg.RescanInterval < 0 || cfg.RescanAttempts < 0 {
		return nil, ErrInvalidConfig
	}

	p := &MDNSProvider{
		cfg:      cfg,
		browse:   cfg.Browse,
		now:      cfg.Clock,
		logger:   cfg.Logger,
		rescanCh: make(chan struct{}, 1),
		found:    make(map[string]*mdnsRecord),
	}
	if p.browse == nil {
		p.browse = zeroconfBrowse(cfg.Domain, browserOptions(cfg.Interface))
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p, nil
}

// Name implements Provider.
func (p *MDNSProvider) Name() string { return MDNSName }

// Start begins browsing every filter's service type.
func (p *MDNSProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.running = true
	p.cancel = cancel

	p.wg.Add(1)
	go p.loop(loopCtx)
	return nil
}

// Stop ends browsing. Records are kept.
func (p *MDNSProvider) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Restart stops and starts the provider.
func (p *MDNSProvider) Restart(ctx context.Context) error {
	_ = p.Stop()
	return p.Start(ctx)
}

// Rescan restarts the browses now.
func (p *MDNSProvider) Rescan() {
	select {
	case p.rescanCh <- struct{}{}:
	default:
	}
}

// Reset forgets every record and reports each as removed.
func (p *MDNSProvider) Reset() {
	p.mu.Lock()
	removed := make([]record.ServiceDescription, 0, len(p.found))
	for _, r := range p.found {
		removed = append(removed, r.desc)
	}
	clear(p.found)
	p.mu.Unlock()

	for _, desc := range removed {
		p.listeners.Removed(p, desc)
	}
}

// AddFilter adds a service type. A running provider browses it on the
// next cycle, which is triggered immediately.
func (p *MDNSProvider) AddFilter(f Filter) {
	p.filters.Add(f)
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if running {
		p.Rescan()
	}
}

func (p *MDNSProvider) RemoveFilter(f Filter) { p.filters.Remove(f) }
func (p *MDNSProvider) IsEmpty() bool         { return p.filters.Len() == 0 }

func (p *MDNSProvider) AddListener(l ProviderListener)    { p.listeners.Add(l) }
func (p *MDNSProvider) RemoveListener(l ProviderListener) { p.listeners.Remove(l) }

// Found returns the known records.
func (p *MDNSProvider) Found() []record.ServiceDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]record.ServiceDescription, 0, len(p.found))
	for _, r := range p.found {
		out = append(out, r.desc.Clone())
	}
	return out
}

func (p *MDNSProvider) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.RescanInterval)
	defer ticker.Stop()

	var browses sync.WaitGroup
	defer browses.Wait()

	p.cycle(ctx, &browses)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx, &browses)
		case <-p.rescanCh:
			p.cycle(ctx, &browses)
		}
	}
}

// cycle evicts stale records and restarts one browse per filter. A fresh
// browse re-reports every live instance, which refreshes its detection time.
func (p *MDNSProvider) cycle(ctx context.Context, browses *sync.WaitGroup) {
	p.evictStale()

	p.mu.Lock()
	if p.browsing != nil {
		p.browsing()
	}
	bctx, cancel := context.WithCancel(ctx)
	p.browsing = cancel
	p.mu.Unlock()

	for _, f := range p.filters.List() {
		entries := make(chan *ServiceEntry)
		removed := make(chan *ServiceEntry)

		browses.Add(2)
		go func() {
			defer browses.Done()
			p.aggregate(bctx, f, entries, removed)
		}()
		go func() {
			defer browses.Done()
			if err := p.browse(bctx, f.Target, entries, removed); err != nil && bctx.Err() == nil {
				p.logger.Warn("mdns: browse failed", "service", f.Target, "error", err)
				p.cfg.Metrics.ProviderError(MDNSName)
				p.listeners.Failed(p, err)
			}
		}()
	}
}

// aggregate folds browse results into the record set. Services are
// aggregated by instance name: addresses from multiple interfaces are
// combined into a single record.
func (p *MDNSProvider) aggregate(ctx context.Context, f Filter, entries, removed <-chan *ServiceEntry) {
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			p.seen(f, entry)
		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			p.gone(entry)
		case <-ctx.Done():
			return
		}
	}
}

func (p *MDNSProvider) seen(f Filter, entry *ServiceEntry) {
	if entry == nil || entry.Instance == "" || len(entry.Addrs) == 0 {
		return
	}
	now := p.now()

	p.mu.Lock()
	if r, ok := p.found[entry.Instance]; ok {
		r.addrs = mergeAddresses(r.addrs, entry.Addrs)
		r.desc.LastDetection = now
		changed := r.desc.Port != int(entry.Port) || !slices.Contains(r.addrs, r.desc.IPAddress)
		if changed {
			r.desc.Port = int(entry.Port)
			r.desc.IPAddress = preferredAddress(r.addrs)
		}
		updated := r.desc.Clone()
		p.mu.Unlock()
		if changed {
			p.listeners.Updated(p, updated)
		}
		return
	}

	r := &mdnsRecord{desc: entryToDescription(f, entry, now), addrs: slices.Clone(entry.Addrs)}
	p.found[entry.Instance] = r
	added := r.desc.Clone()
	p.mu.Unlock()

	p.logger.Debug("mdns: record found", "instance", entry.Instance, "address", added.IPAddress)
	p.listeners.Added(p, added)
}

func (p *MDNSProvider) gone(entry *ServiceEntry) {
	if entry == nil {
		return
	}
	p.mu.Lock()
	r, ok := p.found[entry.Instance]
	if !ok {
		p.mu.Unlock()
		return
	}
	r.addrs = removeAddresses(r.addrs, entry.Addrs)
	if len(r.addrs) > 0 {
		if !slices.Contains(r.addrs, r.desc.IPAddress) {
			r.desc.IPAddress = preferredAddress(r.addrs)
			updated := r.desc.Clone()
			p.mu.Unlock()
			p.listeners.Updated(p, updated)
			return
		}
		p.mu.Unlock()
		return
	}
	delete(p.found, entry.Instance)
	desc := r.desc
	p.mu.Unlock()

	p.logger.Debug("mdns: record removed", "instance", entry.Instance)
	p.listeners.Removed(p, desc)
}

func (p *MDNSProvider) evictStale() {
	ttl := p.cfg.RescanInterval * time.Duration(p.cfg.RescanAttempts)
	now := p.now()

	p.mu.Lock()
	var stale []record.ServiceDescription
	for name, r := range p.found {
		if now.Sub(r.desc.LastDetection) > ttl {
			stale = append(stale, r.desc)
			delete(p.found, name)
		}
	}
	p.mu.Unlock()

	for _, desc := range stale {
		p.cfg.Metrics.ProviderEvent(MDNSName, "expired")
		p.listeners.Removed(p, desc)
	}
}

// entryToDescription converts a browse entry into a service record.
func entryToDescription(f Filter, entry *ServiceEntry, now time.Time) record.ServiceDescription {
	txt := parseTXT(entry.Text)
	desc := record.ServiceDescription{
		IPAddress:     preferredAddress(entry.Addrs),
		Port:          int(entry.Port),
		ServiceID:     f.ServiceID,
		Filter:        f.Target,
		UUID:          txt[TXTKeyID],
		FriendlyName:  txt[TXTKeyFriendlyName],
		ModelName:     txt[TXTKeyModel],
		LastDetection: now,
	}
	if desc.UUID == "" {
		desc.UUID = entry.Instance
	}
	if desc.FriendlyName == "" {
		desc.FriendlyName = entry.Instance
	}
	if len(txt) > 0 {
		desc.Metadata = txt
	}
	return desc
}

// parseTXT parses "key=value" strings. A key without value maps to "".
func parseTXT(strs []string) map[string]string {
	txt := make(map[string]string, len(strs))
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// preferredAddress returns the first IPv4 address, else the first address.
func preferredAddress(addrs []string) string {
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	if len(addrs) > 0 {
		return addrs[0]
	}
	return ""
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, add []string) []string {
	for _, addr := range add {
		if !slices.Contains(existing, addr) {
			existing = append(existing, addr)
		}
	}
	return existing
}

// removeAddresses drops the given addresses. An entry without addresses
// removes them all.
func removeAddresses(addresses, drop []string) []string {
	if len(drop) == 0 {
		return nil
	}
	return slices.DeleteFunc(slices.Clone(addresses), func(a string) bool {
		return slices.Contains(drop, a)
	})
}

// browserOptions returns zeroconf client options for iface.
func browserOptions(iface string) []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if iface != "" {
		if ifi, err := net.InterfaceByName(iface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*ifi}))
		}
	}
	return opts
}

// zeroconfBrowse returns a BrowseFunc backed by zeroconf.
func zeroconfBrowse(domain string, opts []zeroconf.ClientOption) BrowseFunc {
	return func(ctx context.Context, service string, entries, removed chan<- *ServiceEntry) error {
		zEntries := make(chan *zeroconf.ServiceEntry)
		zRemoved := make(chan *zeroconf.ServiceEntry)
		go forwardEntries(ctx, zEntries, entries)
		go forwardEntries(ctx, zRemoved, removed)
		return zeroconf.Browse(ctx, service, domain, zEntries, zRemoved, opts...)
	}
}

func forwardEntries(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- *ServiceEntry) {
	for {
		select {
		case e, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- fromZeroconf(e):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func fromZeroconf(e *zeroconf.ServiceEntry) *ServiceEntry {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &ServiceEntry{
		Instance: e.Instance,
		Host:     e.HostName,
		Port:     uint16(e.Port),
		Text:     e.Text,
		Addrs:    addrs,
	}
}
