package discovery

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rendercast/rendercast-go/pkg/record"
)

// Default provider timing. A record is dead when it has not been seen for
// DefaultRescanInterval × DefaultRescanAttempts.
const (
	DefaultRescanInterval = 10 * time.Second
	DefaultRescanAttempts = 3
)

// Filter scopes a provider to one protocol.
type Filter struct {
	// ServiceID is the protocol id handed to the service factory.
	ServiceID string

	// Target is the SSDP search target or the mDNS service type.
	Target string

	// RequiredServices must all appear in the device description's service
	// list before a record is reported.
	RequiredServices []string
}

// Key identifies the filter within a provider.
func (f Filter) Key() string {
	return f.ServiceID + "|" + f.Target
}

// ProviderListener receives service records from a provider. Callbacks run
// on provider goroutines and must not block.
type ProviderListener interface {
	OnServiceAdded(p Provider, desc record.ServiceDescription)
	OnServiceUpdated(p Provider, desc record.ServiceDescription)
	OnServiceRemoved(p Provider, desc record.ServiceDescription)
	OnDiscoveryFailed(p Provider, err error)
}

// Provider announces service records for the filters it is given.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	Start(ctx context.Context) error

	// Stop is idempotent.
	Stop() error
	Restart(ctx context.Context) error

	// Rescan runs a search cycle now.
	Rescan()

	// Reset forgets every record, reporting each as removed.
	Reset()

	AddFilter(f Filter)
	RemoveFilter(f Filter)

	// IsEmpty reports whether the provider has no filters.
	IsEmpty() bool

	AddListener(l ProviderListener)
	RemoveListener(l ProviderListener)
}

// ProviderListeners is the listener list shared by provider implementations.
type ProviderListeners struct {
	mu   sync.Mutex
	list []ProviderListener
}

// Add registers l once.
func (ls *ProviderListeners) Add(l ProviderListener) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !slices.Contains(ls.list, l) {
		ls.list = append(ls.list, l)
	}
}

// Remove unregisters l.
func (ls *ProviderListeners) Remove(l ProviderListener) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.list = slices.DeleteFunc(ls.list, func(x ProviderListener) bool { return x == l })
}

func (ls *ProviderListeners) snapshot() []ProviderListener {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return slices.Clone(ls.list)
}

// Added reports a new record to every listener.
func (ls *ProviderListeners) Added(p Provider, desc record.ServiceDescription) {
	for _, l := range ls.snapshot() {
		l.OnServiceAdded(p, desc.Clone())
	}
}

// Updated reports a changed record.
func (ls *ProviderListeners) Updated(p Provider, desc record.ServiceDescription) {
	for _, l := range ls.snapshot() {
		l.OnServiceUpdated(p, desc.Clone())
	}
}

// Removed reports a record that expired or said goodbye.
func (ls *ProviderListeners) Removed(p Provider, desc record.ServiceDescription) {
	for _, l := range ls.snapshot() {
		l.OnServiceRemoved(p, desc.Clone())
	}
}

// Failed reports a provider failure.
func (ls *ProviderListeners) Failed(p Provider, err error) {
	for _, l := range ls.snapshot() {
		l.OnDiscoveryFailed(p, err)
	}
}

// Filters is the filter set shared by provider implementations.
type Filters struct {
	mu   sync.RWMutex
	list []Filter
}

// Add adds f, replacing a filter with the same key.
func (fs *Filters) Add(f Filter) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if i := fs.indexLocked(f.Key()); i >= 0 {
		fs.list[i] = f
		return
	}
	fs.list = append(fs.list, f)
}

// Remove removes the filter with f's key.
func (fs *Filters) Remove(f Filter) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if i := fs.indexLocked(f.Key()); i >= 0 {
		fs.list = slices.Delete(fs.list, i, i+1)
	}
}

// List returns the filters in the order they were added.
func (fs *Filters) List() []Filter {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return slices.Clone(fs.list)
}

// Len returns the number of filters.
func (fs *Filters) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.list)
}

// Match returns the first filter whose target equals target.
func (fs *Filters) Match(target string) (Filter, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	for _, f := range fs.list {
		if f.Target == target {
			return f, true
		}
	}
	return Filter{}, false
}

func (fs *Filters) indexLocked(key string) int {
	return slices.IndexFunc(fs.list, func(f Filter) bool { return f.Key() == key })
}

// HasServices reports whether every required service type is listed.
func (f Filter) HasServices(list []string) bool {
	for _, req := range f.RequiredServices {
		if !slices.Contains(list, req) {
			return false
		}
	}
	return true
}
