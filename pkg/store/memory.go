package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rendercast/rendercast-go/pkg/record"
)

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]record.DeviceRecord
}

var _ DeviceStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[string]record.DeviceRecord)}
}

// Get implements DeviceStore.
func (s *MemoryStore) Get(_ context.Context, id string) (record.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.devices[id]
	if !ok {
		return record.DeviceRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// FindByServiceUUID implements DeviceStore.
func (s *MemoryStore) FindByServiceUUID(_ context.Context, serviceUUID string) (record.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.devices {
		if matchesServiceUUID(rec, serviceUUID) {
			return rec.Clone(), nil
		}
	}
	return record.DeviceRecord{}, ErrNotFound
}

// FindByAddress implements DeviceStore.
func (s *MemoryStore) FindByAddress(_ context.Context, ip string) (record.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *record.DeviceRecord
	for _, rec := range s.devices {
		if rec.IPAddress != ip {
			continue
		}
		if best == nil || rec.LastSeen.After(best.LastSeen) {
			r := rec
			best = &r
		}
	}
	if best == nil {
		return record.DeviceRecord{}, ErrNotFound
	}
	return best.Clone(), nil
}

// Put implements DeviceStore.
func (s *MemoryStore) Put(_ context.Context, rec record.DeviceRecord) error {
	if rec.ID == "" {
		return ErrNoID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.devices[rec.ID]; ok {
		s.devices[rec.ID] = merge(&existing, rec)
	} else {
		s.devices[rec.ID] = merge(nil, rec)
	}
	return nil
}

// Remove implements DeviceStore.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.devices, id)
	s.mu.Unlock()
	return nil
}

// List implements DeviceStore.
func (s *MemoryStore) List(_ context.Context) ([]record.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(), nil
}

// Close implements DeviceStore.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) listLocked() []record.DeviceRecord {
	out := make([]record.DeviceRecord, 0, len(s.devices))
	for _, rec := range s.devices {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) replaceAll(recs []record.DeviceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = make(map[string]record.DeviceRecord, len(recs))
	for _, rec := range recs {
		if rec.ID != "" {
			s.devices[rec.ID] = rec.Clone()
		}
	}
}
