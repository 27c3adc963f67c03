package discovery

import (
	"cmp"
	"slices"

	"github.com/rendercast/rendercast-go/pkg/device"
	"github.com/rendercast/rendercast-go/pkg/record"
)

// deviceKey identifies a physical device. One device announces several
// service UUIDs, one per protocol, so the UUID alone cannot be the key.
func deviceKey(desc record.ServiceDescription) string {
	return desc.IPAddress + "|" + desc.FriendlyName
}

// entry is a tracked device.
type entry struct {
	key      string
	dev      *device.ConnectableDevice
	handle   device.ListenerHandle
	surfaced bool
}

// registry holds the tracked devices. It is not safe for concurrent use;
// the manager guards it with its mutex.
type registry struct {
	byKey  map[string]*entry
	byUUID map[string]*entry // service UUID → owning device
}

func newRegistry() *registry {
	return &registry{
		byKey:  make(map[string]*entry),
		byUUID: make(map[string]*entry),
	}
}

// lookup finds the device owning desc, first by service UUID and then by
// physical identity. A device found by UUID under an outdated key (the
// address or name changed) is re-keyed if the new key is free.
func (r *registry) lookup(desc record.ServiceDescription) *entry {
	key := deviceKey(desc)
	if e, ok := r.byUUID[desc.UUID]; ok && desc.UUID != "" {
		if e.key != key {
			if _, taken := r.byKey[key]; !taken {
				delete(r.byKey, e.key)
				e.key = key
				r.byKey[key] = e
			}
		}
		return e
	}
	return r.byKey[deviceKey(desc)]
}

func (r *registry) add(key string, dev *device.ConnectableDevice) *entry {
	e := &entry{key: key, dev: dev}
	r.byKey[key] = e
	return e
}

func (r *registry) bind(serviceUUID string, e *entry) {
	if serviceUUID != "" {
		r.byUUID[serviceUUID] = e
	}
}

func (r *registry) unbind(serviceUUID string) {
	delete(r.byUUID, serviceUUID)
}

func (r *registry) remove(e *entry) {
	delete(r.byKey, e.key)
	for id, owner := range r.byUUID {
		if owner == e {
			delete(r.byUUID, id)
		}
	}
}

// find returns the entry holding dev.
func (r *registry) find(dev *device.ConnectableDevice) *entry {
	for _, e := range r.byKey {
		if e.dev == dev {
			return e
		}
	}
	return nil
}

// entries returns every entry ordered by device id.
func (r *registry) entries() []*entry {
	out := make([]*entry, 0, len(r.byKey))
	for _, e := range r.byKey {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *entry) int { return cmp.Compare(a.dev.ID(), b.dev.ID()) })
	return out
}

func (r *registry) counts() (tracked, surfaced int) {
	for _, e := range r.byKey {
		tracked++
		if e.surfaced {
			surfaced++
		}
	}
	return tracked, surfaced
}
