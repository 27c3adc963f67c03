// Package store persists devices the user connected to, together with the
// credentials their services negotiated.
//
// The discovery manager only sees the DeviceStore interface. Three
// implementations are provided: MemoryStore for tests and ephemeral use,
// FileStore for a single JSON file, and SQLiteStore for a database.
// File and SQLite stores can seal client and pairing keys with a Sealer.
package store

import (
	"context"
	"errors"

	"github.com/rendercast/rendercast-go/pkg/record"
)

// Store errors.
var (
	ErrNotFound = errors.New("device not found")
	ErrNoID     = errors.New("device record has no id")
	ErrClosed   = errors.New("store closed")
)

// DeviceStore persists device records.
type DeviceStore interface {
	// Get returns the record with the given device id.
	Get(ctx context.Context, id string) (record.DeviceRecord, error)

	// FindByServiceUUID returns the record owning a service with the given UUID.
	FindByServiceUUID(ctx context.Context, serviceUUID string) (record.DeviceRecord, error)

	// FindByAddress returns the most recently seen record at ip.
	FindByAddress(ctx context.Context, ip string) (record.DeviceRecord, error)

	// Put stores rec, merging it into an existing record with the same id.
	Put(ctx context.Context, rec record.DeviceRecord) error

	// Remove deletes a record. Removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error

	// List returns all records ordered by id.
	List(ctx context.Context) ([]record.DeviceRecord, error)

	// Close releases resources. It is safe to call more than once.
	Close() error
}

// merge folds rec into existing, or returns rec when there is none.
func merge(existing *record.DeviceRecord, rec record.DeviceRecord) record.DeviceRecord {
	if existing == nil {
		return rec.Clone()
	}
	out := existing.Clone()
	out.Merge(rec)
	return out
}

func matchesServiceUUID(rec record.DeviceRecord, serviceUUID string) bool {
	_, ok := rec.Service(serviceUUID)
	return ok
}
