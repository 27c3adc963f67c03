package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rendercast/rendercast-go/pkg/record"
)

// FileStore keeps records in memory and writes the whole set to a JSON file
// after every change.
type FileStore struct {
	mu      sync.Mutex
	path    string
	sealer  *Sealer
	created time.Time
	closed  bool

	mem *MemoryStore
}

var _ DeviceStore = (*FileStore)(nil)

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileSealer seals credentials before they are written.
func WithFileSealer(s *Sealer) FileOption {
	return func(fs *FileStore) { fs.sealer = s }
}

// OpenFileStore loads path if it exists. A missing file is an empty store.
func OpenFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{path: path, mem: NewMemoryStore()}
	for _, opt := range opts {
		opt(s)
	}

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	if file == nil {
		s.created = time.Now()
		return s, nil
	}

	s.created = file.Created
	recs := make([]record.DeviceRecord, 0, len(file.Devices))
	for _, rec := range file.Devices {
		opened, err := s.sealer.openRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", rec.ID, err)
		}
		recs = append(recs, opened)
	}
	s.mem.replaceAll(recs)
	return s, nil
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Get implements DeviceStore.
func (s *FileStore) Get(ctx context.Context, id string) (record.DeviceRecord, error) {
	return s.mem.Get(ctx, id)
}

// FindByServiceUUID implements DeviceStore.
func (s *FileStore) FindByServiceUUID(ctx context.Context, serviceUUID string) (record.DeviceRecord, error) {
	return s.mem.FindByServiceUUID(ctx, serviceUUID)
}

// FindByAddress implements DeviceStore.
func (s *FileStore) FindByAddress(ctx context.Context, ip string) (record.DeviceRecord, error) {
	return s.mem.FindByAddress(ctx, ip)
}

// Put implements DeviceStore.
func (s *FileStore) Put(ctx context.Context, rec record.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.mem.Put(ctx, rec); err != nil {
		return err
	}
	return s.saveLocked()
}

// Remove implements DeviceStore.
func (s *FileStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.mem.Get(ctx, id); err != nil {
		return nil
	}
	_ = s.mem.Remove(ctx, id)
	return s.saveLocked()
}

// List implements DeviceStore.
func (s *FileStore) List(ctx context.Context) ([]record.DeviceRecord, error) {
	return s.mem.List(ctx)
}

// Close implements DeviceStore.
func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *FileStore) saveLocked() error {
	recs, _ := s.mem.List(context.Background())
	file := &record.DeviceStoreFile{
		Version: record.StoreVersion,
		Created: s.created,
		Updated: time.Now(),
		Devices: make([]record.DeviceRecord, 0, len(recs)),
	}
	for _, rec := range recs {
		sealed, err := s.sealer.sealRecord(rec)
		if err != nil {
			return fmt.Errorf("seal device %s: %w", rec.ID, err)
		}
		file.Devices = append(file.Devices, sealed)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	// Write then rename so readers never see a partial file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// load returns nil, nil if the file doesn't exist.
func (s *FileStore) load() (*record.DeviceStoreFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	file := &record.DeviceStoreFile{}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if file.Version > record.StoreVersion {
		return nil, fmt.Errorf("%s: unsupported store version %d", s.path, file.Version)
	}
	return file, nil
}
