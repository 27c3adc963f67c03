package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rendercast/rendercast-go/pkg/record"
)

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	sealer *Sealer

	mu     sync.Mutex
	closed bool
}

var _ DeviceStore = (*SQLiteStore)(nil)

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteSealer seals credentials before they are written.
func WithSQLiteSealer(s *Sealer) SQLiteOption {
	return func(st *SQLiteStore) { st.sealer = s }
}

// OpenSQLiteStore opens (or creates) the database at path.
// Use ":memory:" for an in-memory database.
func OpenSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	s := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		friendly_name TEXT NOT NULL DEFAULT '',
		model_name TEXT NOT NULL DEFAULT '',
		model_number TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		last_seen TEXT NOT NULL DEFAULT '',
		last_connected TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS services (
		uuid TEXT NOT NULL,
		device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		service_id TEXT NOT NULL,
		description TEXT NOT NULL,
		client_key TEXT NOT NULL DEFAULT '',
		pairing_key TEXT NOT NULL DEFAULT '',
		server_certificate BLOB,
		last_detection TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (device_id, uuid)
	);

	CREATE INDEX IF NOT EXISTS idx_services_uuid ON services(uuid);
	CREATE INDEX IF NOT EXISTS idx_devices_ip ON devices(ip_address);
	`)
	return err
}

// Get implements DeviceStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) (record.DeviceRecord, error) {
	if err := s.checkOpen(); err != nil {
		return record.DeviceRecord{}, err
	}
	return s.getByQuery(ctx, `SELECT id FROM devices WHERE id = ?`, id)
}

// FindByServiceUUID implements DeviceStore.
func (s *SQLiteStore) FindByServiceUUID(ctx context.Context, serviceUUID string) (record.DeviceRecord, error) {
	if err := s.checkOpen(); err != nil {
		return record.DeviceRecord{}, err
	}
	return s.getByQuery(ctx, `SELECT device_id FROM services WHERE uuid = ? LIMIT 1`, serviceUUID)
}

// FindByAddress implements DeviceStore.
func (s *SQLiteStore) FindByAddress(ctx context.Context, ip string) (record.DeviceRecord, error) {
	if err := s.checkOpen(); err != nil {
		return record.DeviceRecord{}, err
	}
	return s.getByQuery(ctx, `SELECT id FROM devices WHERE ip_address = ? ORDER BY last_seen DESC LIMIT 1`, ip)
}

// Put implements DeviceStore.
func (s *SQLiteStore) Put(ctx context.Context, rec record.DeviceRecord) error {
	if rec.ID == "" {
		return ErrNoID
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.tx(ctx, func(tx *sql.Tx) error {
		var merged record.DeviceRecord
		existing, err := s.load(ctx, tx, rec.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			merged = merge(nil, rec)
		case err != nil:
			return err
		default:
			merged = merge(&existing, rec)
		}
		return s.write(ctx, tx, merged)
	})
}

// Remove implements DeviceStore.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	return err
}

// List implements DeviceStore.
func (s *SQLiteStore) List(ctx context.Context) ([]record.DeviceRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM devices ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]record.DeviceRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.load(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close implements DeviceStore.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// tx executes fn within a transaction, committing if fn returns nil.
func (s *SQLiteStore) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) getByQuery(ctx context.Context, query string, arg string) (record.DeviceRecord, error) {
	var id string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return record.DeviceRecord{}, ErrNotFound
	}
	if err != nil {
		return record.DeviceRecord{}, err
	}
	return s.load(ctx, s.db, id)
}

func (s *SQLiteStore) load(ctx context.Context, q querier, id string) (record.DeviceRecord, error) {
	var rec record.DeviceRecord
	var lastSeen, lastConnected string
	err := q.QueryRowContext(ctx, `
		SELECT id, friendly_name, model_name, model_number, ip_address, last_seen, last_connected
		FROM devices WHERE id = ?
	`, id).Scan(&rec.ID, &rec.FriendlyName, &rec.ModelName, &rec.ModelNumber, &rec.IPAddress, &lastSeen, &lastConnected)
	if errors.Is(err, sql.ErrNoRows) {
		return record.DeviceRecord{}, ErrNotFound
	}
	if err != nil {
		return record.DeviceRecord{}, err
	}
	rec.LastSeen = parseTime(lastSeen)
	rec.LastConnected = parseTime(lastConnected)

	rows, err := q.QueryContext(ctx, `
		SELECT uuid, description, client_key, pairing_key, server_certificate, last_detection
		FROM services WHERE device_id = ? ORDER BY position
	`, id)
	if err != nil {
		return record.DeviceRecord{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry         record.ServiceEntry
			desc          string
			lastDetection string
			cert          []byte
		)
		if err := rows.Scan(&entry.Config.ServiceUUID, &desc, &entry.Config.ClientKey,
			&entry.Config.PairingKey, &cert, &lastDetection); err != nil {
			return record.DeviceRecord{}, err
		}
		if err := json.Unmarshal([]byte(desc), &entry.Description); err != nil {
			return record.DeviceRecord{}, fmt.Errorf("service %s description: %w", entry.Config.ServiceUUID, err)
		}
		if len(cert) > 0 {
			entry.Config.ServerCertificate = cert
		}
		entry.Config.LastDetection = parseTime(lastDetection)
		rec.Services = append(rec.Services, entry)
	}
	if err := rows.Err(); err != nil {
		return record.DeviceRecord{}, err
	}

	return s.sealer.openRecord(rec)
}

func (s *SQLiteStore) write(ctx context.Context, tx *sql.Tx, rec record.DeviceRecord) error {
	sealed, err := s.sealer.sealRecord(rec)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (id, friendly_name, model_name, model_number, ip_address, last_seen, last_connected)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			friendly_name = excluded.friendly_name,
			model_name = excluded.model_name,
			model_number = excluded.model_number,
			ip_address = excluded.ip_address,
			last_seen = excluded.last_seen,
			last_connected = excluded.last_connected
	`, sealed.ID, sealed.FriendlyName, sealed.ModelName, sealed.ModelNumber, sealed.IPAddress,
		formatTime(sealed.LastSeen), formatTime(sealed.LastConnected))
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM services WHERE device_id = ?`, sealed.ID); err != nil {
		return fmt.Errorf("clear services: %w", err)
	}
	for i, entry := range sealed.Services {
		desc, err := json.Marshal(entry.Description)
		if err != nil {
			return err
		}
		uuid := entry.Description.UUID
		if uuid == "" {
			uuid = entry.Config.ServiceUUID
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO services (uuid, device_id, position, service_id, description,
				client_key, pairing_key, server_certificate, last_detection)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid, sealed.ID, i, entry.Description.ServiceID, string(desc),
			entry.Config.ClientKey, entry.Config.PairingKey, entry.Config.ServerCertificate,
			formatTime(entry.Config.LastDetection))
		if err != nil {
			return fmt.Errorf("insert service %s: %w", uuid, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
