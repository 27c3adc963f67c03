package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendercast/rendercast-go/pkg/record"
)

func testRecord(id string) record.DeviceRecord {
	seen := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	return record.DeviceRecord{
		ID:           id,
		FriendlyName: "Living Room TV",
		ModelName:    "OLED55",
		IPAddress:    "192.168.1.20",
		LastSeen:     seen,
		Services: []record.ServiceEntry{{
			Description: record.ServiceDescription{
				IPAddress: "192.168.1.20",
				ServiceID: "webOS TV",
				UUID:      "uuid-" + id,
				Location:  "http://192.168.1.20:1893/desc.xml",
			},
			Config: record.ConfigData{
				ServiceUUID:       "uuid-" + id,
				ClientKey:         "client-key-" + id,
				ServerCertificate: []byte("-----BEGIN CERTIFICATE-----\n"),
			},
		}},
	}
}

// storeFactories returns every DeviceStore implementation under test.
func storeFactories(t *testing.T) map[string]func(t *testing.T) DeviceStore {
	return map[string]func(t *testing.T) DeviceStore{
		"Memory": func(t *testing.T) DeviceStore { return NewMemoryStore() },
		"File": func(t *testing.T) DeviceStore {
			s, err := OpenFileStore(filepath.Join(t.TempDir(), "devices.json"))
			require.NoError(t, err)
			return s
		},
		"SQLite": func(t *testing.T) DeviceStore {
			s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "devices.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestDeviceStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("GetMissing", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				_, err := s.Get(ctx, "nope")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("PutRequiresID", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				assert.ErrorIs(t, s.Put(ctx, record.DeviceRecord{}), ErrNoID)
			})

			t.Run("PutGetLookups", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				rec := testRecord("tv1")
				require.NoError(t, s.Put(ctx, rec))

				got, err := s.Get(ctx, "tv1")
				require.NoError(t, err)
				assert.Equal(t, "Living Room TV", got.FriendlyName)
				require.Len(t, got.Services, 1)
				assert.Equal(t, "client-key-tv1", got.Services[0].Config.ClientKey)
				assert.Equal(t, rec.Services[0].Config.ServerCertificate, got.Services[0].Config.ServerCertificate)
				assert.True(t, got.LastSeen.Equal(rec.LastSeen))

				byUUID, err := s.FindByServiceUUID(ctx, "uuid-tv1")
				require.NoError(t, err)
				assert.Equal(t, "tv1", byUUID.ID)

				byAddr, err := s.FindByAddress(ctx, "192.168.1.20")
				require.NoError(t, err)
				assert.Equal(t, "tv1", byAddr.ID)

				_, err = s.FindByServiceUUID(ctx, "uuid-other")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("PutMergesAndKeepsCredentials", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				require.NoError(t, s.Put(ctx, testRecord("tv1")))

				update := testRecord("tv1")
				update.FriendlyName = "Bedroom TV"
				update.Services[0].Config.ClientKey = ""
				update.Services[0].Config.ServerCertificate = nil
				update.Services[0].Description.Location = "http://192.168.1.20:1900/desc.xml"
				require.NoError(t, s.Put(ctx, update))

				got, err := s.Get(ctx, "tv1")
				require.NoError(t, err)
				assert.Equal(t, "Bedroom TV", got.FriendlyName)
				require.Len(t, got.Services, 1)
				assert.Equal(t, "client-key-tv1", got.Services[0].Config.ClientKey)
				assert.NotEmpty(t, got.Services[0].Config.ServerCertificate)
				assert.Equal(t, "http://192.168.1.20:1900/desc.xml", got.Services[0].Description.Location)
			})

			t.Run("ListAndRemove", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				require.NoError(t, s.Put(ctx, testRecord("b")))
				require.NoError(t, s.Put(ctx, testRecord("a")))

				list, err := s.List(ctx)
				require.NoError(t, err)
				require.Len(t, list, 2)
				assert.Equal(t, "a", list[0].ID)
				assert.Equal(t, "b", list[1].ID)

				require.NoError(t, s.Remove(ctx, "a"))
				require.NoError(t, s.Remove(ctx, "missing"))
				list, err = s.List(ctx)
				require.NoError(t, err)
				require.Len(t, list, 1)
				assert.Equal(t, "b", list[0].ID)
			})

			t.Run("ReturnsCopies", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				require.NoError(t, s.Put(ctx, testRecord("tv1")))

				got, err := s.Get(ctx, "tv1")
				require.NoError(t, err)
				got.Services[0].Config.ClientKey = "mutated"

				again, err := s.Get(ctx, "tv1")
				require.NoError(t, err)
				assert.Equal(t, "client-key-tv1", again.Services[0].Config.ClientKey)
			})
		})
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "devices.json")

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, testRecord("tv1")))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Put(ctx, testRecord("tv2")), ErrClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var file record.DeviceStoreFile
	require.NoError(t, json.Unmarshal(data, &file))
	assert.Equal(t, record.StoreVersion, file.Version)
	assert.Len(t, file.Devices, 1)
	assert.False(t, file.Updated.IsZero())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "tv1")
	require.NoError(t, err)
	assert.Equal(t, "client-key-tv1", got.Services[0].Config.ClientKey)
	assert.True(t, reopened.created.Equal(file.Created))
}

func TestFileStoreRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "devices": []}`), 0600))
	_, err := OpenFileStore(path)
	assert.Error(t, err)
}

func TestSealer(t *testing.T) {
	s, err := NewSealer([]byte("passphrase"), []byte("salt"))
	require.NoError(t, err)

	sealed, err := s.Seal("secret-key", "uuid-1")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "secret-key")

	plain, err := s.Open(sealed, "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", plain)

	t.Run("WrongAdditionalData", func(t *testing.T) {
		_, err := s.Open(sealed, "uuid-2")
		assert.ErrorIs(t, err, ErrUnseal)
	})

	t.Run("WrongKey", func(t *testing.T) {
		other, err := NewSealer([]byte("other"), []byte("salt"))
		require.NoError(t, err)
		_, err = other.Open(sealed, "uuid-1")
		assert.ErrorIs(t, err, ErrUnseal)
	})

	t.Run("PlaintextPassesThrough", func(t *testing.T) {
		plain, err := s.Open("legacy", "uuid-1")
		require.NoError(t, err)
		assert.Equal(t, "legacy", plain)
	})

	t.Run("EmptyStaysEmpty", func(t *testing.T) {
		out, err := s.Seal("", "uuid-1")
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("EmptySecret", func(t *testing.T) {
		_, err := NewSealer(nil, nil)
		assert.ErrorIs(t, err, ErrEmptySecret)
	})
}

func TestSealedStoresKeepCiphertextAtRest(t *testing.T) {
	ctx := context.Background()
	sealer, err := NewSealer([]byte("passphrase"), nil)
	require.NoError(t, err)

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "devices.json")
		s, err := OpenFileStore(path, WithFileSealer(sealer))
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, testRecord("tv1")))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.False(t, strings.Contains(string(data), "client-key-tv1"))
		assert.True(t, strings.Contains(string(data), sealedPrefix))

		reopened, err := OpenFileStore(path, WithFileSealer(sealer))
		require.NoError(t, err)
		got, err := reopened.Get(ctx, "tv1")
		require.NoError(t, err)
		assert.Equal(t, "client-key-tv1", got.Services[0].Config.ClientKey)
	})

	t.Run("SQLite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "devices.db")
		s, err := OpenSQLiteStore(path, WithSQLiteSealer(sealer))
		require.NoError(t, err)
		defer s.Close()
		require.NoError(t, s.Put(ctx, testRecord("tv1")))

		var raw string
		require.NoError(t, s.db.QueryRow(`SELECT client_key FROM services WHERE uuid = ?`, "uuid-tv1").Scan(&raw))
		assert.True(t, IsSealed(raw))

		got, err := s.Get(ctx, "tv1")
		require.NoError(t, err)
		assert.Equal(t, "client-key-tv1", got.Services[0].Config.ClientKey)
	})
}

func TestSQLiteStoreClose(t *testing.T) {
	s, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = s.List(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
