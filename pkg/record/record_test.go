package record

import (
	"testing"
	"time"
)

func TestServiceDescriptionClone(t *testing.T) {
	d := ServiceDescription{
		IPAddress:       "192.168.1.20",
		UUID:            "abc",
		ServiceList:     []string{"urn:a"},
		ResponseHeaders: map[string][]string{"ST": {"urn:a"}},
		Metadata:        map[string]string{"k": "v"},
	}

	c := d.Clone()
	c.ServiceList[0] = "urn:b"
	c.ResponseHeaders["ST"][0] = "urn:b"
	c.Metadata["k"] = "w"

	if d.ServiceList[0] != "urn:a" {
		t.Errorf("ServiceList shared with clone")
	}
	if d.ResponseHeaders["ST"][0] != "urn:a" {
		t.Errorf("ResponseHeaders shared with clone")
	}
	if d.Metadata["k"] != "v" {
		t.Errorf("Metadata shared with clone")
	}
}

func TestServiceDescriptionHost(t *testing.T) {
	tests := []struct {
		name string
		desc ServiceDescription
		want string
	}{
		{"location", ServiceDescription{IPAddress: "10.0.0.1", Location: "http://10.0.0.2:1234/desc.xml"}, "10.0.0.2"},
		{"fallback", ServiceDescription{IPAddress: "10.0.0.1"}, "10.0.0.1"},
		{"bad location", ServiceDescription{IPAddress: "10.0.0.1", Location: "::"}, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.Host(); got != tt.want {
				t.Errorf("Host() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServiceConfig(t *testing.T) {
	t.Run("ChangeHandler", func(t *testing.T) {
		c := NewServiceConfig("uuid-1")
		calls := 0
		c.OnChange(func(*ServiceConfig) { calls++ })

		c.SetClientKey("key")
		c.SetPairingKey("1234")
		c.SetServerCertificate([]byte("pem"))
		c.SetLastDetection(time.Now())

		if calls != 3 {
			t.Errorf("change handler called %d times, want 3", calls)
		}
		if c.ClientKey() != "key" || c.PairingKey() != "1234" {
			t.Errorf("credentials not stored")
		}
	})

	t.Run("MergeKeepsExisting", func(t *testing.T) {
		c := NewServiceConfig("uuid-1")
		c.SetClientKey("current")

		stored := NewServiceConfig("uuid-1")
		stored.SetClientKey("stale")
		stored.SetServerCertificate([]byte("cert"))

		c.Merge(stored)

		if c.ClientKey() != "current" {
			t.Errorf("ClientKey = %q, want current", c.ClientKey())
		}
		if string(c.ServerCertificate()) != "cert" {
			t.Errorf("ServerCertificate not recovered from stored config")
		}
	})

	t.Run("SnapshotRoundTrip", func(t *testing.T) {
		c := NewServiceConfig("uuid-1")
		c.SetClientKey("key")
		c.SetServerCertificate([]byte("cert"))

		data := c.Snapshot()
		if !data.HasCredentials() {
			t.Fatal("HasCredentials() = false")
		}
		back := data.Config()
		if back.ClientKey() != "key" || string(back.ServerCertificate()) != "cert" {
			t.Errorf("Config() lost credentials")
		}
	})
}

func TestDeviceRecordMerge(t *testing.T) {
	stored := DeviceRecord{
		ID:           "dev-1",
		FriendlyName: "Old Name",
		Services: []ServiceEntry{
			{
				Description: ServiceDescription{UUID: "svc-1", ServiceID: "webOS TV"},
				Config:      ConfigData{ServiceUUID: "svc-1", ClientKey: "secret"},
			},
		},
	}

	stored.Merge(DeviceRecord{
		FriendlyName: "Living Room",
		Services: []ServiceEntry{
			{Description: ServiceDescription{UUID: "svc-1", ServiceID: "webOS TV", IPAddress: "10.0.0.9"}},
			{Description: ServiceDescription{UUID: "svc-2", ServiceID: "Cast"}},
		},
	})

	if stored.FriendlyName != "Living Room" {
		t.Errorf("FriendlyName = %q", stored.FriendlyName)
	}
	if len(stored.Services) != 2 {
		t.Fatalf("len(Services) = %d, want 2", len(stored.Services))
	}
	svc, ok := stored.Service("svc-1")
	if !ok {
		t.Fatal("svc-1 missing")
	}
	if svc.Config.ClientKey != "secret" {
		t.Errorf("ClientKey lost in merge: %q", svc.Config.ClientKey)
	}
	if svc.Description.IPAddress != "10.0.0.9" {
		t.Errorf("description not refreshed")
	}
	if _, ok := stored.ServiceByID("Cast"); !ok {
		t.Errorf("new service not appended")
	}
}
